package repository

import (
	"context"

	"leadcall-service/internal/domain/entity"
)

// Notifier delivers a push event to a recipient over one channel. Delivery
// is best-effort; callers swallow errors and must never block on a notifier.
type Notifier interface {
	Name() string
	Push(ctx context.Context, to entity.Recipient, event *entity.Event) error
}
