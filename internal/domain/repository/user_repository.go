package repository

import (
	"context"

	"leadcall-service/internal/domain/entity"
)

// UserRepository defines storage operations for requesting users
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
	MarkVerified(ctx context.Context, id string) error
}
