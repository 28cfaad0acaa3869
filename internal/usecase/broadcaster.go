package usecase

import (
	"context"
	"time"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/internal/domain/repository"
	"leadcall-service/pkg/logger"
	"leadcall-service/pkg/metrics"
)

// Broadcaster fans push events out over every configured channel. Delivery
// is fire-and-forget: each notifier runs on its own goroutine with a
// detached context, failures are logged and swallowed, and the caller is
// never blocked. The triggering operation has already committed in the
// store by the time anything is broadcast.
type Broadcaster struct {
	notifiers []repository.Notifier
	logger    logger.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration
}

// NewBroadcaster creates a new broadcaster over the given channels
func NewBroadcaster(notifiers []repository.Notifier, log logger.Logger, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		notifiers: notifiers,
		logger:    log,
		metrics:   m,
		timeout:   5 * time.Second,
	}
}

// Broadcast pushes the event to the recipient on every channel
func (b *Broadcaster) Broadcast(to entity.Recipient, event *entity.Event) {
	for _, n := range b.notifiers {
		go func(n repository.Notifier) {
			ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
			defer cancel()

			if err := n.Push(ctx, to, event); err != nil {
				b.metrics.PushFailures.WithLabelValues(n.Name()).Inc()
				b.logger.Warn("Push delivery failed",
					"channel", n.Name(),
					"recipient", to.Key(),
					"event", event.Type,
					"error", err)
			}
		}(n)
	}
}
