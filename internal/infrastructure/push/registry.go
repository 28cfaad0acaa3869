package push

import (
	"context"
	"sync"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/pkg/logger"
)

// Registry maps connected identities to their live event channels. One
// identity may hold several connections (phone + tablet); an event goes to
// all of them. Constructed at process start and injected, never a global.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string][]chan *entity.Event
	bufSize int
	logger  logger.Logger
}

// NewRegistry creates a connection registry. bufSize is the per-connection
// event buffer; a full buffer drops the event rather than block the sender.
func NewRegistry(bufSize int, log logger.Logger) *Registry {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Registry{
		conns:   make(map[string][]chan *entity.Event),
		bufSize: bufSize,
		logger:  log,
	}
}

// Subscribe registers a new connection for the recipient and returns its
// event channel plus an unsubscribe func. The channel is closed on
// unsubscribe.
func (r *Registry) Subscribe(to entity.Recipient) (<-chan *entity.Event, func()) {
	ch := make(chan *entity.Event, r.bufSize)
	key := to.Key()

	r.mu.Lock()
	r.conns[key] = append(r.conns[key], ch)
	total := len(r.conns[key])
	r.mu.Unlock()

	r.logger.Debug("Connection registered", "recipient", key, "connections", total)

	// The close happens under the lock: Push sends while holding the read
	// lock, so a channel is never closed mid-send. Shutdown may already have
	// removed and closed it, in which case there is nothing left to do.
	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		chans := r.conns[key]
		for i, c := range chans {
			if c == ch {
				r.conns[key] = append(chans[:i], chans[i+1:]...)
				close(ch)
				break
			}
		}
		if len(r.conns[key]) == 0 {
			delete(r.conns, key)
		}
	}

	return ch, unsubscribe
}

// Name identifies the channel in logs and metrics
func (r *Registry) Name() string {
	return "registry"
}

// Push delivers the event to every live connection of the recipient.
// A no-op when the recipient is offline; a full connection buffer drops.
// The read lock is held across the sends so no channel can be closed under
// us; sends are non-blocking, so the lock is never held long.
func (r *Registry) Push(ctx context.Context, to entity.Recipient, event *entity.Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ch := range r.conns[to.Key()] {
		select {
		case ch <- event:
		default:
			r.logger.Warn("Dropping event for slow connection",
				"recipient", to.Key(), "event", event.Type)
		}
	}
	return nil
}

// Online reports whether the recipient has at least one live connection
func (r *Registry) Online(to entity.Recipient) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[to.Key()]) > 0
}

// Shutdown closes every connection channel
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, chans := range r.conns {
		for _, ch := range chans {
			close(ch)
		}
		delete(r.conns, key)
	}
}
