package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Publisher pushes events onto the channel. Publish must not block on
// slow consumers; dropping is acceptable.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Subscription is a live event feed. Events is closed when the
// subscription is closed.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Bus is a publish/subscribe channel for session events.
type Bus interface {
	Publisher

	// Subscribe delivers events for one session.
	Subscribe(ctx context.Context, sessionID uuid.UUID) (Subscription, error)

	// SubscribeAll delivers events for every session. Used by the gateway
	// to fan events out to its WebSocket pools.
	SubscribeAll(ctx context.Context) (Subscription, error)
}

// subscriberBuffer is the per-subscription channel depth. A subscriber
// that falls this far behind starts losing events, which the polling
// backstop corrects.
const subscriberBuffer = 64

// MemoryBus is an in-process Bus used in development mode and tests.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[*memorySub]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[*memorySub]struct{})}
}

type memorySub struct {
	bus       *MemoryBus
	sessionID uuid.UUID // zero value matches every session
	ch        chan Event
	closeOnce sync.Once
}

func (s *memorySub) Events() <-chan Event { return s.ch }

func (s *memorySub) Close() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	s.closeOnce.Do(func() { close(s.ch) })
	return nil
}

func (b *MemoryBus) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.sessionID != uuid.Nil && sub.sessionID != ev.SessionID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Best-effort channel: slow subscribers lose events.
			log.Warn().
				Str("event_type", string(ev.Type)).
				Str("session_id", ev.SessionID.String()).
				Msg("subscriber buffer full, dropping event")
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, sessionID uuid.UUID) (Subscription, error) {
	return b.subscribe(ctx, sessionID)
}

func (b *MemoryBus) SubscribeAll(ctx context.Context) (Subscription, error) {
	return b.subscribe(ctx, uuid.Nil)
}

func (b *MemoryBus) subscribe(ctx context.Context, sessionID uuid.UUID) (Subscription, error) {
	sub := &memorySub{
		bus:       b,
		sessionID: sessionID,
		ch:        make(chan Event, subscriberBuffer),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Close()
		}()
	}
	return sub, nil
}
