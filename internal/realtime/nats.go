package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for the NATS-backed bus.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the default NATS bus configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "slidecast.sessions",
		MaxReconnects: -1, // infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSBus is a Bus backed by core NATS subjects, one per session
// (<prefix>.<session_id>). Core NATS gives at-most-once delivery with no
// replay, which matches the push channel's contract exactly; the polling
// backstop owns correctness.
type NATSBus struct {
	nc     *nats.Conn
	config NATSConfig
}

// NewNATSBus connects to NATS and returns a bus.
func NewNATSBus(config NATSConfig) (*NATSBus, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSBus{nc: nc, config: config}, nil
}

// Close drains the underlying connection.
func (b *NATSBus) Close() {
	b.nc.Close()
}

func (b *NATSBus) subject(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s.%s", b.config.SubjectPrefix, sessionID)
}

func (b *NATSBus) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.nc.Publish(b.subject(ev.SessionID), data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (b *NATSBus) Subscribe(ctx context.Context, sessionID uuid.UUID) (Subscription, error) {
	return b.subscribe(ctx, b.subject(sessionID))
}

func (b *NATSBus) SubscribeAll(ctx context.Context) (Subscription, error) {
	return b.subscribe(ctx, b.config.SubjectPrefix+".>")
}

func (b *NATSBus) subscribe(ctx context.Context, subject string) (Subscription, error) {
	sub := &natsSub{ch: make(chan Event, subscriberBuffer)}

	nsub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("malformed event, dropping")
			return
		}
		sub.deliver(ev, msg.Subject)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	sub.nsub = nsub

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Close()
		}()
	}
	return sub, nil
}

type natsSub struct {
	nsub      *nats.Subscription
	mu        sync.Mutex
	closed    bool
	ch        chan Event
	closeOnce sync.Once
	closeErr  error
}

func (s *natsSub) Events() <-chan Event { return s.ch }

// deliver pushes an event unless the subscription is closed. The mutex
// orders deliveries against Close so we never send on a closed channel.
func (s *natsSub) deliver(ev Event, subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		log.Warn().Str("subject", subject).Msg("subscriber buffer full, dropping event")
	}
}

func (s *natsSub) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.nsub.Unsubscribe()
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	return s.closeErr
}
