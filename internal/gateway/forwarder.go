package gateway

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/slidecast/slidecast/internal/realtime"
)

// EventForwarder drains the push bus and fans events out to the
// WebSocket connections watching each session. It is the only bridge
// between the bus and the gateway; handlers never touch connections
// directly.
type EventForwarder struct {
	bus realtime.Bus
	cm  *ConnectionManager
}

// NewEventForwarder creates a forwarder between bus and cm.
func NewEventForwarder(bus realtime.Bus, cm *ConnectionManager) *EventForwarder {
	return &EventForwarder{bus: bus, cm: cm}
}

// Run subscribes to all sessions and forwards until ctx is cancelled or
// the subscription closes. Forwarding is best effort; a dropped event is
// repaired by the audience poll loop.
func (f *EventForwarder) Run(ctx context.Context) error {
	sub, err := f.bus.SubscribeAll(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	log.Info().Msg("event forwarder started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				log.Info().Msg("event forwarder subscription closed")
				return nil
			}
			f.cm.BroadcastToSession(ev.SessionID, ev)
		}
	}
}
