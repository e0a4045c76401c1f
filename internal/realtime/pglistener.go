package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/slidecast/slidecast/internal/models"
)

// ListenerConfig holds configuration for the Postgres notification bridge.
type ListenerConfig struct {
	DatabaseURL   string        // Postgres DSN for LISTEN
	NotifyChannel string        // channel the schema triggers notify on
	PingInterval  time.Duration // keepalive for the listener connection
}

// DefaultListenerConfig returns the default listener configuration.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel: "slidecast_events",
		PingInterval:  90 * time.Second,
	}
}

// PGListener bridges Postgres row-change notifications onto the event
// bus. The schema's triggers emit session.updated and response.created
// payloads via pg_notify; this listener decodes them and republishes.
// Whatever path wrote the row - this process or any other writer sharing
// the database - its change reaches subscribers the same way.
type PGListener struct {
	listener  *pq.Listener
	publisher Publisher
	cfg       ListenerConfig
}

// NewPGListener starts LISTENing on the configured channel.
func NewPGListener(publisher Publisher, cfg ListenerConfig) (*PGListener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("listen on channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for row-change notifications")

	return &PGListener{
		listener:  l,
		publisher: publisher,
		cfg:       cfg,
	}, nil
}

// Run consumes notifications until the context is cancelled.
func (l *PGListener) Run(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("pg listener shutting down")
			return l.listener.Close()
		case note := <-l.listener.Notify:
			if note == nil {
				// nil notification means the connection was lost and is
				// being re-established; events in the gap are simply
				// dropped, the polling backstop covers them.
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// notifyPayload is the JSON emitted by the schema triggers.
type notifyPayload struct {
	Type          EventType  `json:"type"`
	SessionID     uuid.UUID  `json:"session_id"`
	Status        string     `json:"status"`
	ActiveSlideID *uuid.UUID `json:"active_slide_id"`
	ResponseID    *uuid.UUID `json:"response_id"`
	SlideID       *uuid.UUID `json:"slide_id"`
	ParticipantID string     `json:"participant_id"`
}

func (l *PGListener) handleNotification(ctx context.Context, payload string) error {
	var note notifyPayload
	if err := json.Unmarshal([]byte(payload), &note); err != nil {
		return fmt.Errorf("unmarshal notification: %w", err)
	}

	ev := Event{
		ID:        uuid.New().String(),
		Type:      note.Type,
		SessionID: note.SessionID,
		Timestamp: time.Now(),
	}
	switch note.Type {
	case EventSessionUpdated:
		ev.Session = &SessionState{
			Status:        models.SessionStatus(note.Status),
			ActiveSlideID: note.ActiveSlideID,
		}
	case EventResponseCreated:
		if note.ResponseID == nil || note.SlideID == nil {
			return fmt.Errorf("response notification missing ids")
		}
		ev.Response = &ResponseRef{
			ResponseID:    *note.ResponseID,
			SlideID:       *note.SlideID,
			ParticipantID: note.ParticipantID,
		}
	default:
		return fmt.Errorf("unknown notification type %q", note.Type)
	}

	if err := l.publisher.Publish(ctx, ev); err != nil {
		return fmt.Errorf("republish notification: %w", err)
	}

	log.Debug().
		Str("event_type", string(ev.Type)).
		Str("session_id", ev.SessionID.String()).
		Msg("bridged row-change notification")
	return nil
}
