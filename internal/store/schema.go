package store

import (
	"context"
	"fmt"
)

// Schema is the full Postgres schema. The responses uniqueness constraint
// is the single concurrency guard for the write path: one response per
// (session, slide, participant), enforced atomically by the database.
//
// The notify triggers emit row-change events on the slidecast_events
// channel; the realtime listener bridges them onto the event bus. Push
// delivery is best-effort, so the triggers carry only identifiers and the
// post-update session image, never full answer payloads.
const Schema = `
CREATE TABLE IF NOT EXISTS presentations (
	id         UUID PRIMARY KEY,
	title      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS slides (
	id              UUID PRIMARY KEY,
	presentation_id UUID NOT NULL REFERENCES presentations(id) ON DELETE CASCADE,
	type            TEXT NOT NULL,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	position        INT  NOT NULL,
	settings        JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_slides_presentation
	ON slides(presentation_id, position);

CREATE TABLE IF NOT EXISTS sessions (
	id              UUID PRIMARY KEY,
	presentation_id UUID NOT NULL REFERENCES presentations(id) ON DELETE CASCADE,
	code            TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'ended')),
	active_slide_id UUID REFERENCES slides(id),
	started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	ended_at        TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sessions_code ON sessions(code, started_at DESC);

CREATE TABLE IF NOT EXISTS responses (
	id             UUID PRIMARY KEY,
	session_id     UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	slide_id       UUID NOT NULL REFERENCES slides(id) ON DELETE CASCADE,
	participant_id TEXT NOT NULL,
	answer         JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (session_id, slide_id, participant_id)
);

CREATE INDEX IF NOT EXISTS idx_responses_session ON responses(session_id, slide_id);

CREATE OR REPLACE FUNCTION notify_session_updated() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('slidecast_events', json_build_object(
		'type', 'session.updated',
		'session_id', NEW.id,
		'status', NEW.status,
		'active_slide_id', NEW.active_slide_id
	)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_sessions_notify ON sessions;
CREATE TRIGGER trg_sessions_notify
	AFTER UPDATE ON sessions
	FOR EACH ROW EXECUTE FUNCTION notify_session_updated();

CREATE OR REPLACE FUNCTION notify_response_created() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('slidecast_events', json_build_object(
		'type', 'response.created',
		'session_id', NEW.session_id,
		'response_id', NEW.id,
		'slide_id', NEW.slide_id,
		'participant_id', NEW.participant_id
	)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_responses_notify ON responses;
CREATE TRIGGER trg_responses_notify
	AFTER INSERT ON responses
	FOR EACH ROW EXECUTE FUNCTION notify_response_created();
`

// EnsureSchema applies the schema. Safe to run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
