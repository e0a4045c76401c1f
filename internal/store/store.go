// Package store is the Postgres-backed source of truth for sessions,
// slides and responses. All repositories hang off one pgx pool.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slidecast/slidecast/internal/joincode"
	"github.com/slidecast/slidecast/internal/models"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

// New connects a store to an existing pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pgx pool against dsn and verifies the connection.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CreatePresentation inserts a new presentation.
func (s *Store) CreatePresentation(ctx context.Context, title string) (*models.Presentation, error) {
	p := models.Presentation{ID: uuid.New(), Title: title}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO presentations (id, title)
		VALUES ($1, $2)
		RETURNING created_at
	`, p.ID, p.Title).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert presentation: %w", err)
	}
	return &p, nil
}

// GetPresentation fetches a presentation by id.
func (s *Store) GetPresentation(ctx context.Context, id uuid.UUID) (*models.Presentation, error) {
	var p models.Presentation
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, created_at FROM presentations WHERE id = $1
	`, id).Scan(&p.ID, &p.Title, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get presentation: %w", err)
	}
	return &p, nil
}

// CreateSlideParams carries the fields for a new slide.
type CreateSlideParams struct {
	PresentationID uuid.UUID
	Type           models.SlideType
	Title          string
	Description    string
	Position       int
	Settings       models.SlideSettings
}

// CreateSlide inserts a new slide.
func (s *Store) CreateSlide(ctx context.Context, params CreateSlideParams) (*models.Slide, error) {
	settings, err := json.Marshal(params.Settings)
	if err != nil {
		return nil, fmt.Errorf("marshal slide settings: %w", err)
	}

	slide := models.Slide{
		ID:             uuid.New(),
		PresentationID: params.PresentationID,
		Type:           params.Type,
		Title:          params.Title,
		Description:    params.Description,
		Position:       params.Position,
		Settings:       params.Settings,
	}
	if err := slide.Validate(); err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO slides (id, presentation_id, type, title, description, position, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, slide.ID, slide.PresentationID, slide.Type, slide.Title, slide.Description, slide.Position, settings)
	if err != nil {
		return nil, fmt.Errorf("insert slide: %w", err)
	}
	return &slide, nil
}

// GetSlide fetches a slide by id.
func (s *Store) GetSlide(ctx context.Context, id uuid.UUID) (*models.Slide, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, presentation_id, type, title, description, position, settings
		FROM slides WHERE id = $1
	`, id)
	slide, err := scanSlide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slide: %w", err)
	}
	return slide, nil
}

// SlidesByPresentation returns the presentation's slides in position order.
func (s *Store) SlidesByPresentation(ctx context.Context, presentationID uuid.UUID) ([]models.Slide, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, presentation_id, type, title, description, position, settings
		FROM slides WHERE presentation_id = $1
		ORDER BY position ASC
	`, presentationID)
	if err != nil {
		return nil, fmt.Errorf("query slides: %w", err)
	}
	defer rows.Close()

	var slides []models.Slide
	for rows.Next() {
		slide, err := scanSlide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slide: %w", err)
		}
		slides = append(slides, *slide)
	}
	return slides, rows.Err()
}

// CreateSessionParams carries the fields for a new session.
type CreateSessionParams struct {
	PresentationID uuid.UUID
	Code           string
	ActiveSlideID  *uuid.UUID
}

// CreateSession inserts a new active session.
func (s *Store) CreateSession(ctx context.Context, params CreateSessionParams) (*models.Session, error) {
	sess := models.Session{
		ID:             uuid.New(),
		PresentationID: params.PresentationID,
		Code:           joincode.Normalize(params.Code),
		Status:         models.SessionStatusActive,
		ActiveSlideID:  params.ActiveSlideID,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, presentation_id, code, active_slide_id)
		VALUES ($1, $2, $3, $4)
		RETURNING started_at
	`, sess.ID, sess.PresentationID, sess.Code, sess.ActiveSlideID).Scan(&sess.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &sess, nil
}

// GetSession fetches a session by id.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, presentation_id, code, status, active_slide_id, started_at, ended_at
		FROM sessions WHERE id = $1
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// GetSessionByCode looks up the most recently started session for a join
// code. Lookup is case-insensitive and matches both active and ended
// sessions so late joiners see the "session ended" state rather than a
// not-found error.
func (s *Store) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, presentation_id, code, status, active_slide_id, started_at, ended_at
		FROM sessions
		WHERE code = $1 AND status IN ('active', 'ended')
		ORDER BY started_at DESC
		LIMIT 1
	`, joincode.Normalize(code))
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session by code: %w", err)
	}
	return sess, nil
}

// CodeActive reports whether any currently-active session uses code.
func (s *Store) CodeActive(ctx context.Context, code string) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM sessions WHERE code = $1 AND status = 'active')
	`, joincode.Normalize(code)).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("check code: %w", err)
	}
	return active, nil
}

// UpdateActiveSlide moves the session's active slide pointer. The status
// guard in the WHERE clause makes post-end mutations fail atomically.
func (s *Store) UpdateActiveSlide(ctx context.Context, sessionID, slideID uuid.UUID) (*models.Session, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE sessions SET active_slide_id = $2
		WHERE id = $1 AND status = 'active'
		RETURNING id, presentation_id, code, status, active_slide_id, started_at, ended_at
	`, sessionID, slideID)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the session does not exist or it has ended.
		if _, getErr := s.GetSession(ctx, sessionID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrSessionEnded
	}
	if err != nil {
		return nil, fmt.Errorf("update active slide: %w", err)
	}
	return sess, nil
}

// EndSession transitions a session to ended. Ending an already-ended
// session is a no-op; transitioned reports whether this call performed
// the transition.
func (s *Store) EndSession(ctx context.Context, sessionID uuid.UUID) (sess *models.Session, transitioned bool, err error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE sessions SET status = 'ended', ended_at = now()
		WHERE id = $1 AND status = 'active'
		RETURNING id, presentation_id, code, status, active_slide_id, started_at, ended_at
	`, sessionID)
	sess, err = scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		sess, err = s.GetSession(ctx, sessionID)
		return sess, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("end session: %w", err)
	}
	return sess, true, nil
}

// InsertResponseParams carries the fields for a new response.
type InsertResponseParams struct {
	SessionID     uuid.UUID
	SlideID       uuid.UUID
	ParticipantID string
	Answer        models.Answer
}

// InsertResponse appends a response. The (session, slide, participant)
// uniqueness constraint maps to ErrDuplicateResponse, which makes
// concurrent identical retries safe.
func (s *Store) InsertResponse(ctx context.Context, params InsertResponseParams) (*models.Response, error) {
	answer, err := json.Marshal(params.Answer)
	if err != nil {
		return nil, fmt.Errorf("marshal answer: %w", err)
	}

	resp := models.Response{
		ID:            uuid.New(),
		SessionID:     params.SessionID,
		SlideID:       params.SlideID,
		ParticipantID: params.ParticipantID,
		Answer:        params.Answer,
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO responses (id, session_id, slide_id, participant_id, answer)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, resp.ID, resp.SessionID, resp.SlideID, resp.ParticipantID, answer).Scan(&resp.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateResponse
		}
		return nil, fmt.Errorf("insert response: %w", err)
	}
	return &resp, nil
}

// HasResponse reports whether the participant already answered the slide.
func (s *Store) HasResponse(ctx context.Context, sessionID, slideID uuid.UUID, participantID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM responses
			WHERE session_id = $1 AND slide_id = $2 AND participant_id = $3
		)
	`, sessionID, slideID, participantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check response: %w", err)
	}
	return exists, nil
}

// ResponsesBySession returns all responses for a session in insertion order.
func (s *Store) ResponsesBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Response, error) {
	return s.queryResponses(ctx, `
		SELECT id, session_id, slide_id, participant_id, answer, created_at
		FROM responses WHERE session_id = $1
		ORDER BY created_at ASC
	`, sessionID)
}

// ResponsesBySlide returns a slide's responses within a session.
func (s *Store) ResponsesBySlide(ctx context.Context, sessionID, slideID uuid.UUID) ([]models.Response, error) {
	return s.queryResponses(ctx, `
		SELECT id, session_id, slide_id, participant_id, answer, created_at
		FROM responses WHERE session_id = $1 AND slide_id = $2
		ORDER BY created_at ASC
	`, sessionID, slideID)
}

// ParticipantCount returns the number of distinct participants that have
// responded anywhere in the session. It is always derived from the
// response set, never stored.
func (s *Store) ParticipantCount(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT participant_id) FROM responses WHERE session_id = $1
	`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return count, nil
}

func (s *Store) queryResponses(ctx context.Context, query string, args ...any) ([]models.Response, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var responses []models.Response
	for rows.Next() {
		var (
			resp   models.Response
			answer []byte
		)
		if err := rows.Scan(&resp.ID, &resp.SessionID, &resp.SlideID, &resp.ParticipantID, &answer, &resp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if err := json.Unmarshal(answer, &resp.Answer); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

func scanSlide(row pgx.Row) (*models.Slide, error) {
	var (
		slide    models.Slide
		settings []byte
	)
	err := row.Scan(&slide.ID, &slide.PresentationID, &slide.Type, &slide.Title,
		&slide.Description, &slide.Position, &settings)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &slide.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal slide settings: %w", err)
	}
	return &slide, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var sess models.Session
	err := row.Scan(&sess.ID, &sess.PresentationID, &sess.Code, &sess.Status,
		&sess.ActiveSlideID, &sess.StartedAt, &sess.EndedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}
