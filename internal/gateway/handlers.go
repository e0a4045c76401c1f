// Package gateway exposes the platform over HTTP and WebSocket. REST
// handlers cover authoring, session control, response submission and
// aggregated results; the WebSocket feed relays push events per session.
package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/slidecast/slidecast/internal/control"
	"github.com/slidecast/slidecast/internal/ingest"
	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/results"
	"github.com/slidecast/slidecast/internal/store"
)

// Store defines what the REST handlers need from storage.
type Store interface {
	CreatePresentation(ctx context.Context, title string) (*models.Presentation, error)
	GetPresentation(ctx context.Context, id uuid.UUID) (*models.Presentation, error)
	CreateSlide(ctx context.Context, params store.CreateSlideParams) (*models.Slide, error)
	GetSlide(ctx context.Context, id uuid.UUID) (*models.Slide, error)
	SlidesByPresentation(ctx context.Context, presentationID uuid.UUID) ([]models.Slide, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetSessionByCode(ctx context.Context, code string) (*models.Session, error)
	HasResponse(ctx context.Context, sessionID, slideID uuid.UUID, participantID string) (bool, error)
	ResponsesBySlide(ctx context.Context, sessionID, slideID uuid.UUID) ([]models.Response, error)
	ParticipantCount(ctx context.Context, sessionID uuid.UUID) (int, error)
}

// API bundles the REST handlers and their dependencies.
type API struct {
	store   Store
	control *control.Service
	ingest  *ingest.Service
}

// NewAPI creates the REST handler set.
func NewAPI(st Store, ctrl *control.Service, ing *ingest.Service) *API {
	return &API{store: st, control: ctrl, ingest: ing}
}

// RegisterRoutes registers all REST routes on mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/presentations", a.handleCreatePresentation)
	mux.HandleFunc("GET /api/presentations/{id}", a.handleGetPresentation)
	mux.HandleFunc("POST /api/presentations/{id}/slides", a.handleCreateSlide)
	mux.HandleFunc("GET /api/presentations/{id}/slides", a.handleListSlides)

	mux.HandleFunc("GET /api/join/{code}", a.handleJoin)

	mux.HandleFunc("POST /api/sessions", a.handleStartSession)
	mux.HandleFunc("GET /api/sessions/{id}", a.handleGetSession)
	mux.HandleFunc("GET /api/sessions/{id}/answered", a.handleAnswered)
	mux.HandleFunc("POST /api/sessions/{id}/advance", a.handleAdvance)
	mux.HandleFunc("POST /api/sessions/{id}/goto", a.handleGoTo)
	mux.HandleFunc("POST /api/sessions/{id}/end", a.handleEndSession)
	mux.HandleFunc("POST /api/sessions/{id}/responses", a.handleSubmitResponse)
	mux.HandleFunc("GET /api/sessions/{id}/results", a.handleResults)
}

func (a *API) handleCreatePresentation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Title == "" {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	pres, err := a.store.CreatePresentation(r.Context(), req.Title)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"presentation": pres})
}

func (a *API) handleGetPresentation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	pres, err := a.store.GetPresentation(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	slides, err := a.store.SlidesByPresentation(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"presentation": pres, "slides": slides})
}

func (a *API) handleCreateSlide(w http.ResponseWriter, r *http.Request) {
	presentationID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Type        models.SlideType     `json:"type"`
		Title       string               `json:"title"`
		Description string               `json:"description"`
		Position    int                  `json:"position"`
		Settings    models.SlideSettings `json:"settings"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	slide, err := a.store.CreateSlide(r.Context(), store.CreateSlideParams{
		PresentationID: presentationID,
		Type:           req.Type,
		Title:          req.Title,
		Description:    req.Description,
		Position:       req.Position,
		Settings:       req.Settings,
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidSettings) {
			respondError(w, http.StatusBadRequest, "invalid_slide")
			return
		}
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"slide": slide})
}

func (a *API) handleListSlides(w http.ResponseWriter, r *http.Request) {
	presentationID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	slides, err := a.store.SlidesByPresentation(r.Context(), presentationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"slides": slides})
}

// handleJoin resolves a join code. Ended sessions still resolve so late
// joiners land on the ended screen instead of an error.
func (a *API) handleJoin(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	sess, err := a.store.GetSessionByCode(r.Context(), code)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (a *API) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PresentationID uuid.UUID `json:"presentation_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PresentationID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	sess, err := a.control.StartSession(r.Context(), req.PresentationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	log.Info().
		Str("session_id", sess.ID.String()).
		Str("code", sess.Code).
		Msg("session started")
	respondJSON(w, http.StatusCreated, map[string]any{"session": sess})
}

// handleGetSession is the audience poll endpoint: the session row plus
// its active slide in one round trip.
func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sess, err := a.store.GetSession(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	body := map[string]any{"session": sess}
	if sess.ActiveSlideID != nil {
		slide, err := a.store.GetSlide(r.Context(), *sess.ActiveSlideID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			respondServiceError(w, err)
			return
		}
		if slide != nil {
			body["active_slide"] = slide
		}
	}
	respondJSON(w, http.StatusOK, body)
}

func (a *API) handleAnswered(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	slideID, err := uuid.Parse(r.URL.Query().Get("slide_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_slide_id")
		return
	}
	participantID := r.URL.Query().Get("participant_id")
	if participantID == "" {
		respondError(w, http.StatusBadRequest, "participant_id_required")
		return
	}

	answered, err := a.store.HasResponse(r.Context(), sessionID, slideID, participantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"answered": answered})
}

func (a *API) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Direction control.Direction `json:"direction"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Direction != control.DirectionNext && req.Direction != control.DirectionPrev {
		respondError(w, http.StatusBadRequest, "invalid_direction")
		return
	}

	sess, err := a.control.Advance(r.Context(), sessionID, req.Direction)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (a *API) handleGoTo(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		SlideID uuid.UUID `json:"slide_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.SlideID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	sess, err := a.control.GoTo(r.Context(), sessionID, req.SlideID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (a *API) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sess, err := a.control.EndSession(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (a *API) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req ingest.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	// The path is authoritative for the session
	req.SessionID = sessionID

	resp, err := a.ingest.Submit(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"response": resp})
}

// handleResults aggregates one slide's responses on demand. Aggregates
// are always recomputed from the response rows, never cached.
func (a *API) handleResults(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	slideID, err := uuid.Parse(r.URL.Query().Get("slide_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_slide_id")
		return
	}

	sess, err := a.store.GetSession(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	slide, err := a.store.GetSlide(r.Context(), slideID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if slide.PresentationID != sess.PresentationID {
		respondError(w, http.StatusBadRequest, "invalid_slide")
		return
	}
	responses, err := a.store.ResponsesBySlide(r.Context(), sessionID, slideID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	participants, err := a.store.ParticipantCount(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	result := results.ForSlide(slide, responses)
	respondJSON(w, http.StatusOK, map[string]any{
		"result":            result,
		"participant_count": participants,
	})
}

// pathUUID parses a UUID path segment, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id")
		return uuid.Nil, false
	}
	return id, true
}
