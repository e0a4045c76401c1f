package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/slidecast/slidecast/internal/control"
	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/realtime"
	"github.com/slidecast/slidecast/internal/store"
	"github.com/slidecast/slidecast/internal/store/memstore"
)

type fixture struct {
	store   *memstore.Store
	service *Service
	session *models.Session
	slides  []models.Slide
}

// setupLiveSession builds a deck of [content, multiple_choice, scale]
// slides and starts a session on it.
func setupLiveSession(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st := memstore.New()
	bus := realtime.NewMemoryBus()

	pres, err := st.CreatePresentation(ctx, "Ingest Deck")
	if err != nil {
		t.Fatalf("Failed to create presentation: %v", err)
	}

	specs := []struct {
		typ      models.SlideType
		settings models.SlideSettings
	}{
		{models.SlideTypeContent, models.SlideSettings{Body: "intro"}},
		{models.SlideTypeMultipleChoice, models.SlideSettings{Options: []string{"A", "B"}}},
		{models.SlideTypeScale, models.SlideSettings{Min: 1, Max: 5}},
	}
	var slides []models.Slide
	for i, spec := range specs {
		slide, err := st.CreateSlide(ctx, store.CreateSlideParams{
			PresentationID: pres.ID,
			Type:           spec.typ,
			Title:          "Slide",
			Position:       i,
			Settings:       spec.settings,
		})
		if err != nil {
			t.Fatalf("Failed to create slide: %v", err)
		}
		slides = append(slides, *slide)
	}

	sess, err := control.NewService(st, bus).StartSession(ctx, pres.ID)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	return &fixture{
		store:   st,
		service: NewService(st, bus),
		session: sess,
		slides:  slides,
	}
}

func (f *fixture) moveTo(t *testing.T, slideID uuid.UUID) {
	t.Helper()
	if _, err := f.store.UpdateActiveSlide(context.Background(), f.session.ID, slideID); err != nil {
		t.Fatalf("Failed to move active slide: %v", err)
	}
}

func TestSubmit(t *testing.T) {
	f := setupLiveSession(t)
	ctx := context.Background()
	f.moveTo(t, f.slides[1].ID)

	resp, err := f.service.Submit(ctx, SubmitRequest{
		SessionID:     f.session.ID,
		SlideID:       f.slides[1].ID,
		ParticipantID: "p1",
		Answer:        models.Answer{Selected: []int{0}},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if resp.ID == uuid.Nil {
		t.Error("Expected response to receive an id")
	}

	responses, err := f.store.ResponsesBySlide(ctx, f.session.ID, f.slides[1].ID)
	if err != nil {
		t.Fatalf("ResponsesBySlide failed: %v", err)
	}
	if len(responses) != 1 {
		t.Errorf("Stored responses = %d, want 1", len(responses))
	}
}

func TestSubmitRejections(t *testing.T) {
	f := setupLiveSession(t)
	ctx := context.Background()
	f.moveTo(t, f.slides[1].ID)

	tests := []struct {
		name    string
		req     SubmitRequest
		wantErr error
	}{
		{
			name: "inactive slide",
			req: SubmitRequest{
				SessionID:     f.session.ID,
				SlideID:       f.slides[2].ID,
				ParticipantID: "p1",
				Answer:        models.Answer{Value: intPtr(3)},
			},
			wantErr: ErrSlideNotActive,
		},
		{
			name: "answer shape mismatch",
			req: SubmitRequest{
				SessionID:     f.session.ID,
				SlideID:       f.slides[1].ID,
				ParticipantID: "p1",
				Answer:        models.Answer{Text: "not a selection"},
			},
			wantErr: ErrInvalidAnswer,
		},
		{
			name: "unknown session",
			req: SubmitRequest{
				SessionID:     uuid.New(),
				SlideID:       f.slides[1].ID,
				ParticipantID: "p1",
				Answer:        models.Answer{Selected: []int{0}},
			},
			wantErr: store.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.service.Submit(ctx, tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Submit error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("missing participant", func(t *testing.T) {
		_, err := f.service.Submit(ctx, SubmitRequest{
			SessionID: f.session.ID,
			SlideID:   f.slides[1].ID,
			Answer:    models.Answer{Selected: []int{0}},
		})
		if err == nil {
			t.Error("Expected error for missing participant id")
		}
	})
}

func TestSubmitNonInteractiveSlide(t *testing.T) {
	f := setupLiveSession(t)
	ctx := context.Background()

	// The session starts on the content slide
	_, err := f.service.Submit(ctx, SubmitRequest{
		SessionID:     f.session.ID,
		SlideID:       f.slides[0].ID,
		ParticipantID: "p1",
		Answer:        models.Answer{Text: "hello"},
	})
	if !errors.Is(err, ErrSlideNotActive) {
		t.Errorf("Expected ErrSlideNotActive for content slide, got %v", err)
	}
}

func TestSubmitEndedSession(t *testing.T) {
	f := setupLiveSession(t)
	ctx := context.Background()
	f.moveTo(t, f.slides[1].ID)

	if _, _, err := f.store.EndSession(ctx, f.session.ID); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	_, err := f.service.Submit(ctx, SubmitRequest{
		SessionID:     f.session.ID,
		SlideID:       f.slides[1].ID,
		ParticipantID: "p1",
		Answer:        models.Answer{Selected: []int{0}},
	})
	if !errors.Is(err, store.ErrSessionEnded) {
		t.Errorf("Expected ErrSessionEnded, got %v", err)
	}
}

// Concurrent duplicate submissions must produce exactly one stored
// response; every other attempt sees the duplicate error.
func TestSubmitConcurrentDuplicates(t *testing.T) {
	f := setupLiveSession(t)
	ctx := context.Background()
	f.moveTo(t, f.slides[1].ID)

	const attempts = 20
	var accepted, duplicate atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Submit(ctx, SubmitRequest{
				SessionID:     f.session.ID,
				SlideID:       f.slides[1].ID,
				ParticipantID: "same-participant",
				Answer:        models.Answer{Selected: []int{1}},
			})
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, store.ErrDuplicateResponse):
				duplicate.Add(1)
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != 1 {
		t.Errorf("Accepted = %d, want exactly 1", accepted.Load())
	}
	if duplicate.Load() != attempts-1 {
		t.Errorf("Duplicates = %d, want %d", duplicate.Load(), attempts-1)
	}

	responses, err := f.store.ResponsesBySlide(ctx, f.session.ID, f.slides[1].ID)
	if err != nil {
		t.Fatalf("ResponsesBySlide failed: %v", err)
	}
	if len(responses) != 1 {
		t.Errorf("Stored responses = %d, want 1", len(responses))
	}
}

func intPtr(v int) *int { return &v }
