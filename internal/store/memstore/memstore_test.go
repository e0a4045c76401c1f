package memstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/store"
)

func createSession(t *testing.T, st *Store, code string) *models.Session {
	t.Helper()
	sess, err := st.CreateSession(context.Background(), store.CreateSessionParams{
		PresentationID: uuid.New(),
		Code:           code,
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return sess
}

func TestSlideRoundTrip(t *testing.T) {
	st := New()
	ctx := context.Background()

	pres, err := st.CreatePresentation(ctx, "Deck")
	if err != nil {
		t.Fatalf("CreatePresentation failed: %v", err)
	}

	// Insert out of order, read back sorted by position
	for _, pos := range []int{2, 0, 1} {
		_, err := st.CreateSlide(ctx, store.CreateSlideParams{
			PresentationID: pres.ID,
			Type:           models.SlideTypeContent,
			Title:          "Slide",
			Position:       pos,
		})
		if err != nil {
			t.Fatalf("CreateSlide failed: %v", err)
		}
	}

	slides, err := st.SlidesByPresentation(ctx, pres.ID)
	if err != nil {
		t.Fatalf("SlidesByPresentation failed: %v", err)
	}
	if len(slides) != 3 {
		t.Fatalf("Slide count = %d, want 3", len(slides))
	}
	for i, slide := range slides {
		if slide.Position != i {
			t.Errorf("slides[%d].Position = %d, want %d", i, slide.Position, i)
		}
	}
}

func TestCreateSlideValidates(t *testing.T) {
	st := New()
	_, err := st.CreateSlide(context.Background(), store.CreateSlideParams{
		PresentationID: uuid.New(),
		Type:           models.SlideTypeMultipleChoice,
	})
	if !errors.Is(err, models.ErrInvalidSettings) {
		t.Errorf("Expected ErrInvalidSettings, got %v", err)
	}
}

func TestGetSessionByCode(t *testing.T) {
	st := New()
	ctx := context.Background()

	first := createSession(t, st, "AAAAA")
	_ = first

	// A later session reusing the code wins the lookup
	time.Sleep(time.Millisecond)
	second := createSession(t, st, "AAAAA")

	sess, err := st.GetSessionByCode(ctx, "aaaaa")
	if err != nil {
		t.Fatalf("GetSessionByCode failed: %v", err)
	}
	if sess.ID != second.ID {
		t.Errorf("Lookup returned %s, want newest session %s", sess.ID, second.ID)
	}

	if _, err := st.GetSessionByCode(ctx, "ZZZZZ"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown code, got %v", err)
	}
}

func TestGetSessionByCodeIncludesEnded(t *testing.T) {
	st := New()
	ctx := context.Background()

	sess := createSession(t, st, "BBBBB")
	if _, _, err := st.EndSession(ctx, sess.ID); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	found, err := st.GetSessionByCode(ctx, "BBBBB")
	if err != nil {
		t.Fatalf("GetSessionByCode failed: %v", err)
	}
	if found.Status != models.SessionStatusEnded {
		t.Errorf("Status = %s, want ended", found.Status)
	}
}

func TestCodeActive(t *testing.T) {
	st := New()
	ctx := context.Background()

	sess := createSession(t, st, "CCCCC")

	active, err := st.CodeActive(ctx, "ccccc")
	if err != nil {
		t.Fatalf("CodeActive failed: %v", err)
	}
	if !active {
		t.Error("Expected code to be active")
	}

	if _, _, err := st.EndSession(ctx, sess.ID); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	active, err = st.CodeActive(ctx, "CCCCC")
	if err != nil {
		t.Fatalf("CodeActive failed: %v", err)
	}
	if active {
		t.Error("Expected code to be free after the session ended")
	}
}

func TestUpdateActiveSlide(t *testing.T) {
	st := New()
	ctx := context.Background()

	sess := createSession(t, st, "DDDDD")
	slideID := uuid.New()

	updated, err := st.UpdateActiveSlide(ctx, sess.ID, slideID)
	if err != nil {
		t.Fatalf("UpdateActiveSlide failed: %v", err)
	}
	if updated.ActiveSlideID == nil || *updated.ActiveSlideID != slideID {
		t.Errorf("ActiveSlideID = %v, want %s", updated.ActiveSlideID, slideID)
	}

	if _, _, err := st.EndSession(ctx, sess.ID); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if _, err := st.UpdateActiveSlide(ctx, sess.ID, uuid.New()); !errors.Is(err, store.ErrSessionEnded) {
		t.Errorf("Expected ErrSessionEnded, got %v", err)
	}
	if _, err := st.UpdateActiveSlide(ctx, uuid.New(), slideID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestEndSessionIdempotent(t *testing.T) {
	st := New()
	ctx := context.Background()

	sess := createSession(t, st, "EEEEE")

	ended, transitioned, err := st.EndSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if !transitioned {
		t.Error("Expected first end to transition")
	}
	if ended.EndedAt == nil {
		t.Error("Expected EndedAt to be set")
	}

	_, transitioned, err = st.EndSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Second EndSession failed: %v", err)
	}
	if transitioned {
		t.Error("Second end must not report a transition")
	}
}

func TestInsertResponseUniqueness(t *testing.T) {
	st := New()
	ctx := context.Background()

	sessionID, slideID := uuid.New(), uuid.New()
	params := store.InsertResponseParams{
		SessionID:     sessionID,
		SlideID:       slideID,
		ParticipantID: "p1",
		Answer:        models.Answer{Text: "hi"},
	}

	if _, err := st.InsertResponse(ctx, params); err != nil {
		t.Fatalf("InsertResponse failed: %v", err)
	}
	if _, err := st.InsertResponse(ctx, params); !errors.Is(err, store.ErrDuplicateResponse) {
		t.Errorf("Expected ErrDuplicateResponse, got %v", err)
	}

	// Same participant on a different slide is fine
	params.SlideID = uuid.New()
	if _, err := st.InsertResponse(ctx, params); err != nil {
		t.Errorf("Different slide should accept: %v", err)
	}

	has, err := st.HasResponse(ctx, sessionID, slideID, "p1")
	if err != nil {
		t.Fatalf("HasResponse failed: %v", err)
	}
	if !has {
		t.Error("Expected HasResponse true")
	}
}

func TestInsertResponseConcurrent(t *testing.T) {
	st := New()
	ctx := context.Background()

	sessionID, slideID := uuid.New(), uuid.New()

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.InsertResponse(ctx, store.InsertResponseParams{
				SessionID:     sessionID,
				SlideID:       slideID,
				ParticipantID: "racer",
				Answer:        models.Answer{Text: "x"},
			})
			if err == nil {
				accepted.Add(1)
			} else if !errors.Is(err, store.ErrDuplicateResponse) {
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != 1 {
		t.Errorf("Accepted = %d, want exactly 1", accepted.Load())
	}
}

func TestParticipantCount(t *testing.T) {
	st := New()
	ctx := context.Background()

	sessionID := uuid.New()
	slideA, slideB := uuid.New(), uuid.New()

	inserts := []struct {
		slide       uuid.UUID
		participant string
	}{
		{slideA, "p1"},
		{slideA, "p2"},
		{slideB, "p1"},
	}
	for _, ins := range inserts {
		_, err := st.InsertResponse(ctx, store.InsertResponseParams{
			SessionID:     sessionID,
			SlideID:       ins.slide,
			ParticipantID: ins.participant,
			Answer:        models.Answer{Text: "t"},
		})
		if err != nil {
			t.Fatalf("InsertResponse failed: %v", err)
		}
	}

	count, err := st.ParticipantCount(ctx, sessionID)
	if err != nil {
		t.Fatalf("ParticipantCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("ParticipantCount = %d, want 2", count)
	}

	bySlide, err := st.ResponsesBySlide(ctx, sessionID, slideA)
	if err != nil {
		t.Fatalf("ResponsesBySlide failed: %v", err)
	}
	if len(bySlide) != 2 {
		t.Errorf("Slide A responses = %d, want 2", len(bySlide))
	}
	all, err := st.ResponsesBySession(ctx, sessionID)
	if err != nil {
		t.Fatalf("ResponsesBySession failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Session responses = %d, want 3", len(all))
	}
}
