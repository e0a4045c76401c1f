package audience

import (
	"testing"

	"github.com/google/uuid"

	"github.com/slidecast/slidecast/internal/models"
)

func TestReduce(t *testing.T) {
	slideA := uuid.New()
	slideB := uuid.New()

	never := func(uuid.UUID) bool { return false }
	always := func(uuid.UUID) bool { return true }

	tests := []struct {
		name        string
		cur         State
		obs         Observation
		answered    func(uuid.UUID) bool
		want        State
		wantChanged bool
	}{
		{
			name:        "waiting stays waiting on nil slide",
			cur:         State{Phase: PhaseWaiting},
			obs:         Observation{Status: models.SessionStatusActive},
			answered:    never,
			want:        State{Phase: PhaseWaiting},
			wantChanged: false,
		},
		{
			name:        "waiting to showing on new slide",
			cur:         State{Phase: PhaseWaiting},
			obs:         Observation{Status: models.SessionStatusActive, ActiveSlideID: &slideA},
			answered:    never,
			want:        State{Phase: PhaseShowing, SlideID: slideA},
			wantChanged: true,
		},
		{
			name:        "new slide already answered lands on submitted",
			cur:         State{Phase: PhaseWaiting},
			obs:         Observation{Status: models.SessionStatusActive, ActiveSlideID: &slideA},
			answered:    always,
			want:        State{Phase: PhaseSubmitted, SlideID: slideA},
			wantChanged: true,
		},
		{
			name:        "same slide is a no-op while showing",
			cur:         State{Phase: PhaseShowing, SlideID: slideA},
			obs:         Observation{Status: models.SessionStatusActive, ActiveSlideID: &slideA},
			answered:    never,
			want:        State{Phase: PhaseShowing, SlideID: slideA},
			wantChanged: false,
		},
		{
			name:        "same slide is a no-op after submitting",
			cur:         State{Phase: PhaseSubmitted, SlideID: slideA},
			obs:         Observation{Status: models.SessionStatusActive, ActiveSlideID: &slideA},
			answered:    always,
			want:        State{Phase: PhaseSubmitted, SlideID: slideA},
			wantChanged: false,
		},
		{
			name:        "advance to next slide",
			cur:         State{Phase: PhaseSubmitted, SlideID: slideA},
			obs:         Observation{Status: models.SessionStatusActive, ActiveSlideID: &slideB},
			answered:    never,
			want:        State{Phase: PhaseShowing, SlideID: slideB},
			wantChanged: true,
		},
		{
			name:        "slide pointer cleared returns to waiting",
			cur:         State{Phase: PhaseShowing, SlideID: slideA},
			obs:         Observation{Status: models.SessionStatusActive},
			answered:    never,
			want:        State{Phase: PhaseWaiting},
			wantChanged: true,
		},
		{
			name:        "session end wins over slide pointer",
			cur:         State{Phase: PhaseShowing, SlideID: slideA},
			obs:         Observation{Status: models.SessionStatusEnded, ActiveSlideID: &slideB},
			answered:    never,
			want:        State{Phase: PhaseEnded},
			wantChanged: true,
		},
		{
			name:        "ended is terminal",
			cur:         State{Phase: PhaseEnded},
			obs:         Observation{Status: models.SessionStatusActive, ActiveSlideID: &slideA},
			answered:    never,
			want:        State{Phase: PhaseEnded},
			wantChanged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Reduce(tt.cur, tt.obs, tt.answered)
			if got != tt.want {
				t.Errorf("Reduce() state = %+v, want %+v", got, tt.want)
			}
			if changed != tt.wantChanged {
				t.Errorf("Reduce() changed = %v, want %v", changed, tt.wantChanged)
			}
		})
	}
}

// Applying the same observation repeatedly must produce at most one
// transition regardless of how many channels delivered it.
func TestReduceIdempotent(t *testing.T) {
	slideA := uuid.New()
	obs := Observation{Status: models.SessionStatusActive, ActiveSlideID: &slideA}
	never := func(uuid.UUID) bool { return false }

	state := State{Phase: PhaseWaiting}
	transitions := 0
	for i := 0; i < 5; i++ {
		next, changed := Reduce(state, obs, never)
		if changed {
			transitions++
		}
		state = next
	}
	if transitions != 1 {
		t.Errorf("Got %d transitions from repeated observation, want 1", transitions)
	}
	if state.Phase != PhaseShowing || state.SlideID != slideA {
		t.Errorf("Final state = %+v, want showing %s", state, slideA)
	}
}
