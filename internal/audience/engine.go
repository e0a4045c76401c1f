package audience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/slidecast/slidecast/internal/ingest"
	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/realtime"
	"github.com/slidecast/slidecast/internal/store"
)

// ErrNoCurrentSlide is returned by Submit when the client is not showing
// an unanswered slide.
var ErrNoCurrentSlide = errors.New("no current slide to answer")

// DefaultPollInterval bounds staleness when push delivery fails. Every
// change is observed within one interval even if no push event ever
// arrives.
const DefaultPollInterval = 3 * time.Second

// SnapshotSource reads the authoritative session state. The poll channel
// and the initial first-paint fetch both go through it.
type SnapshotSource interface {
	SessionState(ctx context.Context, sessionID uuid.UUID) (Observation, error)
	HasResponse(ctx context.Context, sessionID, slideID uuid.UUID, participantID string) (bool, error)
}

// Submitter persists one answer. *ingest.Service satisfies this
// in-process; the HTTP client satisfies it over the wire.
type Submitter interface {
	Submit(ctx context.Context, req ingest.SubmitRequest) (*models.Response, error)
}

// Subscriber opens the push feed for a session. realtime.Bus satisfies
// it in-process; the WebSocket client satisfies it over the wire.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID uuid.UUID) (realtime.Subscription, error)
}

// Config assembles an Engine. ParticipantID is the device-scoped
// identity and is passed explicitly; the engine holds no ambient
// identity state.
type Config struct {
	SessionID     uuid.UUID
	ParticipantID string
	Source        SnapshotSource
	Submitter     Submitter
	Bus           Subscriber
	Clock         clockwork.Clock
	PollInterval  time.Duration
}

// Engine drives one audience client. Two producers feed it: a push
// subscription on the session's events (low latency, no delivery
// guarantee) and a fixed-interval poll of the snapshot source (the
// correctness backstop). Both apply observations through the same
// reducer, so ordering between the channels does not matter.
type Engine struct {
	sessionID     uuid.UUID
	participantID string
	source        SnapshotSource
	submitter     Submitter
	bus           Subscriber
	clock         clockwork.Clock
	pollInterval  time.Duration

	mu       sync.Mutex
	state    State
	answered map[uuid.UUID]bool

	transitions chan State
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewEngine builds an engine from cfg, applying defaults for the clock
// and poll interval.
func NewEngine(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Engine{
		sessionID:     cfg.SessionID,
		participantID: cfg.ParticipantID,
		source:        cfg.Source,
		submitter:     cfg.Submitter,
		bus:           cfg.Bus,
		clock:         cfg.Clock,
		pollInterval:  cfg.PollInterval,
		state:         State{Phase: PhaseWaiting},
		answered:      make(map[uuid.UUID]bool),
		transitions:   make(chan State, 16),
	}
}

// Start performs the synchronous first-paint fetch, then launches the
// push and poll loops. The loops stop when ctx is cancelled, Stop is
// called, or the session is observed ended.
func (e *Engine) Start(ctx context.Context) error {
	obs, err := e.source.SessionState(ctx, e.sessionID)
	if err != nil {
		return fmt.Errorf("fetch initial session state: %w", err)
	}

	// Seed the local answered flag for the slide we land on. Reconnects
	// land here too, which is what makes a refresh keep its "already
	// answered" state without a server round-trip per render.
	if obs.Status == models.SessionStatusActive && obs.ActiveSlideID != nil {
		has, err := e.source.HasResponse(ctx, e.sessionID, *obs.ActiveSlideID, e.participantID)
		if err != nil {
			return fmt.Errorf("check existing response: %w", err)
		}
		if has {
			e.mu.Lock()
			e.answered[*obs.ActiveSlideID] = true
			e.mu.Unlock()
		}
	}
	e.apply(obs)

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	context.AfterFunc(ctx, cancel)

	// Push is an optimization; if the subscription cannot be established
	// the engine degrades to poll-only convergence.
	if e.bus != nil {
		sub, err := e.bus.Subscribe(runCtx, e.sessionID)
		if err != nil {
			log.Warn().
				Err(err).
				Str("session_id", e.sessionID.String()).
				Msg("push subscription failed, running poll-only")
		} else {
			e.wg.Add(1)
			go e.pushLoop(runCtx, sub)
		}
	}

	e.wg.Add(1)
	go e.pollLoop(runCtx)
	return nil
}

// Stop cancels the loops and waits for them to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// State returns the current client state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Transitions delivers every state change. The channel is buffered and
// lossy for slow readers; State is always authoritative.
func (e *Engine) Transitions() <-chan State {
	return e.transitions
}

// Submit answers the currently shown slide. A duplicate rejection from
// the ingest path is treated as success: the participant has answered
// this slide, whoever got there first.
func (e *Engine) Submit(ctx context.Context, answer models.Answer) error {
	e.mu.Lock()
	cur := e.state
	e.mu.Unlock()

	if cur.Phase != PhaseShowing {
		return ErrNoCurrentSlide
	}

	_, err := e.submitter.Submit(ctx, ingest.SubmitRequest{
		SessionID:     e.sessionID,
		SlideID:       cur.SlideID,
		ParticipantID: e.participantID,
		Answer:        answer,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateResponse) {
		return err
	}

	e.mu.Lock()
	e.answered[cur.SlideID] = true
	if e.state.Phase == PhaseShowing && e.state.SlideID == cur.SlideID {
		e.setStateLocked(State{Phase: PhaseSubmitted, SlideID: cur.SlideID})
	}
	e.mu.Unlock()
	return nil
}

func (e *Engine) pushLoop(ctx context.Context, sub realtime.Subscription) {
	defer e.wg.Done()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.Type != realtime.EventSessionUpdated || ev.Session == nil {
				continue
			}
			e.apply(Observation{
				Status:        ev.Session.Status,
				ActiveSlideID: ev.Session.ActiveSlideID,
			})
			if e.State().Phase == PhaseEnded {
				e.cancel()
				return
			}
		}
	}
}

func (e *Engine) pollLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := e.clock.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			obs, err := e.source.SessionState(ctx, e.sessionID)
			if err != nil {
				// Transient fetch failures just mean this cycle corrects
				// nothing; the next one retries.
				log.Warn().
					Err(err).
					Str("session_id", e.sessionID.String()).
					Msg("poll fetch failed")
				continue
			}
			e.apply(obs)
			if e.State().Phase == PhaseEnded {
				e.cancel()
				return
			}
		}
	}
}

// apply runs one observation through the reducer.
func (e *Engine) apply(obs Observation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, changed := Reduce(e.state, obs, func(slideID uuid.UUID) bool {
		return e.answered[slideID]
	})
	if !changed {
		return
	}

	// Moving to a different slide discards local state for the old one.
	if next.SlideID != e.state.SlideID {
		for slideID := range e.answered {
			if slideID != next.SlideID {
				delete(e.answered, slideID)
			}
		}
	}
	e.setStateLocked(next)
}

func (e *Engine) setStateLocked(next State) {
	prev := e.state
	e.state = next

	log.Debug().
		Str("session_id", e.sessionID.String()).
		Str("from", string(prev.Phase)).
		Str("to", string(next.Phase)).
		Str("slide_id", next.SlideID.String()).
		Msg("audience state transition")

	select {
	case e.transitions <- next:
	default:
	}
}
