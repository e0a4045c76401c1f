package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/slidecast/slidecast/internal/audience"
	"github.com/slidecast/slidecast/internal/control"
	"github.com/slidecast/slidecast/internal/ingest"
	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/realtime"
	"github.com/slidecast/slidecast/internal/store"
	"github.com/slidecast/slidecast/internal/store/memstore"
)

// pushFixture runs the full push pipeline: services publishing on the
// bus, the forwarder draining it, the connection manager fanning out,
// and real WebSocket connections dialed through the audience client.
type pushFixture struct {
	bus     *realtime.MemoryBus
	control *control.Service
	cm      *ConnectionManager
	client  *audience.Client
	session *models.Session
	slides  []models.Slide
}

func newPushFixture(t *testing.T) *pushFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st := memstore.New()
	bus := realtime.NewMemoryBus()
	ctrl := control.NewService(st, bus)
	ing := ingest.NewService(st, bus)

	cm := NewConnectionManager(DefaultConnectionConfig())
	go cm.Start(ctx)
	go NewEventForwarder(bus, cm).Run(ctx)

	mux := http.NewServeMux()
	NewAPI(st, ctrl, ing).RegisterRoutes(mux)
	NewWebSocketHandler(cm).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	pres, err := st.CreatePresentation(ctx, "Push Deck")
	if err != nil {
		t.Fatalf("CreatePresentation failed: %v", err)
	}
	var slides []models.Slide
	params := []store.CreateSlideParams{
		{PresentationID: pres.ID, Type: models.SlideTypeContent, Title: "Intro", Position: 0},
		{PresentationID: pres.ID, Type: models.SlideTypeMultipleChoice, Title: "Vote", Position: 1,
			Settings: models.SlideSettings{Options: []string{"A", "B"}}},
	}
	for _, p := range params {
		slide, err := st.CreateSlide(ctx, p)
		if err != nil {
			t.Fatalf("CreateSlide failed: %v", err)
		}
		slides = append(slides, *slide)
	}
	sess, err := ctrl.StartSession(ctx, pres.ID)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	return &pushFixture{
		bus:     bus,
		control: ctrl,
		cm:      cm,
		client:  audience.NewClient(server.URL),
		session: sess,
		slides:  slides,
	}
}

// waitForFeed publishes marker events until one comes back over the
// socket, proving the forwarder and fanout are wired up before the test
// drives real transitions.
func (f *pushFixture) waitForFeed(t *testing.T, sub realtime.Subscription) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.bus.Publish(context.Background(), realtime.Event{
			ID:        uuid.New().String(),
			Type:      realtime.EventSessionUpdated,
			SessionID: f.session.ID,
			Timestamp: time.Now(),
		})
		select {
		case <-sub.Events():
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatal("Event feed never became ready")
}

func (f *pushFixture) waitForConnections(t *testing.T, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if total, _ := f.cm.ConnectionStats(); total == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	total, _ := f.cm.ConnectionStats()
	t.Fatalf("ConnectionStats total = %d, want %d", total, want)
}

func waitForMatchingEvent(t *testing.T, sub realtime.Subscription, match func(realtime.Event) bool) realtime.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				t.Fatal("Subscription closed while waiting for event")
			}
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("Timed out waiting for event")
		}
	}
}

func TestWebSocketPushDeliversEvents(t *testing.T) {
	f := newPushFixture(t)
	ctx := context.Background()

	sub, err := f.client.Subscribe(ctx, f.session.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()
	f.waitForConnections(t, 1)
	f.waitForFeed(t, sub)

	if _, err := f.control.Advance(ctx, f.session.ID, control.DirectionNext); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	ev := waitForMatchingEvent(t, sub, func(ev realtime.Event) bool {
		return ev.Type == realtime.EventSessionUpdated &&
			ev.Session != nil &&
			ev.Session.ActiveSlideID != nil &&
			*ev.Session.ActiveSlideID == f.slides[1].ID
	})
	if ev.Session.Status != models.SessionStatusActive {
		t.Errorf("Pushed status = %s, want active", ev.Session.Status)
	}

	// A submission through the HTTP client surfaces as a pushed
	// response.created reference with no answer payload.
	if _, err := f.client.Submit(ctx, ingest.SubmitRequest{
		SessionID:     f.session.ID,
		SlideID:       f.slides[1].ID,
		ParticipantID: "p1",
		Answer:        models.Answer{Selected: []int{0}},
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	ev = waitForMatchingEvent(t, sub, func(ev realtime.Event) bool {
		return ev.Type == realtime.EventResponseCreated
	})
	if ev.Response == nil || ev.Response.SlideID != f.slides[1].ID || ev.Response.ParticipantID != "p1" {
		t.Errorf("Pushed response ref = %+v, want slide %s from p1", ev.Response, f.slides[1].ID)
	}
}

func TestWebSocketDisconnectDoesNotBreakFanout(t *testing.T) {
	f := newPushFixture(t)
	ctx := context.Background()

	leaver, err := f.client.Subscribe(ctx, f.session.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	stayer, err := f.client.Subscribe(ctx, f.session.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer stayer.Close()
	f.waitForConnections(t, 2)
	f.waitForFeed(t, stayer)

	leaver.Close()
	f.waitForConnections(t, 1)

	// Fanout must survive the departure and keep serving the rest
	if _, err := f.control.Advance(ctx, f.session.ID, control.DirectionNext); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	waitForMatchingEvent(t, stayer, func(ev realtime.Event) bool {
		return ev.Type == realtime.EventSessionUpdated &&
			ev.Session != nil &&
			ev.Session.ActiveSlideID != nil &&
			*ev.Session.ActiveSlideID == f.slides[1].ID
	})
}
