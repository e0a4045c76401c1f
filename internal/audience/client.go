package audience

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/slidecast/slidecast/internal/ingest"
	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/realtime"
	"github.com/slidecast/slidecast/internal/store"
)

// Client talks to a slidecast gateway over HTTP and WebSocket. It
// satisfies SnapshotSource, Submitter and Subscriber, so a remote engine
// wires up exactly like an in-process one.
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
}

// NewClient builds a client for a gateway base URL such as
// "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		dialer:  websocket.DefaultDialer,
	}
}

// errorBody is the gateway's JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// snapshotBody mirrors the gateway's session snapshot response.
type snapshotBody struct {
	Session     models.Session `json:"session"`
	ActiveSlide *models.Slide  `json:"active_slide,omitempty"`
}

// JoinByCode resolves a join code to its session.
func (c *Client) JoinByCode(ctx context.Context, code string) (*models.Session, error) {
	var body struct {
		Session models.Session `json:"session"`
	}
	err := c.getJSON(ctx, "/api/join/"+url.PathEscape(code), &body)
	if err != nil {
		return nil, err
	}
	return &body.Session, nil
}

// Snapshot fetches the session and its active slide.
func (c *Client) Snapshot(ctx context.Context, sessionID uuid.UUID) (*models.Session, *models.Slide, error) {
	var body snapshotBody
	if err := c.getJSON(ctx, "/api/sessions/"+sessionID.String(), &body); err != nil {
		return nil, nil, err
	}
	return &body.Session, body.ActiveSlide, nil
}

// SessionState implements SnapshotSource over the snapshot endpoint.
func (c *Client) SessionState(ctx context.Context, sessionID uuid.UUID) (Observation, error) {
	sess, _, err := c.Snapshot(ctx, sessionID)
	if err != nil {
		return Observation{}, err
	}
	return Observation{Status: sess.Status, ActiveSlideID: sess.ActiveSlideID}, nil
}

// HasResponse implements SnapshotSource.
func (c *Client) HasResponse(ctx context.Context, sessionID, slideID uuid.UUID, participantID string) (bool, error) {
	var body struct {
		Answered bool `json:"answered"`
	}
	path := fmt.Sprintf("/api/sessions/%s/answered?slide_id=%s&participant_id=%s",
		sessionID, slideID, url.QueryEscape(participantID))
	if err := c.getJSON(ctx, path, &body); err != nil {
		return false, err
	}
	return body.Answered, nil
}

// Submit implements Submitter over the responses endpoint.
func (c *Client) Submit(ctx context.Context, req ingest.SubmitRequest) (*models.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/sessions/"+req.SessionID.String()+"/responses", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("submit response: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var body struct {
			Response models.Response `json:"response"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &body.Response, nil
	case http.StatusConflict:
		var body errorBody
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "slide_not_active" {
			return nil, ingest.ErrSlideNotActive
		}
		return nil, store.ErrDuplicateResponse
	case http.StatusGone:
		return nil, store.ErrSessionEnded
	default:
		return nil, decodeError(resp)
	}
}

// Subscribe implements Subscriber by opening the gateway's WebSocket
// feed for the session.
func (c *Client) Subscribe(ctx context.Context, sessionID uuid.UUID) (realtime.Subscription, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) +
		"/ws/sessions?session_id=" + sessionID.String()

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	sub := &wsSub{conn: conn, ch: make(chan realtime.Event, subscriberBufferSize)}
	go sub.readLoop()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Close()
		}()
	}
	return sub, nil
}

const subscriberBufferSize = 64

type wsSub struct {
	conn      *websocket.Conn
	ch        chan realtime.Event
	closeOnce sync.Once
}

func (s *wsSub) Events() <-chan realtime.Event { return s.ch }

func (s *wsSub) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// readLoop decodes pushed events until the connection drops. A dropped
// connection is not an error condition for the engine; the poll loop
// keeps converging without it.
func (s *wsSub) readLoop() {
	defer close(s.ch)
	defer s.conn.Close()

	for {
		var ev realtime.Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket feed closed")
			}
			return
		}
		select {
		case s.ch <- ev:
		default:
			log.Warn().Msg("event buffer full, dropping push event")
		}
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return store.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("gateway returned %d", resp.StatusCode)
}
