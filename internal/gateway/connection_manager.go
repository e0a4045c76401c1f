package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/slidecast/slidecast/internal/realtime"
)

// ConnectionManager manages WebSocket connections for session event feeds
type ConnectionManager struct {
	// Connection pools organized by session ID
	sessionConnections map[uuid.UUID]map[*Connection]bool
	mu                 sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	// Event broadcasting
	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID            string
	ParticipantID string
	SessionID     uuid.UUID
	Conn          *websocket.Conn
	Send          chan []byte
	Manager       *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time

	sendMu sync.Mutex
	closed bool
}

// deliver hands a frame to the write pump without blocking. It returns
// false when the connection is closed or its buffer is full. The mutex
// orders deliveries against closeSend so a teardown racing a broadcast
// can never send on the closed channel.
func (c *Connection) deliver(message []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once, releasing the write
// pump. Safe to call from any goroutine, any number of times.
func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to broadcast to connections
type BroadcastMessage struct {
	SessionID     uuid.UUID
	Event         realtime.Event
	ParticipantID string // Optional: if set, only send to this participant
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Audience clients join from arbitrary origins
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		sessionConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, participantID string, sessionID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:            uuid.New().String(),
		ParticipantID: participantID,
		SessionID:     sessionID,
		Conn:          conn,
		Send:          make(chan []byte, 256),
		Manager:       cm,
		ConnectedAt:   time.Now(),
		LastPing:      time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("participant_id", participantID).
		Str("session_id", sessionID.String()).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.sessionConnections[conn.SessionID] == nil {
		cm.sessionConnections[conn.SessionID] = make(map[*Connection]bool)
	}
	cm.sessionConnections[conn.SessionID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID.String()).
		Int("total_connections", len(cm.sessionConnections[conn.SessionID])).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.sessionConnections[conn.SessionID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			conn.closeSend()

			if len(connections) == 0 {
				delete(cm.sessionConnections, conn.SessionID)
			}

			log.Info().
				Str("connection_id", conn.ID).
				Str("participant_id", conn.ParticipantID).
				Str("session_id", conn.SessionID.String()).
				Msg("connection unregistered")
		}
	}
}

// BroadcastToSession sends an event to all connections watching a session
func (cm *ConnectionManager) BroadcastToSession(sessionID uuid.UUID, event realtime.Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{SessionID: sessionID, Event: event}:
	default:
		log.Warn().Str("session_id", sessionID.String()).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastToParticipant sends an event to one participant's connections
func (cm *ConnectionManager) BroadcastToParticipant(sessionID uuid.UUID, participantID string, event realtime.Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{SessionID: sessionID, Event: event, ParticipantID: participantID}:
	default:
		log.Warn().
			Str("session_id", sessionID.String()).
			Str("participant_id", participantID).
			Msg("broadcast channel full, dropping participant message")
	}
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.sessionConnections[message.SessionID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Snapshot connections to avoid holding the lock during writes
	var targets []*Connection
	for conn := range connections {
		if message.ParticipantID != "" && conn.ParticipantID != message.ParticipantID {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		if !conn.deliver(eventData) {
			// Connection is slow or already tearing down; unregister it.
			// Closing the send channel makes the write pump shut the
			// socket down on its way out.
			log.Warn().
				Str("connection_id", conn.ID).
				Str("participant_id", conn.ParticipantID).
				Msg("connection not accepting events, closing connection")
			cm.unregisterConnection(conn)
		}
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("session_id", message.SessionID.String()).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// ConnectionStats returns statistics about active connections
func (cm *ConnectionManager) ConnectionStats() (total int, sessions int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, connections := range cm.sessionConnections {
		total += len(connections)
	}
	return total, len(cm.sessionConnections)
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		// The feed is one-way; client frames are logged and ignored
		log.Debug().
			Str("connection_id", c.ID).
			Str("participant_id", c.ParticipantID).
			RawJSON("message", message).
			Msg("received client message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
