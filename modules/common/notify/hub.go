package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 256
)

// Frame is what travels over the socket.
type Frame struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId"`
	Notice    *Notice `json:"notice,omitempty"`
	State     any     `json:"state,omitempty"`
}

// client - one WebSocket connection subscribed to one session
type client struct {
	id        string
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
}

// Hub fans notices and state snapshots out to every WebSocket client of a
// session. Notices for a session without listeners are dropped.
type Hub struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]map[string]*client
}

// NewHub - creates an empty hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// The shell is served from a different origin during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:      log,
		sessions: make(map[string]map[string]*client),
	}
}

// Notify implements Notifier.
func (h *Hub) Notify(_ context.Context, n Notice) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	h.Publish(Frame{Type: "notice", SessionID: n.SessionID, Notice: &n})
}

// PublishState sends a state snapshot to the session's listeners.
func (h *Hub) PublishState(sessionID string, state any) {
	h.Publish(Frame{Type: "state", SessionID: sessionID, State: state})
}

// Publish delivers a frame to every client of frame.SessionID.
func (h *Hub) Publish(frame Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.log.Error().Err(err).Str("type", frame.Type).Msg("❌ Failed to marshal frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.sessions[frame.SessionID] {
		select {
		case c.send <- payload:
		default:
			// Slow consumer; drop it rather than stall the orchestrator.
			h.log.Warn().Str("session_id", c.sessionID).Str("client_id", id).Msg("⚠️  Dropping slow websocket client")
			h.removeLocked(c)
		}
	}
}

// ClientCount returns the number of live connections for sessionID.
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// CloseSession disconnects every client of sessionID.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.sessions[sessionID] {
		h.removeLocked(c)
	}
}

// ServeWS upgrades the request and subscribes it to ?session=<id>.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, `{"error":"session is required"}`, http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("⚠️  WebSocket upgrade failed")
		return
	}

	c := &client{
		id:        uuid.NewString(),
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, clientSendSize),
	}

	h.mu.Lock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[string]*client)
	}
	h.sessions[sessionID][c.id] = c
	count := len(h.sessions[sessionID])
	h.mu.Unlock()

	h.log.Info().Str("session_id", sessionID).Int("clients", count).Msg("👤 WebSocket client joined")

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	clients, ok := h.sessions[c.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[c.id]; !ok {
		return
	}
	delete(clients, c.id)
	close(c.send)
	if len(clients) == 0 {
		delete(h.sessions, c.sessionID)
	}
	h.log.Info().Str("session_id", c.sessionID).Int("remaining", len(clients)).Msg("👋 WebSocket client left")
}

// readPump only drains control frames; the shell talks to the server over
// HTTP, the socket is one-way.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("session_id", c.sessionID).Msg("⚠️  WebSocket read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.log.Warn().Err(err).Str("session_id", c.sessionID).Msg("⚠️  WebSocket write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
