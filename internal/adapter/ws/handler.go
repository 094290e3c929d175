// Package ws implements the WebSocket adapter for real-time client communication.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/taskpad/internal/middleware"
)

const writeTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection owned by one user.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
	userID string
}

// Hub manages all active WebSocket connections and fans events out per user.
type Hub struct {
	mu             sync.RWMutex
	conns          map[*conn]struct{}
	originPatterns []string
}

// NewHub creates a WebSocket hub. Upgrade requests must come from one of
// origins; an empty list or "*" accepts any origin.
func NewHub(origins []string) *Hub {
	var patterns []string
	for _, o := range origins {
		if o == "*" {
			patterns = nil
			break
		}
		patterns = append(patterns, hostPattern(o))
	}
	return &Hub{
		conns:          make(map[*conn]struct{}),
		originPatterns: patterns,
	}
}

// hostPattern strips the scheme, which coder/websocket origin patterns do not carry.
func hostPattern(origin string) string {
	for _, scheme := range []string{"https://", "http://"} {
		if len(origin) > len(scheme) && origin[:len(scheme)] == scheme {
			return origin[len(scheme):]
		}
	}
	return origin
}

// HandleWS upgrades the connection and blocks until the client goes away.
// The connection receives events for the user in the request context.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: h.originPatterns}
	if len(h.originPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.ErrorContext(r.Context(), "websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, cancel: cancel, userID: middleware.UserIDFromContext(r.Context())}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	slog.InfoContext(ctx, "websocket connected", "remote", r.RemoteAddr, "user_id", c.userID)

	defer func() {
		h.remove(c)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()
	// Inbound frames are ignored; reading detects disconnects and answers pings.
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			return
		}
	}
}

// Broadcast sends a message to every connected client.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	h.send(ctx, "", msg)
}

// BroadcastToUser sends a message to the connections of a single user.
func (h *Hub) BroadcastToUser(ctx context.Context, userID string, msg Message) {
	if userID == "" {
		return
	}
	h.send(ctx, userID, msg)
}

func (h *Hub) send(ctx context.Context, userID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		if userID == "" || c.userID == userID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		err := c.ws.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.DebugContext(ctx, "websocket write failed", "user_id", c.userID, "error", err)
			h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected", "user_id", c.userID)
	}
}
