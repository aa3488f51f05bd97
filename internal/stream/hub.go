// Package stream pushes session snapshots to browser tabs over WebSocket.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// Event is the envelope sent to clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub tracks one live connection per user and tab.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{active: make(map[string]map[string]*websocket.Conn)}
}

// Get returns the connection registered for a user and tab.
func (h *Hub) Get(userID, sessionID string) *websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active[userID][sessionID]
}

// Register adds conn, closing any connection it replaces.
func (h *Hub) Register(userID, sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[userID]; !exists {
		h.active[userID] = make(map[string]*websocket.Conn)
	}
	if existing, exists := h.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	h.active[userID][sessionID] = conn
	slog.Info("Stream registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes conn if it is still the registered one.
func (h *Hub) Unregister(userID, sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.active[userID]
	if !ok {
		return
	}
	if current, exists := sessions[sessionID]; exists && current == conn {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(h.active, userID)
		}
		slog.Info("Stream unregistered", "user_id", userID, "session_id", sessionID)
	}
}

// Publish sends an event to the tab's connection, if any. Write failures
// are logged; the reader side of the connection handles teardown.
func (h *Hub) Publish(userID, sessionID string, ev Event) {
	conn := h.Get(userID, sessionID)
	if conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, ev); err != nil {
		slog.Debug("Stream write failed", "error", err, "user_id", userID, "session_id", sessionID)
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, sessions := range h.active {
		n += len(sessions)
	}
	return n
}
