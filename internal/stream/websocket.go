package stream

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/pidtune/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// SnapshotFunc returns the current state of a user's tab.
type SnapshotFunc func(userID, sessionID string) any

// Handler upgrades requests to a snapshot stream. The first message is the
// current snapshot; later ones arrive through Hub.Publish.
type Handler struct {
	hub           *Hub
	snapshot      SnapshotFunc
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a stream handler.
func NewHandler(hub *Hub, snapshot SnapshotFunc, allowedOrigin string, isDev bool) *Handler {
	return &Handler{hub: hub, snapshot: snapshot, allowedOrigin: allowedOrigin, isDev: isDev}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.hub.Register(userID, sessionID, ws)
	defer h.hub.Unregister(userID, sessionID, ws)

	// Clients only listen; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := ws.CloseRead(r.Context())

	if err := wsjson.Write(ctx, ws, Event{Type: "snapshot", Data: h.snapshot(userID, sessionID)}); err != nil {
		slog.Debug("Failed to send initial snapshot", "error", err, "user_id", userID)
		return
	}

	<-ctx.Done()
	slog.Debug("Stream closed", "user_id", userID, "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
