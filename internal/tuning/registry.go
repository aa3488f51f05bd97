package tuning

import (
	"log/slog"
	"sync"

	"github.com/ashureev/pidtune/internal/advisory"
	"github.com/ashureev/pidtune/internal/metrics"
)

// DefaultSessionID is used when a client does not name a tab.
const DefaultSessionID = "default"

// AdvisorFactory returns the advisory client used by a user's sessions.
type AdvisorFactory func(userID string) advisory.Client

// ChangeFunc receives a snapshot after a session changed.
type ChangeFunc func(userID, sessionID string, snap Snapshot)

// Registry owns the in-memory sessions, one per user and tab. Sessions live
// until the process exits.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Session

	newAdvisor AdvisorFactory
	onChange   ChangeFunc
	logger     *slog.Logger
}

// NewRegistry creates an empty registry. onChange may be nil.
func NewRegistry(newAdvisor AdvisorFactory, onChange ChangeFunc, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions:   make(map[string]map[string]*Session),
		newAdvisor: newAdvisor,
		onChange:   onChange,
		logger:     logger,
	}
}

// Lookup returns an existing session.
func (r *Registry) Lookup(userID, sessionID string) (*Session, bool) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID][sessionID]
	return s, ok
}

// Get returns the session for a user and tab, creating it on first use.
func (r *Registry) Get(userID, sessionID string) *Session {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	if s, ok := r.Lookup(userID, sessionID); ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[userID]; !exists {
		r.sessions[userID] = make(map[string]*Session)
	}
	if s, exists := r.sessions[userID][sessionID]; exists {
		return s
	}

	opts := Options{Logger: r.logger.With("user_id", userID)}
	if r.onChange != nil {
		onChange := r.onChange
		opts.OnChange = func(snap Snapshot) { onChange(userID, sessionID, snap) }
	}
	s := NewSession(sessionID, r.newAdvisor(userID), opts)
	r.sessions[userID][sessionID] = s

	metrics.SessionsActive.Inc()
	r.logger.Info("Tuning session created", "user_id", userID, "session_id", sessionID)
	return s
}

// Len returns the number of sessions across all users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, sessions := range r.sessions {
		n += len(sessions)
	}
	return n
}
