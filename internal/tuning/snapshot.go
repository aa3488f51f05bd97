package tuning

import (
	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/history"
)

// Snapshot is a read-only view of a session for clients.
type Snapshot struct {
	SessionID        string             `json:"session_id"`
	Stage            Stage              `json:"stage"`
	Prompt           string             `json:"prompt"`
	ImageCount       int                `json:"image_count"`
	SeedGains        *domain.GainTriple `json:"seed_gains,omitempty"`
	TelemetryRows    int                `json:"telemetry_rows"`
	TelemetrySkipped int                `json:"telemetry_skipped"`
	Schema           string             `json:"schema,omitempty"`
	LatestGains      *domain.GainTriple `json:"latest_gains,omitempty"`
	LatestGainsText  string             `json:"latest_gains_text,omitempty"`
	LatestSuggestion *history.Entry     `json:"latest_suggestion,omitempty"`
	HistoryLen       int                `json:"history_len"`
	Busy             bool               `json:"busy"`
}

// Snapshot returns the current state. It does not wait for in-flight
// operations.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		SessionID:        s.id,
		Stage:            s.stage,
		Prompt:           s.input.Prompt,
		ImageCount:       len(s.input.Images),
		SeedGains:        copyGains(s.input.Seed),
		TelemetryRows:    len(s.telemetry.Records),
		TelemetrySkipped: s.telemetry.Skipped,
	}
	if len(s.telemetry.Records) > 0 {
		snap.Schema = s.schema.Name()
	}
	if last, ok := s.telemetry.Last(); ok {
		g := last.Gains()
		snap.LatestGains = &g
		snap.LatestGainsText = g.String()
	}
	s.mu.RUnlock()

	if latest, ok := s.history.Latest(); ok {
		snap.LatestSuggestion = &latest
	}
	snap.HistoryLen = s.history.Len()
	snap.Busy = s.busy.Load()
	return snap
}
