package tuning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/telemetry"
)

// View selects which chart the export describes.
type View string

const (
	ViewResponse  View = "response"
	ViewVariables View = "variables"
)

// ErrUnknownView is returned for a view other than response or variables.
var ErrUnknownView = errors.New("unknown view")

// ParseView maps a client value onto a View; empty means response.
func ParseView(v string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(v))) {
	case "", ViewResponse:
		return ViewResponse, nil
	case ViewVariables:
		return ViewVariables, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, v)
}

// ExportDoc is the one-way dump handed to the clipboard. It is not meant to
// be loaded back.
type ExportDoc struct {
	Telemetry   []telemetry.Record `json:"telemetry"`
	CurrentView View               `json:"current_view"`
	LatestGains *domain.GainTriple `json:"latest_gains,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Export builds the export document. It is allowed in every stage and
// never blocks on an in-flight operation.
func (s *Session) Export(view View) ExportDoc {
	if view == "" {
		view = ViewResponse
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := ExportDoc{
		Telemetry:   append([]telemetry.Record{}, s.telemetry.Records...),
		CurrentView: view,
		Timestamp:   s.now().UTC(),
	}
	if last, ok := s.telemetry.Last(); ok {
		g := last.Gains()
		doc.LatestGains = &g
	}
	return doc
}
