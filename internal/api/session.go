package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/identity"
	"github.com/ashureev/pidtune/internal/telemetry"
	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/go-chi/chi/v5"
)

// SessionHandler exposes the tuning session of the calling tab.
type SessionHandler struct {
	*Handler
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(base *Handler) *SessionHandler {
	return &SessionHandler{Handler: base}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/input", h.UpdateInput)
		r.Post("/submit", h.Submit)
		r.Post("/proceed", h.Proceed)
		r.Post("/telemetry", h.IngestTelemetry)
		r.Get("/telemetry.csv", h.TelemetryCSV)
		r.Post("/refine", h.Refine)
		r.Get("/history", h.History)
		r.Get("/export", h.Export)
	})
}

func (h *SessionHandler) session(r *http.Request) *tuning.Session {
	ctx := r.Context()
	return h.sessions.Get(identity.UserIDFromContext(ctx), identity.SessionIDFromContext(ctx))
}

type inputRequest struct {
	Prompt    string               `json:"prompt"`
	Images    []string             `json:"images"`
	SeedGains *domain.PartialGains `json:"seed_gains"`
}

// toInput decodes image data URLs. An incomplete seed triple becomes no seed.
func (req inputRequest) toInput() (tuning.Input, error) {
	in := tuning.Input{Prompt: req.Prompt, Seed: req.SeedGains.Complete()}
	for _, raw := range req.Images {
		img, err := domain.ParseDataURL(raw)
		if err != nil {
			return tuning.Input{}, err
		}
		in.Images = append(in.Images, img)
	}
	return in, nil
}

// Get returns the session snapshot.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.session(r).Snapshot())
}

// UpdateInput replaces the problem description, images and seed gains.
func (h *SessionHandler) UpdateInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := h.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}

	s := h.session(r)
	if err := s.UpdateInput(in); err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, s.Snapshot())
}

// Submit optionally applies an input body, then asks for initial gains or
// skips ahead when seed gains are set.
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req *inputRequest
	err := h.decodeJSON(w, r, &req, true)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Advisory calls survive client disconnects; ADVISORY_TIMEOUT bounds them.
	ctx := context.WithoutCancel(r.Context())

	s := h.session(r)
	if req == nil {
		err = s.SubmitCollectionRequest(ctx)
	} else {
		var in tuning.Input
		if in, err = req.toInput(); err == nil {
			err = s.SubmitInput(ctx, in)
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, s.Snapshot())
}

// Proceed moves from reviewing a suggestion to telemetry entry.
func (h *SessionHandler) Proceed(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	if err := s.ProceedToData(); err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, s.Snapshot())
}

type telemetryRequest struct {
	CSV    string `json:"csv"`
	Schema string `json:"schema"`
}

type telemetryResponse struct {
	Records      int             `json:"records"`
	Skipped      int             `json:"skipped"`
	SkippedLines []int           `json:"skipped_lines,omitempty"`
	Schema       string          `json:"schema"`
	Session      tuning.Snapshot `json:"session"`
}

// IngestTelemetry parses pasted telemetry. Parse failures report the skipped
// lines so the user can fix them.
func (h *SessionHandler) IngestTelemetry(w http.ResponseWriter, r *http.Request) {
	var req telemetryRequest
	if err := h.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	schema, err := telemetry.Select(req.Schema, req.CSV)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s := h.session(r)
	res, err := s.IngestTelemetry(req.CSV, schema)
	if err != nil {
		if errors.Is(err, telemetry.ErrNoValidRows) {
			skipped := res.Skipped
			JSON(w, http.StatusUnprocessableEntity, errorBody{
				Error:        err.Error(),
				Kind:         KindParse,
				Skipped:      &skipped,
				SkippedLines: res.SkippedLines,
			})
			return
		}
		writeError(w, r, err)
		return
	}

	JSON(w, http.StatusOK, telemetryResponse{
		Records:      len(res.Records),
		Skipped:      res.Skipped,
		SkippedLines: res.SkippedLines,
		Schema:       schema.Name(),
		Session:      s.Snapshot(),
	})
}

// TelemetryCSV returns the current telemetry in the 8-column layout.
func (h *SessionHandler) TelemetryCSV(w http.ResponseWriter, r *http.Request) {
	records, _ := h.session(r).Telemetry()
	if len(records) == 0 {
		writeError(w, r, tuning.ErrNoTelemetry)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="telemetry.csv"`)
	if _, err := w.Write([]byte(telemetry.Format(records, telemetry.SchemaCanonical))); err != nil {
		slog.Debug("Failed to write telemetry csv", "error", err)
	}
}

type refineRequest struct {
	Snapshot string `json:"snapshot"`
	Notes    string `json:"notes"`
}

// Refine sends the last run to the advisor for improved gains.
func (h *SessionHandler) Refine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := h.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	var snapshot domain.Image
	if req.Snapshot != "" {
		img, err := domain.ParseDataURL(req.Snapshot)
		if err != nil {
			writeError(w, r, err)
			return
		}
		snapshot = img
	}

	s := h.session(r)
	entry, err := s.RequestRefinement(context.WithoutCancel(r.Context()), snapshot, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"entry":   entry,
		"session": s.Snapshot(),
	})
}

// History returns every suggestion, oldest first.
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"entries": h.session(r).History(),
	})
}

// Export returns the clipboard export document.
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	view, err := tuning.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, h.session(r).Export(view))
}
