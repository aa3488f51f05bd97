// Package api provides HTTP handlers for the PID tuning API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/pidtune/internal/advisory"
	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/store"
	"github.com/ashureev/pidtune/internal/telemetry"
	"github.com/ashureev/pidtune/internal/tuning"
)

// Handler provides common handler utilities.
type Handler struct {
	repo         store.Repository
	sessions     *tuning.Registry
	fallback     domain.Credentials
	maxBodyBytes int64
}

// NewHandler creates a new Handler with common dependencies. fallback holds
// the operator-wide credentials used for users without their own key.
func NewHandler(repo store.Repository, sessions *tuning.Registry, fallback domain.Credentials, maxBodyBytes int64) *Handler {
	return &Handler{
		repo:         repo,
		sessions:     sessions,
		fallback:     fallback,
		maxBodyBytes: maxBodyBytes,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Error kinds reported to clients.
const (
	KindValidation          = "validation"
	KindParse               = "parse"
	KindInvalidStage        = "invalid_stage"
	KindOperationInProgress = "operation_in_progress"
	KindTooLarge            = "too_large"
	KindInternal            = "internal"
)

type errorBody struct {
	Error        string `json:"error"`
	Kind         string `json:"kind"`
	Skipped      *int   `json:"skipped,omitempty"`
	SkippedLines []int  `json:"skipped_lines,omitempty"`
}

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("bad request")

// classify maps an operation error onto a status code and error kind.
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, KindTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, tuning.ErrMissingInput),
		errors.Is(err, tuning.ErrMissingSnapshot),
		errors.Is(err, tuning.ErrNoTelemetry),
		errors.Is(err, tuning.ErrUnknownView),
		errors.Is(err, telemetry.ErrUnknownSchema),
		errors.Is(err, domain.ErrInvalidDataURL):
		return http.StatusBadRequest, KindValidation
	case errors.Is(err, telemetry.ErrNoValidRows):
		return http.StatusUnprocessableEntity, KindParse
	case errors.Is(err, tuning.ErrInvalidStage):
		return http.StatusConflict, KindInvalidStage
	case errors.Is(err, tuning.ErrOperationInProgress):
		return http.StatusConflict, KindOperationInProgress
	case errors.Is(err, advisory.ErrUnauthenticated):
		return http.StatusUnauthorized, string(advisory.KindUnauthenticated)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, string(advisory.KindUnreachable)
	case advisory.KindOf(err) != "":
		return http.StatusBadGateway, string(advisory.KindOf(err))
	}
	return http.StatusInternalServerError, KindInternal
}

// writeError reports err to the client. Internal errors are logged and
// replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err, "path", r.URL.Path)
		msg = "internal error"
	}
	JSON(w, status, errorBody{Error: msg, Kind: kind})
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v
// untouched when allowEmpty is set.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
