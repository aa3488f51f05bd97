// Package tuning holds the tuning session aggregate: the stage machine that
// moves a user from describing a control problem, through advisory
// suggestions and logged telemetry, to refined gains.
package tuning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/pidtune/internal/advisory"
	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/history"
	"github.com/ashureev/pidtune/internal/metrics"
	"github.com/ashureev/pidtune/internal/telemetry"
)

// Stage is a position in the tuning loop.
type Stage string

const (
	StageCollecting        Stage = "collecting"
	StageReviewing         Stage = "reviewing"
	StageAwaitingTelemetry Stage = "awaiting_telemetry"
	StageVisualizing       Stage = "visualizing"
)

// Input is what the user supplies while describing the problem.
type Input struct {
	Prompt string
	Images []domain.Image
	Seed   *domain.GainTriple
}

// Options configures a Session.
type Options struct {
	Logger *slog.Logger
	// OnChange is called with a fresh snapshot once an operation that
	// changed the session has finished. It runs on the caller's goroutine.
	OnChange func(Snapshot)
}

// Session is one tuning conversation. Only one state-changing operation runs
// at a time; a concurrent one fails with ErrOperationInProgress. Reads such
// as Snapshot and Export never block on an in-flight advisory call.
type Session struct {
	id       string
	advisor  advisory.Client
	history  *history.Store
	logger   *slog.Logger
	onChange func(Snapshot)
	now      func() time.Time

	op      sync.Mutex
	busy    atomic.Bool
	changed bool // guarded by op

	mu        sync.RWMutex
	stage     Stage
	input     Input
	telemetry telemetry.Result
	schema    telemetry.ColumnSchema
}

// NewSession creates a session in the collecting stage.
func NewSession(id string, advisor advisory.Client, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:       id,
		advisor:  advisor,
		history:  history.NewStore(),
		logger:   logger.With("session_id", id),
		onChange: opts.OnChange,
		now:      time.Now,
		stage:    StageCollecting,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// History returns every suggestion in the order received.
func (s *Session) History() []history.Entry {
	return s.history.All()
}

// Telemetry returns the records and schema of the last successful ingest.
func (s *Session) Telemetry() ([]telemetry.Record, telemetry.ColumnSchema) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]telemetry.Record(nil), s.telemetry.Records...), s.schema
}

// UpdateInput replaces the description, images and seed gains.
func (s *Session) UpdateInput(in Input) error {
	if err := s.begin("update_input"); err != nil {
		return err
	}
	defer s.end()

	if err := s.require("update_input", StageCollecting); err != nil {
		return err
	}

	s.setInput(in)
	return nil
}

// SubmitCollectionRequest leaves the collecting stage. With a seed triple the
// session goes straight to awaiting telemetry without asking the advisor;
// otherwise the description is sent for initial gains.
func (s *Session) SubmitCollectionRequest(ctx context.Context) error {
	if err := s.begin("submit"); err != nil {
		return err
	}
	defer s.end()

	if err := s.require("submit", StageCollecting); err != nil {
		return err
	}
	return s.submit(ctx)
}

// SubmitInput replaces the input and submits it without releasing the
// operation lock in between, so no other update can land before the
// advisor sees it.
func (s *Session) SubmitInput(ctx context.Context, in Input) error {
	if err := s.begin("submit"); err != nil {
		return err
	}
	defer s.end()

	if err := s.require("submit", StageCollecting); err != nil {
		return err
	}
	s.setInput(in)
	return s.submit(ctx)
}

// submit must be called with op held in the collecting stage.
func (s *Session) submit(ctx context.Context) error {
	s.mu.RLock()
	in := s.input
	s.mu.RUnlock()

	if in.Seed != nil {
		s.logger.Info("Seed gains supplied, skipping initial advice", "gains", in.Seed.String())
		s.transition(StageAwaitingTelemetry)
		return nil
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return ErrMissingInput
	}

	text, err := s.advisor.RequestInitial(ctx, advisory.InitialRequest{
		FreeText: in.Prompt,
		Images:   in.Images,
	})
	if err != nil {
		s.logger.Warn("Initial advice failed", "error", err)
		return fmt.Errorf("request initial gains: %w", err)
	}

	entry := s.history.Append(text)
	s.logger.Info("Initial advice received", "seq", entry.Seq)
	s.transition(StageReviewing)
	return nil
}

// ProceedToData moves from reviewing a suggestion to waiting for telemetry.
// Previously ingested telemetry is kept until the next ingest replaces it.
func (s *Session) ProceedToData() error {
	if err := s.begin("proceed"); err != nil {
		return err
	}
	defer s.end()

	if err := s.require("proceed", StageReviewing); err != nil {
		return err
	}
	s.transition(StageAwaitingTelemetry)
	return nil
}

// IngestTelemetry parses raw and, when at least one record is accepted,
// replaces the session telemetry and moves to visualizing. On failure the
// stage and the previous telemetry are unchanged; the returned Result still
// carries skip diagnostics.
func (s *Session) IngestTelemetry(raw string, schema telemetry.ColumnSchema) (telemetry.Result, error) {
	if err := s.begin("ingest"); err != nil {
		return telemetry.Result{}, err
	}
	defer s.end()

	if err := s.require("ingest", StageAwaitingTelemetry); err != nil {
		return telemetry.Result{}, err
	}

	res, err := telemetry.Parse(raw, schema)
	metrics.TelemetryRows.WithLabelValues("accepted").Add(float64(len(res.Records)))
	metrics.TelemetryRows.WithLabelValues("skipped").Add(float64(res.Skipped))
	if err != nil {
		s.logger.Warn("Telemetry rejected", "schema", schema.Name(), "skipped", res.Skipped, "error", err)
		return res, fmt.Errorf("parse telemetry: %w", err)
	}

	s.mu.Lock()
	s.telemetry = res
	s.schema = schema
	s.mu.Unlock()

	s.logger.Info("Telemetry ingested",
		"schema", schema.Name(),
		"records", len(res.Records),
		"skipped", res.Skipped,
	)
	s.transition(StageVisualizing)
	return res, nil
}

// RequestRefinement sends the suggestion history, the gains of the last
// telemetry sample and a chart snapshot to the advisor. On success the
// answer is appended and the session returns to reviewing.
func (s *Session) RequestRefinement(ctx context.Context, snapshot domain.Image, notes string) (history.Entry, error) {
	if err := s.begin("refine"); err != nil {
		return history.Entry{}, err
	}
	defer s.end()

	if err := s.require("refine", StageVisualizing); err != nil {
		return history.Entry{}, err
	}

	s.mu.RLock()
	last, ok := s.telemetry.Last()
	s.mu.RUnlock()
	if !ok {
		return history.Entry{}, ErrNoTelemetry
	}
	if snapshot.IsEmpty() {
		return history.Entry{}, ErrMissingSnapshot
	}

	text, err := s.advisor.RequestRefinement(ctx, advisory.RefinementRequest{
		History:       s.history.All(),
		CurrentGains:  last.Gains(),
		GraphSnapshot: snapshot,
		Notes:         notes,
	})
	if err != nil {
		s.logger.Warn("Refinement failed", "error", err)
		return history.Entry{}, fmt.Errorf("request refinement: %w", err)
	}

	entry := s.history.Append(text)
	s.logger.Info("Refinement received", "seq", entry.Seq, "from_gains", last.Gains().String())
	s.transition(StageReviewing)
	return entry, nil
}

func (s *Session) begin(op string) error {
	if !s.op.TryLock() {
		metrics.OperationsRejected.WithLabelValues(op, "in_progress").Inc()
		s.logger.Warn("Operation already in progress", "operation", op)
		return ErrOperationInProgress
	}
	s.busy.Store(true)
	return nil
}

func (s *Session) end() {
	changed := s.changed
	s.changed = false
	s.busy.Store(false)
	s.op.Unlock()

	if changed && s.onChange != nil {
		s.onChange(s.Snapshot())
	}
}

// require must be called with op held.
func (s *Session) require(op string, want Stage) error {
	s.mu.RLock()
	stage := s.stage
	s.mu.RUnlock()
	if stage != want {
		metrics.OperationsRejected.WithLabelValues(op, "invalid_stage").Inc()
		return &StageError{Op: op, Stage: stage}
	}
	return nil
}

func (s *Session) transition(to Stage) {
	s.mu.Lock()
	from := s.stage
	s.stage = to
	s.mu.Unlock()

	metrics.Transitions.WithLabelValues(string(from), string(to)).Inc()
	s.changed = true
	s.logger.Info("Stage changed", "from", from, "to", to)
}

// setInput must be called with op held.
func (s *Session) setInput(in Input) {
	s.mu.Lock()
	s.input = Input{
		Prompt: in.Prompt,
		Images: append([]domain.Image(nil), in.Images...),
		Seed:   copyGains(in.Seed),
	}
	s.mu.Unlock()
	s.changed = true
}

func copyGains(g *domain.GainTriple) *domain.GainTriple {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}
