// Package advisory defines the port to the external AI service that proposes
// PID gains, and its OpenAI-backed implementation.
package advisory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/history"
)

// Client requests gain suggestions. Implementations never mutate session or
// history state; calls may block for as long as the backend takes.
type Client interface {
	// RequestInitial asks for starting gains from a problem description.
	RequestInitial(ctx context.Context, req InitialRequest) (string, error)

	// RequestRefinement asks for improved gains given the suggestion
	// history, the gains that were run and a chart of the response.
	RequestRefinement(ctx context.Context, req RefinementRequest) (string, error)
}

// InitialRequest describes the control problem.
type InitialRequest struct {
	FreeText  string
	Images    []domain.Image
	SeedGains *domain.GainTriple
}

// RefinementRequest carries the context of a completed run.
type RefinementRequest struct {
	History       []history.Entry
	CurrentGains  domain.GainTriple
	GraphSnapshot domain.Image
	Notes         string
}

// Kind classifies advisory failures.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindUnreachable     Kind = "unreachable"
	KindRejected        Kind = "rejected"
	KindEmpty           Kind = "empty"
)

// Error is returned by Client implementations.
type Error struct {
	Kind Kind
	Err  error
}

var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrUnreachable     = &Error{Kind: KindUnreachable}
	ErrRejected        = &Error{Kind: KindRejected}
	ErrEmpty           = &Error{Kind: KindEmpty}
)

func (e *Error) Error() string {
	if e.Err == nil {
		return "advisory " + string(e.Kind)
	}
	return fmt.Sprintf("advisory %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrUnreachable)
// works for wrapped failures.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the advisory kind carried by err, or "" when err is not an
// advisory error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
