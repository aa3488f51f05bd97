// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/pidtune/internal/domain"
)

// Repository persists anonymous users and their advisory settings. Tuning
// sessions themselves are never stored.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil when
	// the user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetSetting returns a stored value and whether it exists.
	GetSetting(ctx context.Context, userID, key string) (string, bool, error)

	// PutSetting stores a value, replacing any previous one.
	PutSetting(ctx context.Context, userID, key, value string) error

	// DeleteSetting removes a value. Missing keys are not an error.
	DeleteSetting(ctx context.Context, userID, key string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
