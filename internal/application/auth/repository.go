package auth

import (
	"context"
	"time"

	"github.com/jyl/universe/internal/domain"
)

// Repository defines storage operations for authentication.
type Repository interface {
	// FindByShortToken retrieves an active API key by its short token.
	// Returns domain.ErrNotFound if no key matches.
	FindByShortToken(ctx context.Context, shortToken string) (*domain.APIKey, error)

	// UpdateLastUsed moves the last used timestamp of an API key forward.
	UpdateLastUsed(ctx context.Context, keyID string, timestamp time.Time) error

	// Create creates a new API key.
	// Returns domain.ErrAlreadyExists on a short token collision.
	Create(ctx context.Context, key *domain.APIKey) error

	// CreateSession stores a new session.
	CreateSession(ctx context.Context, session *domain.Session) error

	// FindSession retrieves a session, revoked or not.
	// Returns domain.ErrNotFound if it does not exist.
	FindSession(ctx context.Context, id string) (*domain.Session, error)

	// TouchSession moves last_activity_at forward on an open session.
	TouchSession(ctx context.Context, id string, at time.Time) error

	// RevokeSession marks a session revoked. Revoking twice is a no-op.
	RevokeSession(ctx context.Context, id string, at time.Time) error

	// RevokeIdleSessions revokes open sessions with no activity since
	// idleSince and returns how many were revoked.
	RevokeIdleSessions(ctx context.Context, idleSince, at time.Time) (int64, error)
}
