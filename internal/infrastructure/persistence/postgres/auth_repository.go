package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jyl/universe/internal/domain"
)

// === Auth Repository Implementation ===
// Implements application/auth.Repository (API keys and sessions)

const apiKeyColumns = `id::text, key_type, service, version, short_token, long_secret_hash,
	name, is_active, created_at, last_used_at, expires_at`

// FindByShortToken retrieves an active API key by its short token for validation.
func (s *Store) FindByShortToken(ctx context.Context, shortToken string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := s.q.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE short_token = $1 AND is_active`,
		shortToken,
	).Scan(&key.ID, &key.KeyType, &key.Service, &key.Version, &key.ShortToken, &key.LongSecretHash,
		&key.Name, &key.IsActive, &key.CreatedAt, &key.LastUsedAt, &key.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: API key", domain.ErrNotFound)
		}
		return nil, wrapPgError("get API key", err)
	}
	return &key, nil
}

// UpdateLastUsed updates the last used timestamp for an API key.
// Only updates if the new timestamp is later than the current value (or current value is NULL).
// Returns success (nil) if timestamp is not later (idempotent behavior).
// Returns ErrNotFound if the API key doesn't exist.
func (s *Store) UpdateLastUsed(ctx context.Context, keyID string, timestamp time.Time) error {
	if _, err := uuid.Parse(keyID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	tag, err := s.q.Exec(ctx,
		`UPDATE api_keys SET last_used_at = $2
		 WHERE id = $1 AND (last_used_at IS NULL OR last_used_at < $2)`,
		keyID, timestamp.UTC())
	if err != nil {
		return wrapPgError("update last used", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Either key doesn't exist OR timestamp wasn't later
	var exists bool
	if err := s.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM api_keys WHERE id = $1)`, keyID).Scan(&exists); err != nil {
		return wrapPgError("check key existence", err)
	}
	if !exists {
		return fmt.Errorf("%w: API key", domain.ErrNotFound)
	}
	return nil
}

// Create creates a new API key in storage.
func (s *Store) Create(ctx context.Context, key *domain.APIKey) error {
	if _, err := uuid.Parse(key.ID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	_, err := s.q.Exec(ctx,
		`INSERT INTO api_keys (id, key_type, service, version, short_token, long_secret_hash,
			name, is_active, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		key.ID, key.KeyType, key.Service, key.Version, key.ShortToken, key.LongSecretHash,
		key.Name, key.IsActive, key.CreatedAt.UTC(), key.ExpiresAt)
	if err != nil {
		return wrapPgError("create API key", err)
	}
	return nil
}

// CreateSession stores a new session.
func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO sessions (id, api_key_id, created_at, last_activity_at) VALUES ($1, $2, $3, $4)`,
		session.ID, session.KeyID, session.CreatedAt.UTC(), session.LastActivityAt.UTC())
	if err != nil {
		return wrapPgError("create session", err)
	}
	return nil
}

// FindSession retrieves a session with the name of the key that opened it.
func (s *Store) FindSession(ctx context.Context, id string) (*domain.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	var session domain.Session
	err := s.q.QueryRow(ctx,
		`SELECT s.id::text, s.api_key_id::text, k.name, s.created_at, s.last_activity_at, s.revoked_at
		 FROM sessions s JOIN api_keys k ON k.id = s.api_key_id
		 WHERE s.id = $1`,
		id,
	).Scan(&session.ID, &session.KeyID, &session.KeyName, &session.CreatedAt, &session.LastActivityAt, &session.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: session", domain.ErrNotFound)
		}
		return nil, wrapPgError("get session", err)
	}
	return &session, nil
}

// TouchSession moves last_activity_at forward. Revoked sessions and older
// timestamps are ignored.
func (s *Store) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.q.Exec(ctx,
		`UPDATE sessions SET last_activity_at = $2
		 WHERE id = $1 AND revoked_at IS NULL AND last_activity_at < $2`,
		id, at.UTC())
	if err != nil {
		return wrapPgError("touch session", err)
	}
	return nil
}

// RevokeSession marks a session revoked. Revoking twice keeps the first time.
func (s *Store) RevokeSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.q.Exec(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, at.UTC())
	if err != nil {
		return wrapPgError("revoke session", err)
	}
	return nil
}

// RevokeIdleSessions revokes every open session with no activity since
// idleSince and returns how many were revoked.
func (s *Store) RevokeIdleSessions(ctx context.Context, idleSince, at time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE revoked_at IS NULL AND last_activity_at < $1`,
		idleSince.UTC(), at.UTC())
	if err != nil {
		return 0, wrapPgError("revoke idle sessions", err)
	}
	return tag.RowsAffected(), nil
}
