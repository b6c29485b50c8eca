package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jyl/universe/internal/domain"
)

func nanos(t time.Time) int64 { return t.UTC().UnixNano() }

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: nanos(*t), Valid: true}
}

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

// FindByShortToken retrieves an active API key by its short token.
func (s *Store) FindByShortToken(ctx context.Context, shortToken string) (*domain.APIKey, error) {
	var (
		key                   domain.APIKey
		isActive              int64
		createdAt             int64
		lastUsedAt, expiresAt sql.NullInt64
	)
	err := s.q.QueryRowContext(ctx,
		`SELECT id, key_type, service, version, short_token, long_secret_hash,
			name, is_active, created_at, last_used_at, expires_at
		 FROM api_keys WHERE short_token = ? AND is_active = 1`,
		shortToken,
	).Scan(&key.ID, &key.KeyType, &key.Service, &key.Version, &key.ShortToken, &key.LongSecretHash,
		&key.Name, &isActive, &createdAt, &lastUsedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: API key", domain.ErrNotFound)
		}
		return nil, wrapSQLiteError("get API key", err)
	}
	key.IsActive = isActive == 1
	key.CreatedAt = fromNanos(createdAt)
	key.LastUsedAt = fromNullNanos(lastUsedAt)
	key.ExpiresAt = fromNullNanos(expiresAt)
	return &key, nil
}

// UpdateLastUsed moves last_used_at forward. Older timestamps are ignored;
// ErrNotFound is returned only when the key does not exist.
func (s *Store) UpdateLastUsed(ctx context.Context, keyID string, timestamp time.Time) error {
	if _, err := uuid.Parse(keyID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	res, err := s.q.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ?2
		 WHERE id = ?1 AND (last_used_at IS NULL OR last_used_at < ?2)`,
		keyID, nanos(timestamp))
	if err != nil {
		return wrapSQLiteError("update last used", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int64
	if err := s.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM api_keys WHERE id = ?)`, keyID).Scan(&exists); err != nil {
		return wrapSQLiteError("check key existence", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: API key", domain.ErrNotFound)
	}
	return nil
}

// Create stores a new API key.
func (s *Store) Create(ctx context.Context, key *domain.APIKey) error {
	if _, err := uuid.Parse(key.ID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	isActive := 0
	if key.IsActive {
		isActive = 1
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO api_keys (id, key_type, service, version, short_token, long_secret_hash,
			name, is_active, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.KeyType, key.Service, key.Version, key.ShortToken, key.LongSecretHash,
		key.Name, isActive, nanos(key.CreatedAt), nullNanos(key.ExpiresAt))
	if err != nil {
		return wrapSQLiteError("create API key", err)
	}
	return nil
}

// CreateSession stores a new session.
func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO sessions (id, api_key_id, created_at, last_activity_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.KeyID, nanos(session.CreatedAt), nanos(session.LastActivityAt))
	if err != nil {
		return wrapSQLiteError("create session", err)
	}
	return nil
}

// FindSession retrieves a session with the name of the key that opened it.
func (s *Store) FindSession(ctx context.Context, id string) (*domain.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	var (
		session                 domain.Session
		createdAt, lastActivity int64
		revokedAt               sql.NullInt64
	)
	err := s.q.QueryRowContext(ctx,
		`SELECT s.id, s.api_key_id, k.name, s.created_at, s.last_activity_at, s.revoked_at
		 FROM sessions s JOIN api_keys k ON k.id = s.api_key_id
		 WHERE s.id = ?`,
		id,
	).Scan(&session.ID, &session.KeyID, &session.KeyName, &createdAt, &lastActivity, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: session", domain.ErrNotFound)
		}
		return nil, wrapSQLiteError("get session", err)
	}
	session.CreatedAt = fromNanos(createdAt)
	session.LastActivityAt = fromNanos(lastActivity)
	session.RevokedAt = fromNullNanos(revokedAt)
	return &session, nil
}

// TouchSession moves last_activity_at forward on an open session.
func (s *Store) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = ?2
		 WHERE id = ?1 AND revoked_at IS NULL AND last_activity_at < ?2`,
		id, nanos(at))
	if err != nil {
		return wrapSQLiteError("touch session", err)
	}
	return nil
}

// RevokeSession marks a session revoked. Revoking twice keeps the first time.
func (s *Store) RevokeSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		nanos(at), id)
	if err != nil {
		return wrapSQLiteError("revoke session", err)
	}
	return nil
}

// RevokeIdleSessions revokes every open session with no activity since
// idleSince.
func (s *Store) RevokeIdleSessions(ctx context.Context, idleSince, at time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE revoked_at IS NULL AND last_activity_at < ?`,
		nanos(at), nanos(idleSince))
	if err != nil {
		return 0, wrapSQLiteError("revoke idle sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count revoked sessions: %w", err)
	}
	return n, nil
}
