package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jyl/universe/internal/domain"
)

// FindByShortToken retrieves an active API key by its short token.
func (s *Store) FindByShortToken(_ context.Context, shortToken string) (*domain.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.keys {
		if k.ShortToken == shortToken && k.IsActive {
			return &k, nil
		}
	}
	return nil, fmt.Errorf("%w: API key", domain.ErrNotFound)
}

// UpdateLastUsed moves last_used_at forward.
func (s *Store) UpdateLastUsed(_ context.Context, keyID string, timestamp time.Time) error {
	if _, err := uuid.Parse(keyID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[keyID]
	if !ok {
		return fmt.Errorf("%w: API key", domain.ErrNotFound)
	}
	if k.LastUsedAt == nil || k.LastUsedAt.Before(timestamp) {
		ts := timestamp.UTC()
		k.LastUsedAt = &ts
		s.keys[keyID] = k
	}
	return nil
}

// Create stores a new API key. Short tokens are unique.
func (s *Store) Create(_ context.Context, key *domain.APIKey) error {
	if _, err := uuid.Parse(key.ID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key.ID]; ok {
		return fmt.Errorf("failed to create API key: %w", domain.ErrAlreadyExists)
	}
	for _, k := range s.keys {
		if k.ShortToken == key.ShortToken {
			return fmt.Errorf("failed to create API key: %w", domain.ErrAlreadyExists)
		}
	}
	stored := *key
	stored.CreatedAt = key.CreatedAt.UTC()
	s.keys[key.ID] = stored
	return nil
}

// CreateSession stores a new session for an existing key.
func (s *Store) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[session.KeyID]; !ok {
		return fmt.Errorf("failed to create session: %w: API key", domain.ErrNotFound)
	}
	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("failed to create session: %w", domain.ErrAlreadyExists)
	}
	stored := *session
	stored.KeyName = ""
	stored.RevokedAt = nil
	s.sessions[session.ID] = stored
	return nil
}

// FindSession retrieves a session with the name of the key that opened it.
func (s *Store) FindSession(_ context.Context, id string) (*domain.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session", domain.ErrNotFound)
	}
	session.KeyName = s.keys[session.KeyID].Name
	return &session, nil
}

// TouchSession moves last_activity_at forward on an open session.
func (s *Store) TouchSession(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || session.RevokedAt != nil || !session.LastActivityAt.Before(at) {
		return nil
	}
	session.LastActivityAt = at.UTC()
	s.sessions[id] = session
	return nil
}

// RevokeSession marks a session revoked. Revoking twice keeps the first time.
func (s *Store) RevokeSession(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || session.RevokedAt != nil {
		return nil
	}
	ts := at.UTC()
	session.RevokedAt = &ts
	s.sessions[id] = session
	return nil
}

// RevokeIdleSessions revokes every open session with no activity since
// idleSince.
func (s *Store) RevokeIdleSessions(_ context.Context, idleSince, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	ts := at.UTC()
	for id, session := range s.sessions {
		if session.RevokedAt != nil || !session.LastActivityAt.Before(idleSince) {
			continue
		}
		session.RevokedAt = &ts
		s.sessions[id] = session
		n++
	}
	return n, nil
}
