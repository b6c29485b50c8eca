package domain

import "time"

// APIKey is an aggregate root representing an API key for sign-in.
//
// API keys use a split-token pattern:
//   - ShortToken: indexed portion for lookup
//   - LongSecretHash: BLAKE2b-256 hash for verification
//   - FullKey: only shown once at creation (short + long)
type APIKey struct {
	ID             string
	KeyType        string // "sk" = secret key
	Service        string // e.g. "universe"
	Version        string // e.g. "v1"
	ShortToken     string
	LongSecretHash string
	Name           string
	IsActive       bool
	CreatedAt      time.Time
	LastUsedAt     *time.Time
	ExpiresAt      *time.Time
}

// Session is a signed-in dashboard session opened with an API key.
// Sessions end by sign-out or by exceeding the idle timeout.
type Session struct {
	ID             string
	KeyID          string
	KeyName        string
	CreatedAt      time.Time
	LastActivityAt time.Time
	RevokedAt      *time.Time
}

// Active reports whether the session is neither revoked nor idle past
// idleTimeout at now.
func (s *Session) Active(now time.Time, idleTimeout time.Duration) bool {
	if s.RevokedAt != nil {
		return false
	}
	return now.Sub(s.LastActivityAt) <= idleTimeout
}

// SnapshotInfo identifies a stored export without its rows.
type SnapshotInfo struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Scope      string    `json:"scope,omitempty"`
	TakenAt    time.Time `json:"taken_at"`
	RowCount   int       `json:"row_count"`
}

// SnapshotRow is one exported row.
type SnapshotRow struct {
	ID        string    `json:"id"`
	Position  int       `json:"position"`
	Fields    Fields    `json:"fields"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is a point-in-time export of one collection scope as read
// from the row store.
type Snapshot struct {
	SnapshotInfo
	Rows []SnapshotRow `json:"rows"`
}
