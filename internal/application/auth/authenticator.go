package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jyl/universe/internal/domain"
	"github.com/jyl/universe/internal/infrastructure/keygen"
)

// Default configuration values.
const (
	DefaultOperationTimeout = 5 * time.Second
	DefaultUpdateQueueSize  = 1000
	DefaultIdleTimeout      = time.Hour
	DefaultCheckInterval    = time.Minute
)

const tokenIssuer = "universe"

// Config holds configuration for the Authenticator.
type Config struct {
	OperationTimeout time.Duration // Timeout for storage operations
	UpdateQueueSize  int           // Buffer size for activity updates

	// SessionSecret signs session tokens (HS256).
	SessionSecret []byte
	// IdleTimeout ends sessions without activity for this long.
	IdleTimeout time.Duration
	// CheckInterval is how often idle sessions are revoked in bulk.
	CheckInterval time.Duration

	// Now overrides the clock. Zero uses time.Now.
	Now func() time.Time
}

type updateKind int

const (
	keyUsed updateKind = iota
	sessionActive
)

// activityUpdate is a non-critical timestamp write handled by the worker.
type activityUpdate struct {
	kind      updateKind
	id        string
	timestamp time.Time
}

// Authenticator exchanges API keys for sessions and validates session tokens.
//
// Timestamp writes (API key last_used_at, session last_activity_at) go
// through a bounded queue drained by one worker goroutine. A second
// goroutine revokes idle sessions every CheckInterval.
type Authenticator struct {
	repo             Repository
	updates          chan activityUpdate
	shutdownChan     chan struct{}
	shutdownOnce     sync.Once // Ensures shutdown is idempotent
	wg               sync.WaitGroup
	workerCtx        context.Context
	cancelWorkers    context.CancelFunc
	operationTimeout time.Duration

	secret        []byte
	idleTimeout   time.Duration
	checkInterval time.Duration
	now           func() time.Time
}

// NewAuthenticator creates a new authenticator and starts its background
// goroutines. ctx carries values into background storage calls; its
// cancellation does not stop them, Shutdown does.
// Zero OperationTimeout means no timeout. Non-positive queue size, idle
// timeout and check interval get defaults.
func NewAuthenticator(ctx context.Context, repo Repository, config Config) *Authenticator {
	if config.OperationTimeout < 0 {
		config.OperationTimeout = DefaultOperationTimeout
	}
	if config.UpdateQueueSize <= 0 {
		config.UpdateQueueSize = DefaultUpdateQueueSize
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultCheckInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a := &Authenticator{
		repo:             repo,
		updates:          make(chan activityUpdate, config.UpdateQueueSize),
		shutdownChan:     make(chan struct{}),
		workerCtx:        workerCtx,
		cancelWorkers:    cancel,
		operationTimeout: config.OperationTimeout,
		secret:           config.SessionSecret,
		idleTimeout:      config.IdleTimeout,
		checkInterval:    config.CheckInterval,
		now:              config.Now,
	}

	a.wg.Add(2)
	go a.processUpdates()
	go a.reapIdleSessions()

	return a
}

// IdleTimeout returns the inactivity limit of a session.
func (a *Authenticator) IdleTimeout() time.Duration {
	return a.idleTimeout
}

// operationContext bounds one storage call by the operation timeout.
func (a *Authenticator) operationContext(parent context.Context) (context.Context, context.CancelFunc) {
	if a.operationTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, a.operationTimeout)
}

func (a *Authenticator) apply(update activityUpdate) {
	ctx, cancel := a.operationContext(a.workerCtx)
	defer cancel()

	var err error
	switch update.kind {
	case keyUsed:
		err = a.repo.UpdateLastUsed(ctx, update.id, update.timestamp)
	case sessionActive:
		err = a.repo.TouchSession(ctx, update.id, update.timestamp)
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to record activity",
			slog.Int("kind", int(update.kind)),
			slog.String("id", update.id),
			slog.String("error", err.Error()))
	}
}

// processUpdates drains the activity queue until shutdown, then flushes
// what is left.
func (a *Authenticator) processUpdates() {
	defer a.wg.Done()

	for {
		select {
		case update := <-a.updates:
			a.apply(update)

		case <-a.shutdownChan:
			for {
				select {
				case update := <-a.updates:
					a.apply(update)
				default:
					return
				}
			}
		}
	}
}

func (a *Authenticator) reapIdleSessions() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := a.RevokeIdleSessions(a.workerCtx); err != nil {
				slog.WarnContext(a.workerCtx, "Failed to revoke idle sessions",
					slog.String("error", err.Error()))
			}
		case <-a.shutdownChan:
			return
		}
	}
}

// RevokeIdleSessions revokes every session idle longer than the idle timeout.
func (a *Authenticator) RevokeIdleSessions(ctx context.Context) (int64, error) {
	opCtx, cancel := a.operationContext(ctx)
	defer cancel()

	now := a.now().UTC()
	n, err := a.repo.RevokeIdleSessions(opCtx, now.Add(-a.idleTimeout), now)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke idle sessions: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Revoked idle sessions",
			slog.Int64("count", n),
			slog.Duration("idle_timeout", a.idleTimeout))
	}
	return n, nil
}

func (a *Authenticator) enqueue(ctx context.Context, update activityUpdate) {
	select {
	case a.updates <- update:
	default:
		// Timestamps are non-critical; a full queue drops instead of blocking.
		slog.WarnContext(ctx, "Dropped activity update due to full queue",
			slog.String("id", update.id))
	}
}

// Shutdown stops the reaper, drains queued updates and waits for the
// worker. If ctx expires first, in-flight storage calls are cancelled.
// This method is idempotent.
func (a *Authenticator) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.shutdownOnce.Do(func() {
		close(a.shutdownChan)

		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			shutdownErr = fmt.Errorf("shutdown timeout: %w", ctx.Err())
		}
		a.cancelWorkers()
	})
	return shutdownErr
}

// ValidateAPIKey validates an API key and returns the key information if valid.
// Returns domain.ErrUnauthorized if the key is malformed, unknown, or expired.
func (a *Authenticator) ValidateAPIKey(ctx context.Context, apiKey string) (*domain.APIKey, error) {
	keyParts, err := keygen.ParseAPIKey(apiKey)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	opCtx, cancel := a.operationContext(ctx)
	defer cancel()

	key, err := a.repo.FindByShortToken(opCtx, keyParts.ShortToken)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.ErrorContext(ctx, "API key lookup failed",
				slog.String("key", keygen.MaskAPIKey(apiKey)),
				slog.String("error", err.Error()))
		}
		return nil, domain.ErrUnauthorized
	}

	// Constant-time comparison of the BLAKE2b-256 hashes
	providedHash := keygen.HashSecret(keyParts.LongSecret)
	if subtle.ConstantTimeCompare([]byte(key.LongSecretHash), []byte(providedHash)) != 1 {
		return nil, domain.ErrUnauthorized
	}

	now := a.now().UTC()
	if key.ExpiresAt != nil && key.ExpiresAt.Before(now) {
		return nil, domain.ErrUnauthorized
	}

	a.enqueue(ctx, activityUpdate{kind: keyUsed, id: key.ID, timestamp: now})

	return key, nil
}

// SignIn exchanges an API key for a new session and its signed token.
func (a *Authenticator) SignIn(ctx context.Context, apiKey string) (string, *domain.Session, error) {
	key, err := a.ValidateAPIKey(ctx, apiKey)
	if err != nil {
		return "", nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	now := a.now().UTC()
	session := &domain.Session{
		ID:             id.String(),
		KeyID:          key.ID,
		KeyName:        key.Name,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	opCtx, cancel := a.operationContext(ctx)
	defer cancel()
	if err := a.repo.CreateSession(opCtx, session); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:   tokenIssuer,
		Subject:  key.ID,
		ID:       session.ID,
		IssuedAt: jwt.NewNumericDate(now),
	}).SignedString(a.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	slog.InfoContext(ctx, "Session opened",
		slog.String("session_id", session.ID),
		slog.String("key_name", key.Name))

	return token, session, nil
}

// ValidateSession checks a session token and records activity on it.
//
// Returns domain.ErrUnauthorized for a bad token or unknown session,
// domain.ErrSessionRevoked after sign-out, and domain.ErrSessionExpired
// when the session has been idle longer than the idle timeout; an
// expired session is revoked on the spot.
func (a *Authenticator) ValidateSession(ctx context.Context, token string) (*domain.Session, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || claims.ID == "" {
		return nil, domain.ErrUnauthorized
	}

	opCtx, cancel := a.operationContext(ctx)
	defer cancel()

	session, err := a.repo.FindSession(opCtx, claims.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidID) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}

	now := a.now().UTC()
	if !session.Active(now, a.idleTimeout) {
		if err := a.repo.RevokeSession(opCtx, session.ID, now); err != nil {
			slog.WarnContext(ctx, "Failed to revoke expired session",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()))
		}
		return nil, domain.ErrSessionExpired
	}

	a.enqueue(ctx, activityUpdate{kind: sessionActive, id: session.ID, timestamp: now})
	session.LastActivityAt = now

	return session, nil
}

// SignOut revokes a session.
func (a *Authenticator) SignOut(ctx context.Context, sessionID string) error {
	opCtx, cancel := a.operationContext(ctx)
	defer cancel()

	if err := a.repo.RevokeSession(opCtx, sessionID, a.now().UTC()); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	slog.InfoContext(ctx, "Session closed", slog.String("session_id", sessionID))
	return nil
}

// CreateAPIKey creates a new API key and returns the plain key (only shown once).
func CreateAPIKey(ctx context.Context, repo Repository, keyType, service, version, name string, expiresAt *time.Time) (string, error) {
	keyParts, err := keygen.GenerateAPIKey(keyType, service, version)
	if err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}

	keyID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate key ID: %w", err)
	}

	err = repo.Create(ctx, &domain.APIKey{
		ID:             keyID.String(),
		KeyType:        keyParts.KeyType,
		Service:        keyParts.Service,
		Version:        keyParts.Version,
		ShortToken:     keyParts.ShortToken,
		LongSecretHash: keygen.HashSecret(keyParts.LongSecret),
		Name:           name,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create API key: %w", err)
	}

	// The plain key is never stored
	return keyParts.FullKey, nil
}
