package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jyl/universe/internal/domain"
	"github.com/jyl/universe/internal/infrastructure/http/response"
)

// SessionValidator checks a bearer session token.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*domain.Session, error)
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session stored by Auth, if any.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*domain.Session)
	return s, ok && s != nil
}

// Auth is HTTP middleware for session token authentication.
type Auth struct {
	sessions SessionValidator
}

// NewAuth creates a new auth middleware.
func NewAuth(sessions SessionValidator) *Auth {
	return &Auth{sessions: sessions}
}

// Validate is a Chi middleware that validates session tokens from the
// Authorization header and stores the session in the request context.
// Expects format: "Authorization: Bearer <session-token>"
func (a *Auth) Validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			slog.WarnContext(r.Context(), "authentication failed: missing Authorization header",
				"path", r.URL.Path,
				"method", r.Method)
			response.Unauthorized(w, "missing Authorization header")
			return
		}

		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || token == "" {
			slog.WarnContext(r.Context(), "authentication failed: invalid Authorization header format",
				"path", r.URL.Path,
				"method", r.Method)
			response.Unauthorized(w, "invalid Authorization header format, expected: Bearer <token>")
			return
		}

		session, err := a.sessions.ValidateSession(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrSessionRevoked):
				slog.InfoContext(r.Context(), "authentication failed: session ended",
					"path", r.URL.Path,
					"reason", err.Error())
				response.FromDomainError(w, r, err)
			case errors.Is(err, domain.ErrUnauthorized):
				slog.WarnContext(r.Context(), "authentication failed: invalid session token",
					"path", r.URL.Path,
					"method", r.Method)
				response.Unauthorized(w, "invalid session token")
			default:
				slog.ErrorContext(r.Context(), "authentication failed: unexpected error",
					"path", r.URL.Path,
					"method", r.Method,
					"error", err)
				response.Unauthorized(w, "invalid session token")
			}
			return
		}

		slog.DebugContext(r.Context(), "authentication successful",
			"path", r.URL.Path,
			"session_id", session.ID,
			"key_name", session.KeyName)

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}
