package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jyl/universe/internal/domain"
	mw "github.com/jyl/universe/internal/infrastructure/http/middleware"
	"github.com/jyl/universe/internal/infrastructure/http/response"
)

// SignIn exchanges an API key for a session token.
// POST /v1/auth/sessions
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decode(w, r, &req) {
		return
	}

	token, session, err := h.sessions.SignIn(r.Context(), req.APIKey)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrInvalidAPIKeyFormat) {
			slog.WarnContext(r.Context(), "sign-in rejected", "path", r.URL.Path)
			response.Unauthorized(w, "invalid or expired API key")
			return
		}
		response.InternalError(w, r, err)
		return
	}

	response.Created(w, signInResponse{
		Token:   token,
		Session: mapSession(session, h.sessions.IdleTimeout()),
	})
}

// GetSession returns the session of the request.
// GET /v1/auth/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := mw.SessionFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "no session")
		return
	}
	response.OK(w, sessionResponse{Session: mapSession(session, h.sessions.IdleTimeout())})
}

// SignOut revokes the session of the request.
// DELETE /v1/auth/session
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	session, ok := mw.SessionFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "no session")
		return
	}
	if err := h.sessions.SignOut(r.Context(), session.ID); err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.NoContent(w)
}
