// Package response writes JSON bodies in the API's success and error shapes.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jyl/universe/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information. Details is always an array.
type ErrorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []ErrorField `json:"details"`
}

// ErrorField describes a field-specific error.
type ErrorField struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// encodeFailureBody is written when a response body cannot be marshaled.
const encodeFailureBody = `{"error":{"code":"INTERNAL_ERROR","message":"failed to encode response","details":[]}}`

// JSON marshals data before touching the writer so an encoding failure can
// still produce a 500 instead of a half-written success.
func JSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(encodeFailureBody))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// OK sends a 200 OK response with JSON data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created sends a 201 Created response with JSON data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent sends a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error sends a generic error response.
func Error(w http.ResponseWriter, code, message string, statusCode int) {
	JSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Details: []ErrorField{}},
	})
}

// ValidationErrors sends a 400 validation error with field details.
func ValidationErrors(w http.ResponseWriter, message string, details []ErrorField) {
	if details == nil {
		details = []ErrorField{}
	}
	JSON(w, http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{Code: "VALIDATION_ERROR", Message: message, Details: details},
	})
}

// ValidationError sends a 400 validation error for one field.
func ValidationError(w http.ResponseWriter, field, issue string) {
	ValidationErrors(w, "validation failed", []ErrorField{{Field: field, Issue: issue}})
}

// BadRequest sends a 400 Bad Request error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, "INVALID_REQUEST", message, http.StatusBadRequest)
}

// NotFound sends a 404 Not Found error.
func NotFound(w http.ResponseWriter, resource string) {
	Error(w, "NOT_FOUND", resource+" not found", http.StatusNotFound)
}

// Unauthorized sends a 401 Unauthorized error.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, "UNAUTHORIZED", message, http.StatusUnauthorized)
}

// Conflict sends a 409 Conflict error.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, "CONFLICT", message, http.StatusConflict)
}

// Unavailable sends a 503 Service Unavailable error.
func Unavailable(w http.ResponseWriter, code, message string) {
	Error(w, code, message, http.StatusServiceUnavailable)
}

// InternalError logs err and sends a generic 500 so internals are not disclosed.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "Internal server error", "error", err)
	}
	Error(w, "INTERNAL_ERROR", "an internal error occurred", http.StatusInternalServerError)
}

// FromDomainError maps domain errors to HTTP responses.
func FromDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	// Validation errors (400)
	case errors.Is(err, domain.ErrInvalidID):
		ValidationError(w, "id", "invalid ID format")
	case errors.Is(err, domain.ErrScopeRequired),
		errors.Is(err, domain.ErrInvalidScope),
		errors.Is(err, domain.ErrScopeNotSupported):
		ValidationError(w, "scope", err.Error())
	case errors.Is(err, domain.ErrInvalidRecordKey):
		ValidationError(w, "key", err.Error())
	case errors.Is(err, domain.ErrIndexOutOfRange):
		ValidationError(w, "index", err.Error())
	case errors.Is(err, domain.ErrTitleRequired),
		errors.Is(err, domain.ErrTitleTooLong),
		errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, domain.ErrInvalidFieldValue),
		errors.Is(err, domain.ErrFieldRequired):
		ValidationError(w, "fields", err.Error())
	case errors.Is(err, domain.ErrNotToggleable):
		BadRequest(w, err.Error())

	// Not found errors (404)
	case errors.Is(err, domain.ErrCollectionNotFound):
		NotFound(w, "collection")
	case errors.Is(err, domain.ErrRowNotFound):
		NotFound(w, "row")
	case errors.Is(err, domain.ErrRecordSetNotFound):
		NotFound(w, "record set")
	case errors.Is(err, domain.ErrRecordNotFound):
		NotFound(w, "record")
	case errors.Is(err, domain.ErrSnapshotNotFound):
		NotFound(w, "snapshot")
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "resource")

	// Auth errors (401)
	case errors.Is(err, domain.ErrSessionExpired):
		Unauthorized(w, "session expired due to inactivity")
	case errors.Is(err, domain.ErrSessionRevoked):
		Unauthorized(w, "session revoked")
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidAPIKeyFormat):
		Unauthorized(w, "invalid or missing credentials")

	// State errors (409, 503)
	case errors.Is(err, domain.ErrNotEditing):
		Conflict(w, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		Conflict(w, err.Error())
	case errors.Is(err, domain.ErrNotReady):
		Unavailable(w, "NOT_READY", "list is still loading")
	case errors.Is(err, domain.ErrClosed):
		Unavailable(w, "SHUTTING_DOWN", "server is shutting down")
	case errors.Is(err, context.DeadlineExceeded):
		Error(w, "TIMEOUT", "operation timed out", http.StatusGatewayTimeout)

	default:
		InternalError(w, r, err)
	}
}
