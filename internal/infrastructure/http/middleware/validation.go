package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	nethttpmiddleware "github.com/oapi-codegen/nethttp-middleware"

	"github.com/jyl/universe/internal/infrastructure/http/response"
)

// ValidationConfig holds configuration for the OpenAPI validation middleware.
type ValidationConfig struct {
	// MultiError when true collects all validation errors instead of stopping at first.
	MultiError bool
}

// NewValidator creates OpenAPI request validation middleware that answers
// 400 for requests not matching the document. It must be mounted under
// /api. Authentication is handled by Auth, so security requirements are
// not checked here.
func NewValidator(spec *openapi3.T, config ValidationConfig) func(http.Handler) http.Handler {
	spec.Servers = openapi3.Servers{
		{URL: "/api"},
	}

	opts := &nethttpmiddleware.Options{
		Options: openapi3filter.Options{
			MultiError: config.MultiError,
			AuthenticationFunc: func(_ context.Context, _ *openapi3filter.AuthenticationInput) error {
				return nil
			},
		},
		ErrorHandlerWithOpts:  validationErrorHandler,
		SilenceServersWarning: true,
	}

	return nethttpmiddleware.OapiRequestValidatorWithOptions(spec, opts)
}

func validationErrorHandler(ctx context.Context, err error, w http.ResponseWriter, r *http.Request, opts nethttpmiddleware.ErrorHandlerOpts) {
	details := parseValidationError(err)

	slog.WarnContext(ctx, "request validation failed",
		"path", r.URL.Path,
		"method", r.Method,
		"invalid_field_count", len(details),
		"error", err.Error())

	switch opts.StatusCode {
	case http.StatusNotFound:
		response.Error(w, "NOT_FOUND", "route not found", http.StatusNotFound)
	case http.StatusMethodNotAllowed:
		response.Error(w, "METHOD_NOT_ALLOWED", "method not allowed", http.StatusMethodNotAllowed)
	default:
		response.ValidationErrors(w, "validation failed", details)
	}
}

// parseValidationError extracts field details from kin-openapi messages:
//
//	request body has an error: doesn't match schema: Error at "/source_index": number must be at least 0
//	parameter "confirm" in query has an error: value x: an invalid boolean
func parseValidationError(err error) []response.ErrorField {
	if err == nil {
		return []response.ErrorField{}
	}
	msg := err.Error()

	if field, rest, ok := quotedAfter(msg, `Error at "/`); ok {
		issue := "validation failed"
		if _, after, found := strings.Cut(rest, ":"); found && strings.TrimSpace(after) != "" {
			issue = strings.TrimSpace(after)
		}
		return []response.ErrorField{{Field: field, Issue: issue}}
	}

	if field, rest, ok := quotedAfter(msg, `parameter "`); ok {
		issue := "invalid parameter"
		if _, after, found := strings.Cut(rest, "has an error:"); found {
			issue = strings.TrimSpace(after)
		}
		return []response.ErrorField{{Field: field, Issue: issue}}
	}

	if strings.Contains(msg, "request body") {
		switch {
		case strings.Contains(msg, "doesn't match schema"), strings.Contains(msg, "doesn't match the schema"):
			return []response.ErrorField{{Field: "body", Issue: "request body doesn't match schema"}}
		case strings.Contains(msg, "required"):
			return []response.ErrorField{{Field: "body", Issue: "required field missing"}}
		default:
			return []response.ErrorField{{Field: "body", Issue: "invalid request body"}}
		}
	}

	return []response.ErrorField{}
}

// quotedAfter returns the text between marker and the next double quote,
// plus whatever follows that quote.
func quotedAfter(msg, marker string) (string, string, bool) {
	_, rest, ok := strings.Cut(msg, marker)
	if !ok {
		return "", "", false
	}
	field, after, ok := strings.Cut(rest, `"`)
	if !ok {
		return "", "", false
	}
	return field, after, true
}
