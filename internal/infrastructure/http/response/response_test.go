package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyl/universe/internal/domain"
	"github.com/jyl/universe/internal/infrastructure/http/response"
)

// unencodableType fails during JSON encoding.
type unencodableType struct {
	BadField chan int `json:"bad_field"`
}

func (u unencodableType) MarshalJSON() ([]byte, error) {
	_, err := json.Marshal(u.BadField)
	return nil, err
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var resp response.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestEncodingFailureReturns500WithErrorJSON(t *testing.T) {
	for name, send := range map[string]func(http.ResponseWriter, any){
		"ok":      response.OK,
		"created": response.Created,
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			send(w, unencodableType{})

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			resp := decodeError(t, w)
			assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
			assert.Equal(t, "failed to encode response", resp.Error.Message)
			assert.NotNil(t, resp.Error.Details)
		})
	}
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	response.OK(w, map[string]any{"id": "123", "items": []string{"a", "b"}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"123","items":["a","b"]}`, w.Body.String())
}

func TestCreated(t *testing.T) {
	w := httptest.NewRecorder()
	response.Created(w, map[string]string{"id": "new-resource-123"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":"new-resource-123"}`, w.Body.String())
}

func TestErrorAlwaysCarriesDetailsArray(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, "INVALID_INPUT", "missing required field", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t,
		`{"error":{"code":"INVALID_INPUT","message":"missing required field","details":[]}}`,
		w.Body.String())
}

func TestValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	response.ValidationError(w, "scope", "invalid scope")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "validation failed", resp.Error.Message)
	assert.Equal(t, []response.ErrorField{{Field: "scope", Issue: "invalid scope"}}, resp.Error.Details)
}

func TestFromDomainError(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{fmt.Errorf("%w: rating", domain.ErrInvalidFieldValue), http.StatusBadRequest, "VALIDATION_ERROR"},
		{domain.ErrInvalidScope, http.StatusBadRequest, "VALIDATION_ERROR"},
		{domain.ErrIndexOutOfRange, http.StatusBadRequest, "VALIDATION_ERROR"},
		{domain.ErrNotToggleable, http.StatusBadRequest, "INVALID_REQUEST"},
		{domain.ErrCollectionNotFound, http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("lookup: %w", domain.ErrRowNotFound), http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrSnapshotNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrRecordSetNotFound, http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("health_logs: %w", domain.ErrRecordNotFound), http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("%w: %w: date", domain.ErrInvalidRecordKey, domain.ErrInvalidFieldValue), http.StatusBadRequest, "VALIDATION_ERROR"},
		{domain.ErrSessionExpired, http.StatusUnauthorized, "UNAUTHORIZED"},
		{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{domain.ErrNotEditing, http.StatusConflict, "CONFLICT"},
		{domain.ErrNotReady, http.StatusServiceUnavailable, "NOT_READY"},
		{domain.ErrClosed, http.StatusServiceUnavailable, "SHUTTING_DOWN"},
		{errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			response.FromDomainError(w, r, tt.err)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, w).Error.Code)
		})
	}
}

func TestFromDomainError_RecordKeyIsReportedOnKey(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	response.FromDomainError(w, r, fmt.Errorf("%w: %w: date", domain.ErrInvalidRecordKey, domain.ErrInvalidFieldValue))

	resp := decodeError(t, w)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "key", resp.Error.Details[0].Field)
}

func TestInternalErrorHidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	response.InternalError(w, r, errors.New("password=hunter2"))

	assert.NotContains(t, w.Body.String(), "hunter2")
}
