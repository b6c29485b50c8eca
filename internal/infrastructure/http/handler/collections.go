package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jyl/universe/internal/application/collection"
	"github.com/jyl/universe/internal/domain"
	"github.com/jyl/universe/internal/infrastructure/http/response"
)

// ListCollections returns the catalog.
// GET /v1/collections
func (h *Handler) ListCollections(w http.ResponseWriter, _ *http.Request) {
	all := h.hub.Catalog().All()
	resp := collectionsResponse{Collections: make([]collectionDTO, len(all))}
	for i, c := range all {
		resp.Collections[i] = mapCollection(c)
	}
	response.OK(w, resp)
}

// manager resolves the list addressed by the collection path parameter and
// the scope query parameter.
func (h *Handler) manager(w http.ResponseWriter, r *http.Request) (*collection.Manager, bool) {
	m, err := h.hub.Manager(chi.URLParam(r, "collection"), r.URL.Query().Get("scope"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return nil, false
	}
	return m, true
}

// readyManager is manager plus a completed first load, which every
// mutation needs.
func (h *Handler) readyManager(w http.ResponseWriter, r *http.Request) (*collection.Manager, bool) {
	m, ok := h.manager(w, r)
	if !ok {
		return nil, false
	}
	if err := m.Load(r.Context()); err != nil {
		if errors.Is(err, domain.ErrClosed) || r.Context().Err() != nil {
			response.FromDomainError(w, r, err)
			return nil, false
		}
		slog.WarnContext(r.Context(), "list load failed",
			"collection", m.Collection().Name,
			"scope", m.Scope(),
			"error", err)
		response.FromDomainError(w, r, domain.ErrNotReady)
		return nil, false
	}
	return m, true
}

// respondMutation answers with the outcome of a mutation and the view it left.
func (h *Handler) respondMutation(w http.ResponseWriter, r *http.Request, m *collection.Manager, applied bool, row *domain.Row) {
	v, err := m.View(r.Context())
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	resp := mutationResponse{Applied: applied, View: mapView(v)}
	if row != nil && row.ID != "" {
		dto := mapRow(*row, pendingOf(v, row.ID))
		resp.Row = &dto
	}
	response.OK(w, resp)
}

// respondView answers with the current view of a list.
func respondView(w http.ResponseWriter, r *http.Request, m *collection.Manager) {
	v, err := m.View(r.Context())
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, mapView(v))
}

// GetRows returns a list, loading it on first use. A failed first load
// answers with state "loading" rather than an error.
// GET /v1/collections/{collection}/rows
func (h *Handler) GetRows(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	respondView(w, r, m)
}

// InsertRow appends a row. A blank title answers applied=false.
// POST /v1/collections/{collection}/rows
func (h *Handler) InsertRow(w http.ResponseWriter, r *http.Request) {
	var req fieldsRequest
	if !decode(w, r, &req) {
		return
	}
	m, ok := h.readyManager(w, r)
	if !ok {
		return
	}

	row, applied, err := m.Insert(r.Context(), req.Fields)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	if applied {
		slog.InfoContext(r.Context(), "row inserted via HTTP",
			"collection", m.Collection().Name,
			"scope", m.Scope(),
			"row_id", row.ID)
	}
	h.respondMutation(w, r, m, applied, &row)
}

// UpdateRow patches payload fields of a row.
// PATCH /v1/collections/{collection}/rows/{row_id}
func (h *Handler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	var req fieldsRequest
	if !decode(w, r, &req) {
		return
	}
	m, ok := h.readyManager(w, r)
	if !ok {
		return
	}

	row, applied, err := m.Update(r.Context(), chi.URLParam(r, "row_id"), req.Fields)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	h.respondMutation(w, r, m, applied, &row)
}

// DeleteRow removes a row when confirm=true; otherwise nothing happens.
// DELETE /v1/collections/{collection}/rows/{row_id}
func (h *Handler) DeleteRow(w http.ResponseWriter, r *http.Request) {
	confirmed := false
	if raw := r.URL.Query().Get("confirm"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.ValidationError(w, "confirm", "must be a boolean")
			return
		}
		confirmed = v
	}
	m, ok := h.readyManager(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "row_id")
	applied, err := m.Delete(r.Context(), id, confirmed)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	if applied {
		slog.InfoContext(r.Context(), "row deleted via HTTP",
			"collection", m.Collection().Name,
			"row_id", id)
	}
	h.respondMutation(w, r, m, applied, nil)
}

// ToggleRow flips the collection's toggle field.
// POST /v1/collections/{collection}/rows/{row_id}/toggle
func (h *Handler) ToggleRow(w http.ResponseWriter, r *http.Request) {
	m, ok := h.readyManager(w, r)
	if !ok {
		return
	}

	row, err := m.Toggle(r.Context(), chi.URLParam(r, "row_id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	h.respondMutation(w, r, m, true, &row)
}

// ReorderRows moves one row and renumbers the list.
// POST /v1/collections/{collection}/reorder
func (h *Handler) ReorderRows(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !decode(w, r, &req) {
		return
	}
	m, ok := h.readyManager(w, r)
	if !ok {
		return
	}

	applied, err := m.Reorder(r.Context(), req.SourceIndex, req.DestinationIndex)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	h.respondMutation(w, r, m, applied, nil)
}

// RefreshRows replaces the list with a full re-fetch. On failure the
// current rows stay and 502 is returned.
// POST /v1/collections/{collection}/refresh
func (h *Handler) RefreshRows(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	if err := m.Refresh(r.Context()); err != nil {
		if errors.Is(err, domain.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			response.FromDomainError(w, r, err)
			return
		}
		slog.ErrorContext(r.Context(), "list refresh failed",
			"collection", m.Collection().Name,
			"scope", m.Scope(),
			"error", err)
		response.Error(w, "REFRESH_FAILED", "failed to refresh list", http.StatusBadGateway)
		return
	}
	respondView(w, r, m)
}
