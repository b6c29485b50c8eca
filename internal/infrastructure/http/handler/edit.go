package handler

import (
	"net/http"

	"github.com/jyl/universe/internal/infrastructure/http/response"
)

// StartEditing opens the edit buffer of a row.
// PUT /v1/collections/{collection}/edit
func (h *Handler) StartEditing(w http.ResponseWriter, r *http.Request) {
	var req startEditRequest
	if !decode(w, r, &req) {
		return
	}
	m, ok := h.readyManager(w, r)
	if !ok {
		return
	}
	if _, err := m.StartEditing(r.Context(), req.RowID); err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	respondView(w, r, m)
}

// UpdateDraft patches the edit buffer.
// PATCH /v1/collections/{collection}/edit
func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req fieldsRequest
	if !decode(w, r, &req) {
		return
	}
	m, ok := h.readyManager(w, r)
	if !ok {
		return
	}
	if _, err := m.UpdateDraft(r.Context(), req.Fields); err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	respondView(w, r, m)
}

// CancelEditing discards the edit buffer.
// DELETE /v1/collections/{collection}/edit
func (h *Handler) CancelEditing(w http.ResponseWriter, r *http.Request) {
	m, ok := h.readyManager(w, r)
	if !ok {
		return
	}
	if err := m.CancelEditing(r.Context()); err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	respondView(w, r, m)
}

// SaveEdit writes the edit buffer into its row. A blank title answers
// applied=false and leaves the buffer open.
// POST /v1/collections/{collection}/edit/save
func (h *Handler) SaveEdit(w http.ResponseWriter, r *http.Request) {
	m, ok := h.readyManager(w, r)
	if !ok {
		return
	}
	row, applied, err := m.SaveEdit(r.Context())
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	h.respondMutation(w, r, m, applied, &row)
}
