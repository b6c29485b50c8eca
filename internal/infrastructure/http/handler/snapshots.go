package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jyl/universe/internal/domain"
	"github.com/jyl/universe/internal/infrastructure/http/response"
)

// ExportSnapshot stores the list as currently persisted.
// POST /v1/collections/{collection}/snapshots
func (h *Handler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Export(r.Context(), chi.URLParam(r, "collection"), r.URL.Query().Get("scope"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.Created(w, snap.SnapshotInfo)
}

// ListSnapshots lists stored snapshots, newest first.
// GET /v1/snapshots
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := h.snapshots.List(r.Context())
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	if infos == nil {
		infos = []domain.SnapshotInfo{}
	}
	response.OK(w, snapshotsResponse{Snapshots: infos})
}

// GetSnapshot returns one snapshot with its rows.
// GET /v1/snapshots/{snapshot_id}
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Get(r.Context(), chi.URLParam(r, "snapshot_id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, snap)
}
