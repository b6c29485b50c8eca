package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jyl/universe/internal/domain"
	"github.com/jyl/universe/internal/infrastructure/http/response"
)

// ListRecordSets returns the record sets of the catalog.
// GET /v1/records
func (h *Handler) ListRecordSets(w http.ResponseWriter, _ *http.Request) {
	sets := h.records.Sets()
	resp := recordSetsResponse{RecordSets: make([]recordSetDTO, len(sets))}
	for i, s := range sets {
		resp.RecordSets[i] = mapRecordSet(s)
	}
	response.OK(w, resp)
}

// ListRecords returns the newest records of a set.
// GET /v1/records/{record_set}?limit=
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.ValidationError(w, "limit", "must be an integer")
			return
		}
		limit = n
	}

	set, recs, err := h.records.List(r.Context(), chi.URLParam(r, "record_set"), limit)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	resp := recordsResponse{RecordSet: set.Name, Records: make([]recordDTO, len(recs))}
	for i, rec := range recs {
		resp.Records[i] = mapRecord(rec)
	}
	response.OK(w, resp)
}

// GetRecord returns one record. Singletons live under the key "default".
// GET /v1/records/{record_set}/{key}
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	set, rec, err := h.records.Get(r.Context(), chi.URLParam(r, "record_set"), chi.URLParam(r, "key"))
	respondRecord(w, r, set, rec, err)
}

// PutRecord replaces a record; omitted fields take their defaults.
// PUT /v1/records/{record_set}/{key}
func (h *Handler) PutRecord(w http.ResponseWriter, r *http.Request) {
	var req fieldsRequest
	if !decode(w, r, &req) {
		return
	}
	set, rec, err := h.records.Put(r.Context(), chi.URLParam(r, "record_set"), chi.URLParam(r, "key"), req.Fields)
	respondRecord(w, r, set, rec, err)
}

// PatchRecord updates some fields, creating the record when absent.
// PATCH /v1/records/{record_set}/{key}
func (h *Handler) PatchRecord(w http.ResponseWriter, r *http.Request) {
	var req fieldsRequest
	if !decode(w, r, &req) {
		return
	}
	set, rec, err := h.records.Patch(r.Context(), chi.URLParam(r, "record_set"), chi.URLParam(r, "key"), req.Fields)
	respondRecord(w, r, set, rec, err)
}

// DeleteRecord removes a record. Deleting an absent record succeeds.
// DELETE /v1/records/{record_set}/{key}
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Delete(r.Context(), chi.URLParam(r, "record_set"), chi.URLParam(r, "key")); err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.NoContent(w)
}

func respondRecord(w http.ResponseWriter, r *http.Request, set *domain.RecordSet, rec domain.Record, err error) {
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, recordResponse{RecordSet: set.Name, Record: mapRecord(rec)})
}
