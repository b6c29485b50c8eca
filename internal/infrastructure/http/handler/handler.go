// Package handler maps the HTTP API onto collection list managers, the
// record service, the authenticator and the snapshot service.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jyl/universe/internal/application/collection"
	"github.com/jyl/universe/internal/domain"
	mw "github.com/jyl/universe/internal/infrastructure/http/middleware"
	"github.com/jyl/universe/internal/infrastructure/http/openapi"
	"github.com/jyl/universe/internal/infrastructure/http/response"
)

// Sessions is the part of the authenticator the API uses.
type Sessions interface {
	mw.SessionValidator
	SignIn(ctx context.Context, apiKey string) (string, *domain.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	IdleTimeout() time.Duration
}

// Snapshots is the part of the snapshot service the API uses.
type Snapshots interface {
	Export(ctx context.Context, collection, scope string) (*domain.Snapshot, error)
	List(ctx context.Context) ([]domain.SnapshotInfo, error)
	Get(ctx context.Context, id string) (*domain.Snapshot, error)
}

// Records is the record service the API uses.
type Records interface {
	Sets() []*domain.RecordSet
	List(ctx context.Context, set string, limit int) (*domain.RecordSet, []domain.Record, error)
	Get(ctx context.Context, set, key string) (*domain.RecordSet, domain.Record, error)
	Put(ctx context.Context, set, key string, fields domain.Fields) (*domain.RecordSet, domain.Record, error)
	Patch(ctx context.Context, set, key string, patch domain.Fields) (*domain.RecordSet, domain.Record, error)
	Delete(ctx context.Context, set, key string) error
}

// Handler serves the /api routes.
type Handler struct {
	hub       *collection.Hub
	sessions  Sessions
	snapshots Snapshots
	records   Records
}

// New creates a Handler.
func New(hub *collection.Hub, sessions Sessions, snapshots Snapshots, records Records) *Handler {
	return &Handler{hub: hub, sessions: sessions, snapshots: snapshots, records: records}
}

// NewRouter builds the /api router: OpenAPI request validation on every
// route and session authentication on all but sign-in. Production code
// and tests both use it so they see identical behavior.
func NewRouter(hub *collection.Hub, sessions Sessions, snapshots Snapshots, records Records) (http.Handler, error) {
	h := New(hub, sessions, snapshots, records)

	spec, err := openapi.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	validate := mw.NewValidator(spec, mw.ValidationConfig{MultiError: true})
	authenticate := mw.NewAuth(sessions).Validate

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, "NOT_FOUND", "route not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, "METHOD_NOT_ALLOWED", "method not allowed", http.StatusMethodNotAllowed)
	})

	r.With(validate).Post("/v1/auth/sessions", h.SignIn)

	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Use(validate)

		r.Get("/v1/auth/session", h.GetSession)
		r.Delete("/v1/auth/session", h.SignOut)

		r.Get("/v1/collections", h.ListCollections)
		r.Route("/v1/collections/{collection}", func(r chi.Router) {
			r.Get("/rows", h.GetRows)
			r.Post("/rows", h.InsertRow)
			r.Patch("/rows/{row_id}", h.UpdateRow)
			r.Delete("/rows/{row_id}", h.DeleteRow)
			r.Post("/rows/{row_id}/toggle", h.ToggleRow)
			r.Post("/reorder", h.ReorderRows)
			r.Post("/refresh", h.RefreshRows)

			r.Put("/edit", h.StartEditing)
			r.Patch("/edit", h.UpdateDraft)
			r.Delete("/edit", h.CancelEditing)
			r.Post("/edit/save", h.SaveEdit)

			r.Post("/snapshots", h.ExportSnapshot)
		})

		r.Get("/v1/records", h.ListRecordSets)
		r.Route("/v1/records/{record_set}", func(r chi.Router) {
			r.Get("/", h.ListRecords)
			r.Get("/{key}", h.GetRecord)
			r.Put("/{key}", h.PutRecord)
			r.Patch("/{key}", h.PatchRecord)
			r.Delete("/{key}", h.DeleteRecord)
		})

		r.Get("/v1/snapshots", h.ListSnapshots)
		r.Get("/v1/snapshots/{snapshot_id}", h.GetSnapshot)
	})

	return r, nil
}

// decode reads a JSON body into dst, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "invalid JSON")
		return false
	}
	return true
}
