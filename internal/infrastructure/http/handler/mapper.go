package handler

import (
	"time"

	"github.com/jyl/universe/internal/application/collection"
	"github.com/jyl/universe/internal/domain"
	"github.com/jyl/universe/internal/ptr"
)

// Request bodies.

type signInRequest struct {
	APIKey string `json:"api_key"`
}

type fieldsRequest struct {
	Fields domain.Fields `json:"fields"`
}

type reorderRequest struct {
	SourceIndex      int `json:"source_index"`
	DestinationIndex int `json:"destination_index"`
}

type startEditRequest struct {
	RowID string `json:"row_id"`
}

// Response bodies.

type sessionDTO struct {
	ID                 string    `json:"id"`
	KeyName            string    `json:"key_name"`
	CreatedAt          time.Time `json:"created_at"`
	LastActivityAt     time.Time `json:"last_activity_at"`
	IdleTimeoutSeconds int64     `json:"idle_timeout_seconds"`
}

type signInResponse struct {
	Token   string     `json:"token"`
	Session sessionDTO `json:"session"`
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
}

type collectionDTO struct {
	Name        string             `json:"name"`
	Scope       *domain.ScopeSpec  `json:"scope,omitempty"`
	TitleField  string             `json:"title_field"`
	ToggleField string             `json:"toggle_field,omitempty"`
	Fields      []domain.FieldSpec `json:"fields"`
}

type collectionsResponse struct {
	Collections []collectionDTO `json:"collections"`
}

type rowDTO struct {
	ID          string        `json:"id"`
	Position    int           `json:"position"`
	Scope       string        `json:"scope,omitempty"`
	Fields      domain.Fields `json:"fields"`
	CreatedAt   *time.Time    `json:"created_at,omitempty"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty"`
	PendingSync bool          `json:"pending_sync"`
}

type editDTO struct {
	RowID string        `json:"row_id"`
	Draft domain.Fields `json:"draft"`
}

type syncDTO struct {
	InFlight       int                    `json:"in_flight"`
	Failures       int                    `json:"failures"`
	LastError      string                 `json:"last_error,omitempty"`
	LastErrorAt    *time.Time             `json:"last_error_at,omitempty"`
	Diverged       bool                   `json:"diverged"`
	LastDivergence *collection.Divergence `json:"last_divergence,omitempty"`
}

type viewDTO struct {
	Collection string   `json:"collection"`
	Scope      string   `json:"scope,omitempty"`
	State      string   `json:"state"`
	Rows       []rowDTO `json:"rows"`
	Editing    *editDTO `json:"editing,omitempty"`
	Sync       syncDTO  `json:"sync"`
}

type mutationResponse struct {
	Applied bool    `json:"applied"`
	Row     *rowDTO `json:"row,omitempty"`
	View    viewDTO `json:"view"`
}

type recordSetDTO struct {
	Name      string             `json:"name"`
	Key       *domain.KeySpec    `json:"key,omitempty"`
	Singleton bool               `json:"singleton"`
	Fields    []domain.FieldSpec `json:"fields"`
}

type recordSetsResponse struct {
	RecordSets []recordSetDTO `json:"record_sets"`
}

type recordDTO struct {
	Key       string        `json:"key"`
	Fields    domain.Fields `json:"fields"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type recordResponse struct {
	RecordSet string    `json:"record_set"`
	Record    recordDTO `json:"record"`
}

type recordsResponse struct {
	RecordSet string      `json:"record_set"`
	Records   []recordDTO `json:"records"`
}

type snapshotsResponse struct {
	Snapshots []domain.SnapshotInfo `json:"snapshots"`
}

func mapSession(s *domain.Session, idleTimeout time.Duration) sessionDTO {
	return sessionDTO{
		ID:                 s.ID,
		KeyName:            s.KeyName,
		CreatedAt:          s.CreatedAt,
		LastActivityAt:     s.LastActivityAt,
		IdleTimeoutSeconds: int64(idleTimeout / time.Second),
	}
}

func mapCollection(c *domain.Collection) collectionDTO {
	return collectionDTO{
		Name:        c.Name,
		Scope:       c.Scope,
		TitleField:  c.TitleField,
		ToggleField: c.ToggleField,
		Fields:      c.Fields,
	}
}

func mapRecordSet(s *domain.RecordSet) recordSetDTO {
	return recordSetDTO{Name: s.Name, Key: s.Key, Singleton: s.Singleton(), Fields: s.Fields}
}

func mapRecord(r domain.Record) recordDTO {
	fields := r.Fields
	if fields == nil {
		fields = domain.Fields{}
	}
	return recordDTO{Key: r.Key, Fields: fields, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func mapRow(r domain.Row, pending bool) rowDTO {
	fields := r.Fields
	if fields == nil {
		fields = domain.Fields{}
	}
	return rowDTO{
		ID:          r.ID,
		Position:    r.Position,
		Scope:       r.Scope,
		Fields:      fields,
		CreatedAt:   ptr.NonZero(r.CreatedAt),
		UpdatedAt:   ptr.NonZero(r.UpdatedAt),
		PendingSync: pending,
	}
}

func mapEdit(e collection.EditView) *editDTO {
	draft := e.Draft
	if draft == nil {
		draft = domain.Fields{}
	}
	return &editDTO{RowID: e.RowID, Draft: draft}
}

// mapView converts a list view; rows is never null.
func mapView(v collection.View) viewDTO {
	dto := viewDTO{
		Collection: v.Collection,
		Scope:      v.Scope,
		State:      string(v.Status),
		Rows:       make([]rowDTO, len(v.Rows)),
		Sync: syncDTO{
			InFlight:       v.Sync.InFlight,
			Failures:       v.Sync.Failures,
			LastError:      v.Sync.LastError,
			LastErrorAt:    v.Sync.LastErrorAt,
			Diverged:       v.Sync.Diverged,
			LastDivergence: v.Sync.LastDivergence,
		},
	}
	for i, r := range v.Rows {
		dto.Rows[i] = mapRow(r.Row, r.PendingSync)
	}
	if v.Editing != nil {
		dto.Editing = mapEdit(*v.Editing)
	}
	return dto
}

// pendingOf reports whether id is pending in v.
func pendingOf(v collection.View, id string) bool {
	for _, r := range v.Rows {
		if r.ID == id {
			return r.PendingSync
		}
	}
	return false
}
