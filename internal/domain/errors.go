package domain

import "errors"

// Domain errors returned by repositories, the collection manager and the auth layer.

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidID indicates the provided ID format is invalid.
	ErrInvalidID = errors.New("invalid ID format")

	// ErrCollectionNotFound indicates the collection name is not in the catalog.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrRowNotFound indicates the row id is not present in the local list.
	ErrRowNotFound = errors.New("row not found")

	// ErrRecordSetNotFound indicates the record set name is not in the catalog.
	ErrRecordSetNotFound = errors.New("record set not found")

	// ErrRecordNotFound indicates no record is stored under the key.
	ErrRecordNotFound = errors.New("record not found")

	// ErrSnapshotNotFound indicates the snapshot does not exist in the sink.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrAlreadyExists indicates a unique key is already taken.
	ErrAlreadyExists = errors.New("resource already exists")
)

// Validation errors.
var (
	ErrTitleRequired     = errors.New("title is required")
	ErrTitleTooLong      = errors.New("title must be 500 characters or less")
	ErrScopeRequired     = errors.New("scope is required for this collection")
	ErrInvalidScope      = errors.New("invalid scope")
	ErrScopeNotSupported = errors.New("collection is not scoped")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrUnknownField      = errors.New("unknown field")
	ErrInvalidFieldValue = errors.New("invalid field value")
	ErrFieldRequired     = errors.New("field is required")
	ErrNotToggleable     = errors.New("collection has no toggle field")
	ErrInvalidCatalog    = errors.New("invalid collection catalog")
	ErrInvalidRecordKey  = errors.New("invalid record key")
)

// List state errors.
var (
	// ErrNotReady indicates the list has not completed its first load.
	ErrNotReady = errors.New("list is still loading")

	// ErrNotEditing indicates no row is in the editing state.
	ErrNotEditing = errors.New("no row is being edited")

	// ErrClosed indicates the list manager has been shut down.
	ErrClosed = errors.New("list manager is closed")
)

// Auth errors.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidAPIKeyFormat = errors.New("invalid API key format")
	ErrSessionExpired      = errors.New("session expired due to inactivity")
	ErrSessionRevoked      = errors.New("session revoked")
)
