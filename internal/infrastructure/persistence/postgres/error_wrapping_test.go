package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/jyl/universe/internal/domain"
)

// wrapPgError must keep BOTH the domain error (for HTTP mapping) and the
// driver error (for logs) in the chain.
func TestWrapPgError(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{pgerrcode.UniqueViolation, domain.ErrAlreadyExists},
		{pgerrcode.InvalidTextRepresentation, domain.ErrInvalidID},
		{pgerrcode.NotNullViolation, domain.ErrInvalidFieldValue},
		{pgerrcode.CheckViolation, domain.ErrInvalidFieldValue},
		{pgerrcode.ForeignKeyViolation, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: tt.code, Message: "boom"}
			err := wrapPgError("insert into todos", pgErr)

			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, pgErr)
			assert.Contains(t, err.Error(), "insert into todos")
		})
	}
}

func TestWrapPgError_UndefinedTableHintsAtMigrations(t *testing.T) {
	err := wrapPgError("list books", &pgconn.PgError{Code: pgerrcode.UndefinedTable})
	assert.Contains(t, err.Error(), "run migrations")
}

func TestWrapPgError_NonPostgresError(t *testing.T) {
	cause := errors.New("connection reset")
	err := wrapPgError("list books", cause)

	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "failed to list books: connection reset", err.Error())
}
