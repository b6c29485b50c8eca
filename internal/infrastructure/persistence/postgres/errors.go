package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jyl/universe/internal/domain"
)

// wrapPgError maps PostgreSQL error codes onto domain errors, keeping the
// driver error in the chain.
func wrapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrAlreadyExists, err)
	case pgerrcode.InvalidTextRepresentation:
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrInvalidID, err)
	case pgerrcode.NotNullViolation, pgerrcode.CheckViolation, pgerrcode.StringDataRightTruncationDataException:
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrInvalidFieldValue, err)
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrNotFound, err)
	case pgerrcode.UndefinedTable, pgerrcode.UndefinedColumn:
		return fmt.Errorf("failed to %s: schema is behind the catalog, run migrations: %w", op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
