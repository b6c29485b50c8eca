package sqlite

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jyl/universe/internal/domain"
)

// wrapSQLiteError maps constraint violations to domain errors while keeping
// the driver error in the chain.
func wrapSQLiteError(op string, err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrAlreadyExists, err)
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL, sqlite3.SQLITE_CONSTRAINT_CHECK:
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrInvalidFieldValue, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrNotFound, err)
	}

	if strings.Contains(sqliteErr.Error(), "no such table") || strings.Contains(sqliteErr.Error(), "no such column") {
		return fmt.Errorf("failed to %s (run migrations?): %w", op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
