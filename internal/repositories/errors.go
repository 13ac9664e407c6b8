package repositories

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"selfcheckout/internal/apperr"
)

// isDuplicateKey recognizes unique-constraint violations from PostgreSQL and SQLite.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

// translate maps storage errors onto the application taxonomy.
func translate(err error, notFound, duplicate string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(notFound)
	case isDuplicateKey(err):
		return apperr.Wrap(apperr.KindConflict, duplicate, err)
	default:
		return apperr.Internal("database error", err)
	}
}
