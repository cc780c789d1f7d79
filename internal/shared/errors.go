package shared

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates a referenced resource is absent.
var ErrNotFound = errors.New("not found")

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err wraps a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
