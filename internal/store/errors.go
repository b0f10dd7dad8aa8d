package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a unique constraint
// (duplicate email or google id).
var ErrConflict = errors.New("conflict")

const uniqueViolationCode = "23505"

// mapConstraintError translates Postgres unique-violation errors into
// ErrConflict so callers can treat a create race as a retryable conflict.
func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
		return ErrConflict
	}
	return err
}
