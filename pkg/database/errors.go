package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors classifying store failures. Handlers map these to the
// HTTP error taxonomy (404 / 409); anything else is a StoreError (500).
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

const pgUniqueViolation = "23505"

// classifyPGError translates driver errors into the sentinel taxonomy,
// keeping the store message for propagation.
func classifyPGError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return ErrConflict
	}
	return err
}
