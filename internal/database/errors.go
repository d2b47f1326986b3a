package database

import (
	"errors"
	"fmt"
)

// ErrConflict is returned when the database rejects a write because of a
// lock timeout, deadlock or serialization failure. Callers may retry.
var ErrConflict = errors.New("database write conflict")

// classify wraps driver conflict errors with ErrConflict
func (db *DB) classify(err error) error {
	if err == nil || errors.Is(err, ErrConflict) {
		return err
	}
	if db.Dialect.IsConflict(err) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
