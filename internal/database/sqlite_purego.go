//go:build !cgo

package database

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	sqliteDriverName = "sqlite"
	sqliteDSNParams  = "_txlock=immediate&_time_format=sqlite&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
)

func isSQLiteConflict(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	// Extended result codes carry the primary code in the low byte
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
