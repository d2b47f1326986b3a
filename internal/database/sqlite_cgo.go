//go:build cgo

package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

const (
	sqliteDriverName = "sqlite3"
	sqliteDSNParams  = "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
)

func isSQLiteConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}
