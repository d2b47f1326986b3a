package database

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

// SQLiteDialect implements Dialect for SQLite. The driver is chosen at build
// time: mattn/go-sqlite3 with cgo, modernc.org/sqlite without.
type SQLiteDialect struct{}

// NewSQLiteDialect creates a new SQLite dialect
func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{}
}

func (d *SQLiteDialect) DriverName() string {
	return sqliteDriverName
}

// DSN opens every write transaction with BEGIN IMMEDIATE so that writers
// serialize on the database lock instead of failing at commit.
func (d *SQLiteDialect) DSN(config DialectConfig) (string, error) {
	if config.Path == "" {
		return "", errors.New("sqlite path is required")
	}
	dsn := config.Path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + sqliteDSNParams, nil
}

func (d *SQLiteDialect) RewriteQuery(query string) string {
	// SQLite uses ? placeholders, no rewrite needed
	return query
}

func (d *SQLiteDialect) ConfigureConnection(db *sql.DB) error {
	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return err
	}

	return nil
}

func (d *SQLiteDialect) MigrationsSubdir() string {
	return "sqlite"
}

func (d *SQLiteDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT UNIQUE NOT NULL,
			executed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
}

// LockClause is empty: SQLite has no row locks and IMMEDIATE transactions
// already hold the database write lock.
func (d *SQLiteDialect) LockClause() string {
	return ""
}

func (d *SQLiteDialect) UpsertAttemptQuery() string {
	return onConflictUpsertAttempt
}

func (d *SQLiteDialect) IncrementErrorStatQuery() string {
	return onConflictIncrementErrorStat
}

func (d *SQLiteDialect) UpsertStreakQuery() string {
	return onConflictUpsertStreak
}

func (d *SQLiteDialect) IsConflict(err error) bool {
	return isSQLiteConflict(err)
}
