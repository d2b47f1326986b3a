package database

import (
	"database/sql"
	"regexp"
	"strconv"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) (string, error)

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL to create the migrations tracking table
	CreateMigrationsTableQuery() string

	// LockClause returns the suffix that takes a row lock in a SELECT, or ""
	// when the whole transaction already holds the write lock
	LockClause() string

	// UpsertAttemptQuery replaces the attempt for (session_id, word_id)
	UpsertAttemptQuery() string

	// IncrementErrorStatQuery adds to the totals for (user_id, word_id)
	IncrementErrorStatQuery() string

	// UpsertStreakQuery replaces the streak record for user_id
	UpsertStreakQuery() string

	// IsConflict reports whether err is a lock or serialization failure
	IsConflict(err error) bool
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// placeholderRegexp matches ? placeholders not inside quotes
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// Upserts shared by the dialects that support ON CONFLICT (SQLite, PostgreSQL)

const onConflictUpsertAttempt = `
	INSERT INTO game_attempts (session_id, word_id, recognized_text, is_correct, response_time_ms, source, unavailable, attempted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (session_id, word_id) DO UPDATE SET
		recognized_text = excluded.recognized_text,
		is_correct = excluded.is_correct,
		response_time_ms = excluded.response_time_ms,
		source = excluded.source,
		unavailable = excluded.unavailable,
		attempted_at = excluded.attempted_at
`

const onConflictIncrementErrorStat = `
	INSERT INTO word_error_stats (user_id, word_id, total_attempts, incorrect_attempts)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (user_id, word_id) DO UPDATE SET
		total_attempts = word_error_stats.total_attempts + excluded.total_attempts,
		incorrect_attempts = word_error_stats.incorrect_attempts + excluded.incorrect_attempts
`

const onConflictUpsertStreak = `
	INSERT INTO user_streaks (user_id, current_streak, longest_streak, last_completion_date)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (user_id) DO UPDATE SET
		current_streak = excluded.current_streak,
		longest_streak = excluded.longest_streak,
		last_completion_date = excluded.last_completion_date
`
