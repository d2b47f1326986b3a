package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLDialect implements Dialect for MySQL
type MySQLDialect struct{}

// NewMySQLDialect creates a new MySQL dialect
func NewMySQLDialect() *MySQLDialect {
	return &MySQLDialect{}
}

func (d *MySQLDialect) DriverName() string {
	return "mysql"
}

// DSN forces parseTime so DATETIME columns scan into time.Time, and UTC so
// stored instants round-trip unchanged.
func (d *MySQLDialect) DSN(config DialectConfig) (string, error) {
	if config.URL == "" {
		return "", errors.New("mysql DSN is required")
	}
	cfg, err := mysql.ParseDSN(config.URL)
	if err != nil {
		return "", fmt.Errorf("invalid mysql DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func (d *MySQLDialect) RewriteQuery(query string) string {
	// MySQL uses ? placeholders like SQLite, no rewrite needed
	return query
}

func (d *MySQLDialect) ConfigureConnection(db *sql.DB) error {
	// Configure connection pool for MySQL
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Ensure foreign key checks are enabled
	if _, err := db.Exec("SET FOREIGN_KEY_CHECKS = 1;"); err != nil {
		return err
	}

	return nil
}

func (d *MySQLDialect) MigrationsSubdir() string {
	return "mysql"
}

func (d *MySQLDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			filename VARCHAR(255) UNIQUE NOT NULL,
			executed_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
		);
	`
}

func (d *MySQLDialect) LockClause() string {
	return " FOR UPDATE"
}

func (d *MySQLDialect) UpsertAttemptQuery() string {
	return `
		INSERT INTO game_attempts (session_id, word_id, recognized_text, is_correct, response_time_ms, source, unavailable, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			recognized_text = VALUES(recognized_text),
			is_correct = VALUES(is_correct),
			response_time_ms = VALUES(response_time_ms),
			source = VALUES(source),
			unavailable = VALUES(unavailable),
			attempted_at = VALUES(attempted_at)
	`
}

func (d *MySQLDialect) IncrementErrorStatQuery() string {
	return `
		INSERT INTO word_error_stats (user_id, word_id, total_attempts, incorrect_attempts)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			total_attempts = total_attempts + VALUES(total_attempts),
			incorrect_attempts = incorrect_attempts + VALUES(incorrect_attempts)
	`
}

func (d *MySQLDialect) UpsertStreakQuery() string {
	return `
		INSERT INTO user_streaks (user_id, current_streak, longest_streak, last_completion_date)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			current_streak = VALUES(current_streak),
			longest_streak = VALUES(longest_streak),
			last_completion_date = VALUES(last_completion_date)
	`
}

// IsConflict matches ER_LOCK_DEADLOCK (1213) and ER_LOCK_WAIT_TIMEOUT (1205)
func (d *MySQLDialect) IsConflict(err error) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == 1213 || myErr.Number == 1205
}
