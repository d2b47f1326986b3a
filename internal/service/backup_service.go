package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cantogame/internal/database"
)

// BackupVersion identifies the export format
const BackupVersion = "1"

// ErrBackupVersion is returned when importing an export of another format
var ErrBackupVersion = errors.New("unsupported backup version")

// BackupData is a portable copy of every table, independent of the database
// type it was taken from
type BackupData struct {
	Version      string            `json:"version"`
	ExportedAt   time.Time         `json:"exportedAt"`
	Users        []UserBackup      `json:"users"`
	Associations []AssociationRow  `json:"associations"`
	Decks        []DeckBackup      `json:"decks"`
	Words        []WordBackup      `json:"words"`
	Sessions     []SessionBackup   `json:"sessions"`
	Attempts     []AttemptBackup   `json:"attempts"`
	ErrorStats   []ErrorStatBackup `json:"errorStats"`
	Streaks      []StreakBackup    `json:"streaks"`
}

// UserBackup represents a user for backup
type UserBackup struct {
	ID          string    `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	DisplayName string    `db:"display_name" json:"displayName"`
	Email       string    `db:"email" json:"email"`
	Role        string    `db:"role" json:"role"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// AssociationRow links a student to a teacher
type AssociationRow struct {
	StudentID string `db:"student_id" json:"studentId"`
	TeacherID string `db:"teacher_id" json:"teacherId"`
}

// DeckBackup represents a deck for backup
type DeckBackup struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedBy   *string   `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// WordBackup represents a word for backup
type WordBackup struct {
	ID       string `db:"id" json:"id"`
	DeckID   string `db:"deck_id" json:"deckId"`
	Text     string `db:"text" json:"text"`
	Jyutping string `db:"jyutping" json:"jyutping"`
	Position int    `db:"position" json:"position"`
}

// SessionBackup represents a game session for backup
type SessionBackup struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"userId"`
	DeckID    string     `db:"deck_id" json:"deckId"`
	WordOrder string     `db:"word_order" json:"wordOrder"`
	Status    string     `db:"status" json:"status"`
	StartedAt time.Time  `db:"started_at" json:"startedAt"`
	EndedAt   *time.Time `db:"ended_at" json:"endedAt,omitempty"`
	Score     *int       `db:"score" json:"score,omitempty"`
	EndReason *string    `db:"end_reason" json:"endReason,omitempty"`
}

// AttemptBackup represents a recorded attempt for backup
type AttemptBackup struct {
	SessionID      string    `db:"session_id" json:"sessionId"`
	WordID         string    `db:"word_id" json:"wordId"`
	RecognizedText string    `db:"recognized_text" json:"recognizedText"`
	IsCorrect      bool      `db:"is_correct" json:"isCorrect"`
	ResponseTimeMs int       `db:"response_time_ms" json:"responseTimeMs"`
	Source         string    `db:"source" json:"source"`
	Unavailable    bool      `db:"unavailable" json:"unavailable"`
	AttemptedAt    time.Time `db:"attempted_at" json:"attemptedAt"`
}

// ErrorStatBackup represents one user's counters for a word
type ErrorStatBackup struct {
	UserID            string `db:"user_id" json:"userId"`
	WordID            string `db:"word_id" json:"wordId"`
	TotalAttempts     int    `db:"total_attempts" json:"totalAttempts"`
	IncorrectAttempts int    `db:"incorrect_attempts" json:"incorrectAttempts"`
}

// StreakBackup represents a user's streak record
type StreakBackup struct {
	UserID             string `db:"user_id" json:"userId"`
	CurrentStreak      int    `db:"current_streak" json:"currentStreak"`
	LongestStreak      int    `db:"longest_streak" json:"longestStreak"`
	LastCompletionDate string `db:"last_completion_date" json:"lastCompletionDate"`
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db *database.DB
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB) *BackupService {
	return &BackupService{db: db}
}

// tables lists every table in foreign key order
var tables = []string{
	"users",
	"student_teacher_associations",
	"decks",
	"words",
	"game_sessions",
	"game_attempts",
	"word_error_stats",
	"user_streaks",
}

// Export reads every table in one transaction so the copy is consistent
func (s *BackupService) Export(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{Version: BackupVersion, ExportedAt: time.Now().UTC()}

	err := s.db.InTx(ctx, func(tx *database.Tx) error {
		steps := []struct {
			name  string
			dest  any
			query string
		}{
			{"users", &backup.Users, "SELECT id, username, display_name, email, role, created_at FROM users ORDER BY id"},
			{"associations", &backup.Associations, "SELECT student_id, teacher_id FROM student_teacher_associations ORDER BY teacher_id, student_id"},
			{"decks", &backup.Decks, "SELECT id, name, description, created_by, created_at FROM decks ORDER BY created_at, id"},
			{"words", &backup.Words, "SELECT id, deck_id, text, jyutping, position FROM words ORDER BY deck_id, position"},
			{"sessions", &backup.Sessions, "SELECT id, user_id, deck_id, word_order, status, started_at, ended_at, score, end_reason FROM game_sessions ORDER BY started_at, id"},
			{"attempts", &backup.Attempts, "SELECT session_id, word_id, recognized_text, is_correct, response_time_ms, source, unavailable, attempted_at FROM game_attempts ORDER BY session_id, word_id"},
			{"error stats", &backup.ErrorStats, "SELECT user_id, word_id, total_attempts, incorrect_attempts FROM word_error_stats ORDER BY user_id, word_id"},
			{"streaks", &backup.Streaks, "SELECT user_id, current_streak, longest_streak, last_completion_date FROM user_streaks ORDER BY user_id"},
		}
		for _, step := range steps {
			if err := tx.SelectContext(ctx, step.dest, step.query); err != nil {
				return fmt.Errorf("failed to export %s: %w", step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("database exported",
		"users", len(backup.Users),
		"decks", len(backup.Decks),
		"words", len(backup.Words),
		"sessions", len(backup.Sessions),
		"attempts", len(backup.Attempts),
	)
	return backup, nil
}

// ExportToWriter writes an indented JSON export to w
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	backup, err := s.Export(ctx)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	return nil
}

// ImportFromReader restores a JSON export. With wipe set, existing rows are
// deleted first; otherwise the import fails on the first duplicate key. The
// whole restore is one transaction.
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader, wipe bool) error {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return fmt.Errorf("%w: %q", ErrBackupVersion, backup.Version)
	}

	err := s.db.InTx(ctx, func(tx *database.Tx) error {
		if wipe {
			for i := len(tables) - 1; i >= 0; i-- {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+tables[i]); err != nil {
					return fmt.Errorf("failed to clear %s: %w", tables[i], err)
				}
			}
		}
		return importRows(ctx, tx, &backup)
	})
	if err != nil {
		return err
	}

	slog.Info("database imported",
		"users", len(backup.Users),
		"decks", len(backup.Decks),
		"sessions", len(backup.Sessions),
		"cleared", wipe,
	)
	return nil
}

func importRows(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, u := range b.Users {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO users (id, username, display_name, email, role, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			u.ID, u.Username, u.DisplayName, u.Email, u.Role, u.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to import user %s: %w", u.ID, err)
		}
	}
	for _, a := range b.Associations {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO student_teacher_associations (student_id, teacher_id) VALUES (?, ?)",
			a.StudentID, a.TeacherID); err != nil {
			return fmt.Errorf("failed to import association %s/%s: %w", a.TeacherID, a.StudentID, err)
		}
	}
	for _, d := range b.Decks {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO decks (id, name, description, created_by, created_at) VALUES (?, ?, ?, ?, ?)",
			d.ID, d.Name, d.Description, d.CreatedBy, d.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to import deck %s: %w", d.ID, err)
		}
	}
	for _, w := range b.Words {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO words (id, deck_id, text, jyutping, position) VALUES (?, ?, ?, ?, ?)",
			w.ID, w.DeckID, w.Text, w.Jyutping, w.Position); err != nil {
			return fmt.Errorf("failed to import word %s: %w", w.ID, err)
		}
	}
	for _, s := range b.Sessions {
		var endedAt *time.Time
		if s.EndedAt != nil {
			t := s.EndedAt.UTC()
			endedAt = &t
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO game_sessions (id, user_id, deck_id, word_order, status, started_at, ended_at, score, end_reason) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			s.ID, s.UserID, s.DeckID, s.WordOrder, s.Status, s.StartedAt.UTC(), endedAt, s.Score, s.EndReason); err != nil {
			return fmt.Errorf("failed to import session %s: %w", s.ID, err)
		}
	}
	for _, a := range b.Attempts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO game_attempts (session_id, word_id, recognized_text, is_correct, response_time_ms, source, unavailable, attempted_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			a.SessionID, a.WordID, a.RecognizedText, a.IsCorrect, a.ResponseTimeMs, a.Source, a.Unavailable, a.AttemptedAt.UTC()); err != nil {
			return fmt.Errorf("failed to import attempt %s/%s: %w", a.SessionID, a.WordID, err)
		}
	}
	for _, e := range b.ErrorStats {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO word_error_stats (user_id, word_id, total_attempts, incorrect_attempts) VALUES (?, ?, ?, ?)",
			e.UserID, e.WordID, e.TotalAttempts, e.IncorrectAttempts); err != nil {
			return fmt.Errorf("failed to import error stats %s/%s: %w", e.UserID, e.WordID, err)
		}
	}
	for _, st := range b.Streaks {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_streaks (user_id, current_streak, longest_streak, last_completion_date) VALUES (?, ?, ?, ?)",
			st.UserID, st.CurrentStreak, st.LongestStreak, st.LastCompletionDate); err != nil {
			return fmt.Errorf("failed to import streak %s: %w", st.UserID, err)
		}
	}
	return nil
}
