package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cantogame/internal/database"
	"cantogame/internal/models"
	"cantogame/internal/stats"
)

var (
	// ErrSessionNotFound is returned by locked operations on a missing session
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionEnded is returned when an attempt races a session's end
	ErrSessionEnded = errors.New("session already ended")
)

// Finalization is everything a session end writes in its transaction
type Finalization struct {
	Score   int
	EndedAt time.Time
	Reason  models.EndReason

	// Streak replaces the user's streak record. Nil leaves it untouched.
	Streak *models.StreakRecord

	Deltas []stats.Delta
}

// FinalizeFunc computes the end-of-session writes from the locked session and
// the user's current streak, which is nil when the user has none.
type FinalizeFunc func(session *models.GameSession, streak *models.StreakRecord) (*Finalization, error)

// SessionRepository handles database operations for game sessions and attempts
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

type sessionRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	DeckID    string         `db:"deck_id"`
	WordOrder string         `db:"word_order"`
	Status    string         `db:"status"`
	StartedAt time.Time      `db:"started_at"`
	EndedAt   sql.NullTime   `db:"ended_at"`
	Score     sql.NullInt64  `db:"score"`
	EndReason sql.NullString `db:"end_reason"`
}

const sessionColumns = "id, user_id, deck_id, word_order, status, started_at, ended_at, score, end_reason"

func (row *sessionRow) toModel() *models.GameSession {
	s := &models.GameSession{
		ID:        row.ID,
		UserID:    row.UserID,
		DeckID:    row.DeckID,
		WordIDs:   idStringToWords(row.WordOrder),
		Attempts:  make(map[string]*models.Attempt),
		Status:    models.SessionStatus(row.Status),
		StartedAt: row.StartedAt,
	}
	if row.EndedAt.Valid {
		t := row.EndedAt.Time
		s.EndedAt = &t
	}
	if row.Score.Valid {
		score := int(row.Score.Int64)
		s.Score = &score
	}
	if row.EndReason.Valid {
		s.EndReason = models.EndReason(row.EndReason.String)
	}
	return s
}

// wordsToIDString stores the session's word order as a comma-separated list
func wordsToIDString(ids []string) string {
	return strings.Join(ids, ",")
}

func idStringToWords(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// CreateSession inserts a new session and marks it in progress. Attempts on
// the model are ignored.
func (r *SessionRepository) CreateSession(ctx context.Context, s *models.GameSession) error {
	return insertSession(ctx, r.db, s)
}

func insertSession(ctx context.Context, q database.Querier, s *models.GameSession) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO game_sessions (id, user_id, deck_id, word_order, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.DeckID, wordsToIDString(s.WordIDs), string(models.SessionInProgress), s.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	s.Status = models.SessionInProgress
	return nil
}

// CreateSessionUnlessLive inserts s unless the user already has an
// in-progress session on the same deck that started at or after since. The
// live session is returned in that case and nothing is written. The check and
// the insert share one transaction: the deck row is locked on postgres and
// mysql, and sqlite write transactions hold the database lock.
func (r *SessionRepository) CreateSessionUnlessLive(ctx context.Context, s *models.GameSession, since time.Time) (live *models.GameSession, err error) {
	err = r.db.InTx(ctx, func(tx *database.Tx) error {
		if lock := tx.GetDialect().LockClause(); lock != "" {
			var id string
			err := tx.GetContext(ctx, &id, "SELECT id FROM decks WHERE id = ?"+lock, s.DeckID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to lock deck: %w", err)
			}
		}

		found, err := findLiveSession(ctx, tx, s.UserID, s.DeckID, since)
		if err != nil {
			return err
		}
		if found != nil {
			live = found
			return nil
		}
		return insertSession(ctx, tx, s)
	})
	if err != nil {
		return nil, err
	}
	return live, nil
}

// GetSession retrieves a session with its attempts
func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	return loadSession(ctx, r.db, sessionID, "")
}

// FindLiveSession returns the user's newest in-progress session on deckID
// that started at or after since
func (r *SessionRepository) FindLiveSession(ctx context.Context, userID, deckID string, since time.Time) (*models.GameSession, error) {
	return findLiveSession(ctx, r.db, userID, deckID, since)
}

func findLiveSession(ctx context.Context, q database.Querier, userID, deckID string, since time.Time) (*models.GameSession, error) {
	var row sessionRow
	err := q.GetContext(ctx, &row, `
		SELECT `+sessionColumns+`
		FROM game_sessions
		WHERE user_id = ? AND deck_id = ? AND status = ? AND started_at >= ?
		ORDER BY started_at DESC
		LIMIT 1
	`, userID, deckID, string(models.SessionInProgress), since.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find live session: %w", err)
	}
	return row.toModel(), nil
}

// loadSession reads a session and its attempts through q. A non-empty lock
// clause is appended to the session SELECT.
func loadSession(ctx context.Context, q database.Querier, sessionID, lock string) (*models.GameSession, error) {
	var row sessionRow
	query := "SELECT " + sessionColumns + " FROM game_sessions WHERE id = ?"
	if lock != "" {
		query += " " + lock
	}
	err := q.GetContext(ctx, &row, query, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var attempts []models.Attempt
	err = q.SelectContext(ctx, &attempts, `
		SELECT session_id, word_id, recognized_text, is_correct, response_time_ms, source, unavailable, attempted_at
		FROM game_attempts
		WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session attempts: %w", err)
	}

	s := row.toModel()
	for i := range attempts {
		s.Attempts[attempts[i].WordID] = &attempts[i]
	}
	return s, nil
}

// SaveAttempt records an attempt, replacing any earlier attempt at the same
// word. The session row is locked first so a concurrent end wins cleanly.
func (r *SessionRepository) SaveAttempt(ctx context.Context, a *models.Attempt) error {
	return r.db.InTx(ctx, func(tx *database.Tx) error {
		var status string
		query := "SELECT status FROM game_sessions WHERE id = ?"
		if lock := tx.GetDialect().LockClause(); lock != "" {
			query += " " + lock
		}
		err := tx.GetContext(ctx, &status, query, a.SessionID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}
		if models.SessionStatus(status) == models.SessionEnded {
			return ErrSessionEnded
		}

		_, err = tx.ExecContext(ctx, tx.GetDialect().UpsertAttemptQuery(),
			a.SessionID, a.WordID, a.RecognizedText, a.IsCorrect, a.ResponseTimeMs,
			string(a.Source), a.Unavailable, a.AttemptedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to save attempt: %w", err)
		}
		return nil
	})
}

// FinalizeSession ends a session atomically. The session row is locked and
// reloaded; if it has already ended the stored session is returned with
// alreadyEnded set and fn is not called. Otherwise fn's result is written in
// the same transaction: the session outcome, error stat increments and the
// streak.
func (r *SessionRepository) FinalizeSession(ctx context.Context, sessionID string, fn FinalizeFunc) (session *models.GameSession, alreadyEnded bool, err error) {
	err = r.db.InTx(ctx, func(tx *database.Tx) error {
		dialect := tx.GetDialect()

		s, err := loadSession(ctx, tx, sessionID, dialect.LockClause())
		if err != nil {
			return err
		}
		if s == nil {
			return ErrSessionNotFound
		}
		if s.IsEnded() {
			session, alreadyEnded = s, true
			return nil
		}

		streak, err := getStreak(ctx, tx, s.UserID, dialect.LockClause())
		if err != nil {
			return err
		}

		fin, err := fn(s, streak)
		if err != nil {
			return err
		}

		endedAt := fin.EndedAt.UTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE game_sessions
			SET status = ?, ended_at = ?, score = ?, end_reason = ?
			WHERE id = ? AND status <> ?
		`, string(models.SessionEnded), endedAt, fin.Score, string(fin.Reason), s.ID, string(models.SessionEnded))
		if err != nil {
			return fmt.Errorf("failed to end session: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: session %s changed during finalization", database.ErrConflict, s.ID)
		}

		for _, d := range fin.Deltas {
			if _, err := tx.ExecContext(ctx, dialect.IncrementErrorStatQuery(),
				s.UserID, d.WordID, d.Total, d.Incorrect); err != nil {
				return fmt.Errorf("failed to update error stats: %w", err)
			}
		}

		if fin.Streak != nil {
			if _, err := tx.ExecContext(ctx, dialect.UpsertStreakQuery(),
				s.UserID, fin.Streak.CurrentStreak, fin.Streak.LongestStreak, fin.Streak.LastCompletionDate); err != nil {
				return fmt.Errorf("failed to update streak: %w", err)
			}
		}

		score := fin.Score
		s.Status = models.SessionEnded
		s.EndedAt = &endedAt
		s.Score = &score
		s.EndReason = fin.Reason
		session = s
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return session, alreadyEnded, nil
}

// ListAbandoned returns the IDs of in-progress sessions started before cutoff
func (r *SessionRepository) ListAbandoned(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM game_sessions
		WHERE status = ? AND started_at < ?
		ORDER BY started_at
	`, string(models.SessionInProgress), cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list abandoned sessions: %w", err)
	}
	return ids, nil
}
