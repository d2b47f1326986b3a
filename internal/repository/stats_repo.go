package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"cantogame/internal/database"
	"cantogame/internal/models"
)

// StatsRepository reads streaks and per-word error totals
type StatsRepository struct {
	db *database.DB
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *database.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStreak retrieves a user's streak record, or nil if they have none
func (r *StatsRepository) GetStreak(ctx context.Context, userID string) (*models.StreakRecord, error) {
	return getStreak(ctx, r.db, userID, "")
}

func getStreak(ctx context.Context, q database.Querier, userID, lock string) (*models.StreakRecord, error) {
	query := `
		SELECT user_id, current_streak, longest_streak, last_completion_date
		FROM user_streaks
		WHERE user_id = ?`
	if lock != "" {
		query += " " + lock
	}

	var streak models.StreakRecord
	err := q.GetContext(ctx, &streak, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	return &streak, nil
}

// WordErrorTotals sums error stats per word over the given users. A nil
// userIDs slice means every user; an empty non-nil slice matches nobody. A
// non-empty deckID restricts the words to that deck.
func (r *StatsRepository) WordErrorTotals(ctx context.Context, userIDs []string, deckID string) ([]models.ErrorStat, error) {
	if userIDs != nil && len(userIDs) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)
	if userIDs != nil {
		where = append(where, "s.user_id IN (?)")
		args = append(args, userIDs)
	}
	if deckID != "" {
		where = append(where, "w.deck_id = ?")
		args = append(args, deckID)
	}

	query := `
		SELECT s.word_id AS word_id,
			SUM(s.total_attempts) AS total_attempts,
			SUM(s.incorrect_attempts) AS incorrect_attempts
		FROM word_error_stats s
		JOIN words w ON w.id = s.word_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " GROUP BY s.word_id"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build error stats query: %w", err)
	}

	var totals []models.ErrorStat
	if err := r.db.SelectContext(ctx, &totals, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get error stats: %w", err)
	}
	return totals, nil
}

// EndedSessions returns a user's ended sessions, oldest first. An empty
// deckID matches every deck.
func (r *StatsRepository) EndedSessions(ctx context.Context, userID, deckID string) ([]models.SessionScore, error) {
	query := `
		SELECT id, deck_id, score, ended_at
		FROM game_sessions
		WHERE user_id = ? AND status = ?`
	args := []any{userID, string(models.SessionEnded)}
	if deckID != "" {
		query += " AND deck_id = ?"
		args = append(args, deckID)
	}
	query += " ORDER BY ended_at, id"

	var sessions []models.SessionScore
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get ended sessions: %w", err)
	}
	return sessions, nil
}
