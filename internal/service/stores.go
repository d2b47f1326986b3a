package service

import (
	"context"
	"time"

	"cantogame/internal/models"
	"cantogame/internal/repository"
)

// DeckStore is the read-only word pool
type DeckStore interface {
	GetDeck(ctx context.Context, deckID string) (*models.Deck, error)
	GetWords(ctx context.Context, deckID string) ([]models.Word, error)
	GetWordsByIDs(ctx context.Context, ids []string) ([]models.Word, error)
}

// SessionStore persists sessions and their attempts
type SessionStore interface {
	// CreateSessionUnlessLive returns the user's live session on the deck
	// instead of inserting s when one started at or after since
	CreateSessionUnlessLive(ctx context.Context, s *models.GameSession, since time.Time) (*models.GameSession, error)
	GetSession(ctx context.Context, sessionID string) (*models.GameSession, error)
	SaveAttempt(ctx context.Context, a *models.Attempt) error
	FinalizeSession(ctx context.Context, sessionID string, fn repository.FinalizeFunc) (*models.GameSession, bool, error)
	ListAbandoned(ctx context.Context, cutoff time.Time) ([]string, error)
}

// StatsStore reads aggregated history
type StatsStore interface {
	EndedSessions(ctx context.Context, userID, deckID string) ([]models.SessionScore, error)
	GetStreak(ctx context.Context, userID string) (*models.StreakRecord, error)
	WordErrorTotals(ctx context.Context, userIDs []string, deckID string) ([]models.ErrorStat, error)
}

// AssociationStore answers who may see whose data
type AssociationStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	StudentIDs(ctx context.Context, teacherID string) ([]string, error)
	ListStudents(ctx context.Context, teacherID string) ([]models.User, error)
}

var (
	_ DeckStore        = (*repository.DeckRepository)(nil)
	_ SessionStore     = (*repository.SessionRepository)(nil)
	_ StatsStore       = (*repository.StatsRepository)(nil)
	_ AssociationStore = (*repository.UserRepository)(nil)
)
