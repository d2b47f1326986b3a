package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"cantogame/internal/audio"
	"cantogame/internal/models"
	"cantogame/internal/observe"
	"cantogame/internal/pronunciation"
	"cantogame/internal/repository"
	"cantogame/internal/scoring"
	"cantogame/internal/stats"
	"cantogame/internal/streak"
	"cantogame/internal/validation"
)

// GameOptions tunes a GameService
type GameOptions struct {
	// MaxRecordingMs caps response times and is the time charged for words
	// left pending at the end
	MaxRecordingMs int

	// AbandonAfter is how long an in-progress session blocks a new start on
	// the same deck
	AbandonAfter time.Duration

	// Location decides which calendar day a completion counts towards
	Location *time.Location

	Metrics *observe.Metrics
}

// GameService runs practice sessions: start, attempt submission and end
type GameService struct {
	decks     DeckStore
	sessions  SessionStore
	streaks   StatsStore
	evaluator *pronunciation.Evaluator
	opts      GameOptions

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

// NewGameService creates a new game service
func NewGameService(decks DeckStore, sessions SessionStore, streaks StatsStore, evaluator *pronunciation.Evaluator, opts GameOptions) *GameService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &GameService{
		decks:     decks,
		sessions:  sessions,
		streaks:   streaks,
		evaluator: evaluator,
		opts:      opts,
		now:       time.Now,
		shuffle:   rand.Shuffle,
	}
}

// StartResult is a new session and its words in play order
type StartResult struct {
	Session *models.GameSession `json:"session"`
	Words   []models.Word       `json:"words"`
}

// StartSession starts a session over every word of a deck in random order
func (s *GameService) StartSession(ctx context.Context, userID, deckID string) (*StartResult, error) {
	if err := errors.Join(validation.RequireID("userId", userID), validation.RequireID("deckId", deckID)); err != nil {
		return nil, err
	}

	deck, err := s.decks.GetDeck(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deck: %w", err)
	}
	if deck == nil {
		return nil, ErrDeckNotFound
	}

	words, err := s.decks.GetWords(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deck words: %w", err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyDeck
	}

	now := s.now()

	// Fisher-Yates over a copy; deck order is left untouched
	ordered := make([]models.Word, len(words))
	copy(ordered, words)
	s.shuffle(len(ordered), func(i, j int) {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	})

	ids := make([]string, len(ordered))
	for i, w := range ordered {
		ids[i] = w.ID
	}

	session := &models.GameSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		DeckID:    deckID,
		WordIDs:   ids,
		Attempts:  make(map[string]*models.Attempt),
		Status:    models.SessionCreated,
		StartedAt: now.UTC(),
	}
	live, err := s.sessions.CreateSessionUnlessLive(ctx, session, now.Add(-s.opts.AbandonAfter))
	if err != nil {
		return nil, translateStoreError(err)
	}
	if live != nil {
		return nil, &InProgressError{SessionID: live.ID}
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.SessionsStarted.Add(ctx, 1)
	}
	slog.Info("session started", "session_id", session.ID, "user_id", userID, "deck_id", deckID, "words", len(ids))

	return &StartResult{Session: session, Words: ordered}, nil
}

// AttemptInput is one submitted attempt
type AttemptInput struct {
	SessionID      string
	WordID         string
	RecognizedText string
	ResponseTimeMs int
	Audio          *audio.Clip
}

// AttemptResult is the graded attempt plus how many words remain pending
type AttemptResult struct {
	Verdict   pronunciation.Verdict `json:"verdict"`
	Attempt   *models.Attempt       `json:"attempt"`
	Remaining int                   `json:"remaining"`
}

// SubmitAttempt grades and records an attempt. Resubmitting for the same
// word replaces the earlier attempt.
func (s *GameService) SubmitAttempt(ctx context.Context, in AttemptInput) (*AttemptResult, error) {
	if err := errors.Join(validation.RequireID("sessionId", in.SessionID), validation.RequireID("wordId", in.WordID)); err != nil {
		return nil, err
	}
	responseMs, err := validation.ResponseTime(in.ResponseTimeMs, s.opts.MaxRecordingMs)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.IsEnded() {
		return nil, ErrSessionEnded
	}
	if !session.HasWord(in.WordID) {
		return nil, ErrUnknownWord
	}

	words, err := s.decks.GetWordsByIDs(ctx, []string{in.WordID})
	if err != nil {
		return nil, fmt.Errorf("failed to get word: %w", err)
	}
	if len(words) == 0 {
		return nil, ErrUnknownWord
	}

	verdict := s.evaluator.Evaluate(ctx, words[0], in.RecognizedText, in.Audio)

	attempt := &models.Attempt{
		SessionID:      session.ID,
		WordID:         in.WordID,
		RecognizedText: verdict.RecognizedText,
		IsCorrect:      verdict.IsCorrect,
		ResponseTimeMs: responseMs,
		Source:         verdict.Source,
		Unavailable:    verdict.Unavailable,
		AttemptedAt:    s.now().UTC(),
	}
	if err := s.sessions.SaveAttempt(ctx, attempt); err != nil {
		err = translateStoreError(err)
		s.recordConflict(ctx, err)
		if KindOf(err) == KindInternal {
			return nil, fmt.Errorf("failed to save attempt: %w", err)
		}
		return nil, err
	}

	session.Attempts[in.WordID] = attempt
	remaining := len(session.PendingWordIDs())

	if s.opts.Metrics != nil {
		s.opts.Metrics.Attempts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", string(verdict.Source)),
			attribute.Bool("correct", verdict.IsCorrect),
		))
		if verdict.Unavailable {
			s.opts.Metrics.EvaluationUnavailable.Add(ctx, 1)
		}
	}
	slog.Debug("attempt graded", "session_id", session.ID, "word_id", in.WordID,
		"correct", verdict.IsCorrect, "source", verdict.Source, "unavailable", verdict.Unavailable, "remaining", remaining)

	return &AttemptResult{Verdict: verdict, Attempt: attempt, Remaining: remaining}, nil
}

// EndResult is a finalized session's outcome
type EndResult struct {
	Session *models.GameSession `json:"session"`
	scoring.Breakdown
	Streak       *models.StreakRecord `json:"streak,omitempty"`
	AlreadyEnded bool                 `json:"alreadyEnded"`
}

// EndSession finalizes a session: pending words count as incorrect, the
// score is computed and the streak and error statistics are updated in one
// transaction. Ending an ended session returns the stored result.
func (s *GameService) EndSession(ctx context.Context, sessionID string) (*EndResult, error) {
	if err := validation.RequireID("sessionId", sessionID); err != nil {
		return nil, err
	}

	var next *models.StreakRecord
	session, already, err := s.sessions.FinalizeSession(ctx, sessionID,
		func(session *models.GameSession, current *models.StreakRecord) (*repository.Finalization, error) {
			fin := s.finalize(session, current, models.EndCompleted)
			next = fin.Streak
			return fin, nil
		})
	if err != nil {
		err = translateStoreError(err)
		s.recordConflict(ctx, err)
		if KindOf(err) == KindInternal {
			return nil, fmt.Errorf("failed to end session: %w", err)
		}
		return nil, err
	}

	result := &EndResult{
		Session:      session,
		Breakdown:    scoring.Calculate(scoring.FromSession(session, s.opts.MaxRecordingMs)),
		Streak:       next,
		AlreadyEnded: already,
	}
	if session.Score != nil {
		result.Score = *session.Score
	}

	if already {
		if result.Streak, err = s.streaks.GetStreak(ctx, session.UserID); err != nil {
			return nil, fmt.Errorf("failed to get streak: %w", err)
		}
		return result, nil
	}

	s.recordEnd(ctx, session, result.Score)
	slog.Info("session ended", "session_id", session.ID, "user_id", session.UserID,
		"score", result.Score, "correct", result.CorrectCount, "total", result.TotalWords)
	return result, nil
}

// ExpireAbandoned ends every in-progress session started more than olderThan
// ago. Expired sessions are scored as usual but do not advance the streak,
// and only submitted attempts reach the error statistics. It returns the
// number of sessions expired.
func (s *GameService) ExpireAbandoned(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := s.sessions.ListAbandoned(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to list abandoned sessions: %w", err)
	}

	var (
		expired int
		errs    []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		session, already, err := s.sessions.FinalizeSession(ctx, id,
			func(session *models.GameSession, current *models.StreakRecord) (*repository.Finalization, error) {
				return s.finalize(session, current, models.EndExpired), nil
			})
		if err != nil {
			err = translateStoreError(err)
			s.recordConflict(ctx, err)
			slog.Warn("failed to expire session", "session_id", id, "error", err)
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
			continue
		}
		if already {
			continue
		}
		expired++
		s.recordEnd(ctx, session, *session.Score)
	}

	if expired > 0 || len(errs) > 0 {
		slog.Info("abandoned sessions swept", "expired", expired, "failed", len(errs))
	}
	return expired, errors.Join(errs...)
}

// GetSession returns a session with its attempts
func (s *GameService) GetSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *GameService) finalize(session *models.GameSession, current *models.StreakRecord, reason models.EndReason) *repository.Finalization {
	now := s.now()
	fin := &repository.Finalization{
		Score:   scoring.Calculate(scoring.FromSession(session, s.opts.MaxRecordingMs)).Score,
		EndedAt: now,
		Reason:  reason,
	}

	if reason == models.EndExpired {
		fin.Deltas = stats.Fold(session, false)
		return fin
	}

	next := streak.Advance(session.UserID, current, streak.DateIn(now, s.opts.Location))
	fin.Streak = &next
	fin.Deltas = stats.Fold(session, true)
	return fin
}

func (s *GameService) recordEnd(ctx context.Context, session *models.GameSession, score int) {
	if s.opts.Metrics == nil {
		return
	}
	s.opts.Metrics.SessionsEnded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(session.EndReason))))
	s.opts.Metrics.SessionScore.Record(ctx, int64(score), metric.WithAttributes(attribute.String("deck_id", session.DeckID)))
}

func (s *GameService) recordConflict(ctx context.Context, err error) {
	if s.opts.Metrics == nil || !errors.Is(err, ErrConcurrencyConflict) {
		return
	}
	s.opts.Metrics.ConcurrencyConflicts.Add(ctx, 1)
}
