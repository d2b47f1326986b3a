package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"cantogame/internal/models"
	"cantogame/internal/stats"
	"cantogame/internal/validation"
)

// studentSummaryLimit bounds concurrent store reads when listing a class
const studentSummaryLimit = 8

// StatisticsService answers read-only statistics queries on behalf of a viewer
type StatisticsService struct {
	stats  StatsStore
	users  AssociationStore
	decks  DeckStore
	loc    *time.Location
	defTop int
}

// NewStatisticsService creates a new statistics service. topN is the number
// of wrong words returned when a caller asks for the default.
func NewStatisticsService(statsStore StatsStore, users AssociationStore, decks DeckStore, loc *time.Location, topN int) *StatisticsService {
	if loc == nil {
		loc = time.UTC
	}
	if topN <= 0 {
		topN = stats.DefaultTopN
	}
	return &StatisticsService{
		stats:  statsStore,
		users:  users,
		decks:  decks,
		loc:    loc,
		defTop: topN,
	}
}

// Statistics is the full statistics view of one user
type Statistics struct {
	Summary       models.UserSummary  `json:"summary"`
	ScoreHistory  []models.ScorePoint `json:"scoreHistory"`
	TopWrongWords []models.WrongWord  `json:"topWrongWords"`
}

// authorize checks that viewer may read userID's data
func (s *StatisticsService) authorize(ctx context.Context, viewer models.Viewer, userID string) error {
	if err := validation.RequireID("userId", userID); err != nil {
		return err
	}
	if viewer.UserID == userID {
		return nil
	}

	switch {
	case viewer.IsAdmin():
		user, err := s.users.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}
		return nil
	case viewer.IsTeacher():
		ids, err := s.users.StudentIDs(ctx, viewer.UserID)
		if err != nil {
			return fmt.Errorf("failed to get students: %w", err)
		}
		if slices.Contains(ids, userID) {
			return nil
		}
	}
	return ErrForbidden
}

// Summary returns a user's game totals and streak
func (s *StatisticsService) Summary(ctx context.Context, viewer models.Viewer, userID, deckID string) (*models.UserSummary, error) {
	if err := s.authorize(ctx, viewer, userID); err != nil {
		return nil, err
	}
	sessions, err := s.stats.EndedSessions(ctx, userID, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	return s.summarize(ctx, userID, sessions)
}

// ScoreHistory returns a user's mean score per day of completion, oldest first
func (s *StatisticsService) ScoreHistory(ctx context.Context, viewer models.Viewer, userID, deckID string) ([]models.ScorePoint, error) {
	if err := s.authorize(ctx, viewer, userID); err != nil {
		return nil, err
	}
	sessions, err := s.stats.EndedSessions(ctx, userID, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	return stats.History(sessions, s.loc), nil
}

// Statistics returns the summary, score history and top wrong words of a user
func (s *StatisticsService) Statistics(ctx context.Context, viewer models.Viewer, userID, deckID string) (*Statistics, error) {
	if err := s.authorize(ctx, viewer, userID); err != nil {
		return nil, err
	}

	sessions, err := s.stats.EndedSessions(ctx, userID, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	summary, err := s.summarize(ctx, userID, sessions)
	if err != nil {
		return nil, err
	}
	words, err := s.topWrongWords(ctx, []string{userID}, deckID, s.defTop)
	if err != nil {
		return nil, err
	}

	return &Statistics{
		Summary:       *summary,
		ScoreHistory:  stats.History(sessions, s.loc),
		TopWrongWords: words,
	}, nil
}

// TopWrongWords ranks words by error ratio over everything the viewer may
// see: their own attempts as a student, their students' as a teacher, and
// everyone's as an admin. A limit of zero uses the configured default.
func (s *StatisticsService) TopWrongWords(ctx context.Context, viewer models.Viewer, deckID string, limit int) ([]models.WrongWord, error) {
	if err := validation.Limit(limit); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = s.defTop
	}

	var userIDs []string
	switch {
	case viewer.IsAdmin():
		// nil selects every user
	case viewer.IsTeacher():
		ids, err := s.users.StudentIDs(ctx, viewer.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get students: %w", err)
		}
		userIDs = append([]string{}, ids...)
	default:
		userIDs = []string{viewer.UserID}
	}

	return s.topWrongWords(ctx, userIDs, deckID, limit)
}

// Students lists the viewer's students with their totals. Teachers see their
// associated students and admins see every student.
func (s *StatisticsService) Students(ctx context.Context, viewer models.Viewer) ([]models.StudentSummary, error) {
	var teacherID string
	switch {
	case viewer.IsAdmin():
	case viewer.IsTeacher():
		teacherID = viewer.UserID
	default:
		return nil, ErrForbidden
	}

	students, err := s.users.ListStudents(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	out := make([]models.StudentSummary, len(students))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(studentSummaryLimit)
	for i, student := range students {
		g.Go(func() error {
			sessions, err := s.stats.EndedSessions(gctx, student.ID, "")
			if err != nil {
				return fmt.Errorf("failed to get sessions for %s: %w", student.ID, err)
			}
			sum, err := s.summarize(gctx, student.ID, sessions)
			if err != nil {
				return err
			}
			out[i] = models.StudentSummary{
				User:          student,
				TotalGames:    sum.TotalGames,
				TotalScore:    sum.TotalScore,
				BestScore:     sum.BestScore,
				CurrentStreak: sum.CurrentStreak,
				LongestStreak: sum.LongestStreak,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StatisticsService) summarize(ctx context.Context, userID string, sessions []models.SessionScore) (*models.UserSummary, error) {
	agg := stats.Summarize(sessions)
	summary := &models.UserSummary{
		UserID:       userID,
		TotalGames:   agg.TotalGames,
		AverageScore: agg.AverageScore,
		BestScore:    agg.BestScore,
		TotalScore:   agg.TotalScore,
	}

	record, err := s.stats.GetStreak(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	if record != nil {
		summary.CurrentStreak = record.CurrentStreak
		summary.LongestStreak = record.LongestStreak
	}
	return summary, nil
}

func (s *StatisticsService) topWrongWords(ctx context.Context, userIDs []string, deckID string, limit int) ([]models.WrongWord, error) {
	totals, err := s.stats.WordErrorTotals(ctx, userIDs, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get error totals: %w", err)
	}

	ranked := stats.Rank(totals, limit)
	if len(ranked) == 0 {
		return []models.WrongWord{}, nil
	}

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.WordID
	}
	words, err := s.decks.GetWordsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get words: %w", err)
	}
	byID := make(map[string]models.Word, len(words))
	for _, w := range words {
		byID[w.ID] = w
	}

	out := make([]models.WrongWord, len(ranked))
	for i, r := range ranked {
		w := byID[r.WordID]
		out[i] = models.WrongWord{
			WordID:            r.WordID,
			Text:              w.Text,
			Jyutping:          w.Jyutping,
			TotalAttempts:     r.TotalAttempts,
			IncorrectAttempts: r.IncorrectAttempts,
			ErrorRatio:        r.ErrorRatio(),
		}
	}
	return out, nil
}
