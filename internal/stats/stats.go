// Package stats contains the pure parts of statistics aggregation: folding a
// finished session into per-word increments, ranking words by error ratio,
// and summarizing score history.
package stats

import (
	"sort"
	"time"

	"cantogame/internal/models"
)

// DefaultTopN is the number of words returned by a top-wrong-words query
// when the caller does not ask for a specific count
const DefaultTopN = 20

// Delta is the increment a finished session contributes to one word's totals
type Delta struct {
	WordID    string
	Total     int
	Incorrect int
}

// Fold converts a finalized session into per-word increments, in session
// order. When includePending is set, words without an attempt count as one
// incorrect attempt each; otherwise they are skipped.
func Fold(session *models.GameSession, includePending bool) []Delta {
	deltas := make([]Delta, 0, len(session.WordIDs))
	for _, id := range session.WordIDs {
		attempt, ok := session.Attempts[id]
		switch {
		case ok && attempt.IsCorrect:
			deltas = append(deltas, Delta{WordID: id, Total: 1})
		case ok:
			deltas = append(deltas, Delta{WordID: id, Total: 1, Incorrect: 1})
		case includePending:
			deltas = append(deltas, Delta{WordID: id, Total: 1, Incorrect: 1})
		}
	}
	return deltas
}

// Rank orders words by descending error ratio, then by descending total
// attempts, then by ascending word id, and returns at most n entries. Words
// with no attempts are dropped. The input is not modified.
func Rank(totals []models.ErrorStat, n int) []models.ErrorStat {
	if n <= 0 {
		n = DefaultTopN
	}

	items := make([]models.ErrorStat, 0, len(totals))
	for _, s := range totals {
		if s.TotalAttempts > 0 {
			items = append(items, s)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		// Compare ratios by cross-multiplication to avoid float ties
		left := a.IncorrectAttempts * b.TotalAttempts
		right := b.IncorrectAttempts * a.TotalAttempts
		if left != right {
			return left > right
		}
		if a.TotalAttempts != b.TotalAttempts {
			return a.TotalAttempts > b.TotalAttempts
		}
		return a.WordID < b.WordID
	})

	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}

// Summary is the aggregate of a user's ended sessions
type Summary struct {
	TotalGames   int
	AverageScore float64
	BestScore    int
	TotalScore   int
}

// Summarize totals a set of ended sessions
func Summarize(sessions []models.SessionScore) Summary {
	var s Summary
	for i, session := range sessions {
		s.TotalScore += session.Score
		if i == 0 || session.Score > s.BestScore {
			s.BestScore = session.Score
		}
	}
	s.TotalGames = len(sessions)
	if s.TotalGames > 0 {
		s.AverageScore = float64(s.TotalScore) / float64(s.TotalGames)
	}
	return s
}

// History groups ended sessions by the calendar day they ended on in loc and
// returns the rounded mean score per day, oldest first.
func History(sessions []models.SessionScore, loc *time.Location) []models.ScorePoint {
	type bucket struct {
		sum, count int
	}
	buckets := make(map[string]*bucket)
	var days []string

	for _, session := range sessions {
		day := session.EndedAt.In(loc).Format(models.CivilDateLayout)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
			days = append(days, day)
		}
		b.sum += session.Score
		b.count++
	}

	sort.Strings(days)
	points := make([]models.ScorePoint, 0, len(days))
	for _, day := range days {
		b := buckets[day]
		points = append(points, models.ScorePoint{
			Date:  day,
			Score: (b.sum + b.count/2) / b.count,
		})
	}
	return points
}
