// Package scoring turns a session's per-word outcomes into a numeric score.
package scoring

import "cantogame/internal/models"

const (
	// PointsPerCorrect is awarded for each correctly pronounced word
	PointsPerCorrect = 100

	// PenaltyPerSecond is deducted per whole second of average response time
	PenaltyPerSecond = 10
)

// Result is one word's outcome within a session
type Result struct {
	IsCorrect      bool
	ResponseTimeMs int
}

// Breakdown is a computed score together with the figures that produced it
type Breakdown struct {
	Score             int `json:"score"`
	CorrectCount      int `json:"correctCount"`
	TotalWords        int `json:"totalWords"`
	AverageResponseMs int `json:"averageResponseMs"`
}

// Calculate computes
//
//	score = max(0, correct*100 - floor(avgResponseMs/1000)*10)
//
// where avgResponseMs is the integer mean over all results. An empty input
// scores 0.
func Calculate(results []Result) Breakdown {
	if len(results) == 0 {
		return Breakdown{}
	}

	correct := 0
	totalMs := 0
	for _, r := range results {
		if r.IsCorrect {
			correct++
		}
		if r.ResponseTimeMs > 0 {
			totalMs += r.ResponseTimeMs
		}
	}

	avg := totalMs / len(results)
	score := correct*PointsPerCorrect - (avg/1000)*PenaltyPerSecond
	if score < 0 {
		score = 0
	}

	return Breakdown{
		Score:             score,
		CorrectCount:      correct,
		TotalWords:        len(results),
		AverageResponseMs: avg,
	}
}

// FromSession builds one Result per session word in order. Pending words are
// incorrect with sentinelMs as their response time, and recorded times are
// capped at sentinelMs.
func FromSession(session *models.GameSession, sentinelMs int) []Result {
	results := make([]Result, 0, len(session.WordIDs))
	for _, id := range session.WordIDs {
		attempt, ok := session.Attempts[id]
		if !ok {
			results = append(results, Result{IsCorrect: false, ResponseTimeMs: sentinelMs})
			continue
		}
		ms := attempt.ResponseTimeMs
		if ms > sentinelMs {
			ms = sentinelMs
		}
		results = append(results, Result{IsCorrect: attempt.IsCorrect, ResponseTimeMs: ms})
	}
	return results
}
