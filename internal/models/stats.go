package models

import "time"

// CivilDateLayout is the storage format for calendar dates
const CivilDateLayout = "2006-01-02"

// StreakRecord tracks consecutive days on which a user completed a session
type StreakRecord struct {
	UserID             string `db:"user_id" json:"userId"`
	CurrentStreak      int    `db:"current_streak" json:"currentStreak"`
	LongestStreak      int    `db:"longest_streak" json:"longestStreak"`
	LastCompletionDate string `db:"last_completion_date" json:"lastCompletionDate"`
}

// ErrorStat holds attempt totals for a word
type ErrorStat struct {
	WordID            string `db:"word_id" json:"wordId"`
	TotalAttempts     int    `db:"total_attempts" json:"totalAttempts"`
	IncorrectAttempts int    `db:"incorrect_attempts" json:"incorrectAttempts"`
}

// ErrorRatio returns incorrect attempts divided by total attempts
func (e ErrorStat) ErrorRatio() float64 {
	if e.TotalAttempts == 0 {
		return 0
	}
	return float64(e.IncorrectAttempts) / float64(e.TotalAttempts)
}

// WrongWord is a ranked entry in a top-wrong-words listing
type WrongWord struct {
	WordID            string  `json:"wordId"`
	Text              string  `json:"text"`
	Jyutping          string  `json:"jyutping"`
	TotalAttempts     int     `json:"totalAttempts"`
	IncorrectAttempts int     `json:"incorrectAttempts"`
	ErrorRatio        float64 `json:"errorRatio"`
}

// UserSummary aggregates a user's ended sessions
type UserSummary struct {
	UserID        string  `json:"userId"`
	TotalGames    int     `json:"totalGames"`
	AverageScore  float64 `json:"averageScore"`
	BestScore     int     `json:"bestScore"`
	TotalScore    int     `json:"totalScore"`
	CurrentStreak int     `json:"currentStreak"`
	LongestStreak int     `json:"longestStreak"`
}

// ScorePoint is one entry in a user's score history
type ScorePoint struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

// SessionScore is the minimal view of an ended session used for statistics
type SessionScore struct {
	SessionID string    `db:"id"`
	DeckID    string    `db:"deck_id"`
	Score     int       `db:"score"`
	EndedAt   time.Time `db:"ended_at"`
}

// StudentSummary is a student row in a teacher's or admin's class listing
type StudentSummary struct {
	User          User `json:"user"`
	TotalGames    int  `json:"totalGames"`
	TotalScore    int  `json:"totalScore"`
	BestScore     int  `json:"bestScore"`
	CurrentStreak int  `json:"currentStreak"`
	LongestStreak int  `json:"longestStreak"`
}
