package models

import "time"

// SessionStatus is the lifecycle state of a game session
type SessionStatus string

// A session is SessionCreated only in memory, between building it and its
// insert; the insert moves it to SessionInProgress.
const (
	SessionCreated    SessionStatus = "created"
	SessionInProgress SessionStatus = "in_progress"
	SessionEnded      SessionStatus = "ended"
)

// EndReason records how a session reached the ended state
type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndExpired   EndReason = "expired"
)

// AttemptSource identifies which recognition channel produced an attempt's text
type AttemptSource string

const (
	SourceClient AttemptSource = "client"
	SourceASR    AttemptSource = "asr"
	SourceNone   AttemptSource = "none"
)

// GameSession represents one pronunciation practice session over a deck.
// A word with no entry in Attempts is still pending.
type GameSession struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	DeckID    string              `json:"deckId"`
	WordIDs   []string            `json:"wordIds"`
	Attempts  map[string]*Attempt `json:"attempts"`
	Status    SessionStatus       `json:"status"`
	StartedAt time.Time           `json:"startedAt"`
	EndedAt   *time.Time          `json:"endedAt,omitempty"`
	Score     *int                `json:"score,omitempty"`
	EndReason EndReason           `json:"endReason,omitempty"`
}

// IsEnded reports whether the session has been finalized
func (s *GameSession) IsEnded() bool {
	return s.Status == SessionEnded
}

// HasWord reports whether wordID belongs to the session's word list
func (s *GameSession) HasWord(wordID string) bool {
	for _, id := range s.WordIDs {
		if id == wordID {
			return true
		}
	}
	return false
}

// PendingWordIDs returns the words that have no recorded attempt, in session order
func (s *GameSession) PendingWordIDs() []string {
	var pending []string
	for _, id := range s.WordIDs {
		if _, ok := s.Attempts[id]; !ok {
			pending = append(pending, id)
		}
	}
	return pending
}

// Attempt represents the graded result of one spoken attempt at a word
type Attempt struct {
	SessionID      string        `db:"session_id" json:"sessionId"`
	WordID         string        `db:"word_id" json:"wordId"`
	RecognizedText string        `db:"recognized_text" json:"recognizedText"`
	IsCorrect      bool          `db:"is_correct" json:"isCorrect"`
	ResponseTimeMs int           `db:"response_time_ms" json:"responseTimeMs"`
	Source         AttemptSource `db:"source" json:"source"`
	Unavailable    bool          `db:"unavailable" json:"unavailable"`
	AttemptedAt    time.Time     `db:"attempted_at" json:"attemptedAt"`
}
