package models

import "time"

// Deck represents a curated set of words available for practice
type Deck struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedBy   *string   `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Word represents a single vocabulary item within a deck
type Word struct {
	ID        string    `db:"id" json:"id"`
	DeckID    string    `db:"deck_id" json:"deckId"`
	Text      string    `db:"text" json:"text"`
	Jyutping  string    `db:"jyutping" json:"jyutping"`
	Position  int       `db:"position" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}
