package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"cantogame/internal/database"
	"cantogame/internal/models"
)

// DeckRepository handles database operations for decks and their words
type DeckRepository struct {
	db *database.DB
}

// NewDeckRepository creates a new deck repository
func NewDeckRepository(db *database.DB) *DeckRepository {
	return &DeckRepository{db: db}
}

// CreateDeck inserts a deck and its words in one transaction. IDs and
// positions are assigned here.
func (r *DeckRepository) CreateDeck(ctx context.Context, name, description string, createdBy *string, words []models.Word) (*models.Deck, []models.Word, error) {
	deck := &models.Deck{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	}

	created := make([]models.Word, len(words))
	err := r.db.InTx(ctx, func(tx *database.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO decks (id, name, description, created_by, created_at) VALUES (?, ?, ?, ?, ?)",
			deck.ID, deck.Name, deck.Description, deck.CreatedBy, deck.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create deck: %w", err)
		}

		for i, w := range words {
			w.ID = uuid.NewString()
			w.DeckID = deck.ID
			w.Position = i
			w.CreatedAt = deck.CreatedAt
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO words (id, deck_id, text, jyutping, position, created_at) VALUES (?, ?, ?, ?, ?, ?)",
				w.ID, w.DeckID, w.Text, w.Jyutping, w.Position, w.CreatedAt); err != nil {
				return fmt.Errorf("failed to add word %q: %w", w.Text, err)
			}
			created[i] = w
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return deck, created, nil
}

// GetDeck retrieves a deck by ID
func (r *DeckRepository) GetDeck(ctx context.Context, deckID string) (*models.Deck, error) {
	var deck models.Deck
	err := r.db.GetContext(ctx, &deck,
		"SELECT id, name, description, created_by, created_at FROM decks WHERE id = ?", deckID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck: %w", err)
	}
	return &deck, nil
}

// ListDecks retrieves every deck, newest first
func (r *DeckRepository) ListDecks(ctx context.Context) ([]models.Deck, error) {
	var decks []models.Deck
	err := r.db.SelectContext(ctx, &decks,
		"SELECT id, name, description, created_by, created_at FROM decks ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	return decks, nil
}

// GetWords retrieves all words in a deck in their stored order
func (r *DeckRepository) GetWords(ctx context.Context, deckID string) ([]models.Word, error) {
	var words []models.Word
	err := r.db.SelectContext(ctx, &words, `
		SELECT id, deck_id, text, jyutping, position, created_at
		FROM words
		WHERE deck_id = ?
		ORDER BY position, id
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deck words: %w", err)
	}
	return words, nil
}

// GetWordsByIDs retrieves the given words in no particular order. Unknown
// IDs are skipped.
func (r *DeckRepository) GetWordsByIDs(ctx context.Context, ids []string) ([]models.Word, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		"SELECT id, deck_id, text, jyutping, position, created_at FROM words WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build word query: %w", err)
	}

	var words []models.Word
	if err := r.db.SelectContext(ctx, &words, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get words: %w", err)
	}
	return words, nil
}
