package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"cantogame/internal/config"
	"cantogame/internal/models"
	"cantogame/internal/service"
)

func newTestApp(t *testing.T) (*App, *models.Deck, []models.Word) {
	t.Helper()
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "concurrency.db")

	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })

	deck, words, err := a.Decks.CreateDeck(context.Background(), "Greetings", "", nil, []models.Word{
		{Text: "你好", Jyutping: "nei5 hou2"},
		{Text: "多謝", Jyutping: "do1 ze6"},
		{Text: "早晨", Jyutping: "zou2 san4"},
		{Text: "再見", Jyutping: "zoi3 gin3"},
	})
	if err != nil {
		t.Fatalf("CreateDeck() error = %v", err)
	}
	return a, deck, words
}

func TestConcurrentStartsCreateOneSession(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	a, deck, _ := newTestApp(t)
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		userID := fmt.Sprintf("u%d", round)

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = a.Game.StartSession(ctx, userID, deck.ID)
			}(i)
		}
		wg.Wait()

		started := 0
		for _, err := range errs {
			switch {
			case err == nil:
				started++
			case errors.Is(err, service.ErrSessionInProgress):
			default:
				t.Fatalf("round %d: StartSession() error = %v", round, err)
			}
		}
		if started != 1 {
			t.Errorf("round %d: %d sessions started, want 1", round, started)
		}
	}
}

func TestAttemptsRacingEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	a, deck, words := newTestApp(t)
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		start, err := a.Game.StartSession(ctx, fmt.Sprintf("u%d", round), deck.ID)
		if err != nil {
			t.Fatalf("round %d: StartSession() error = %v", round, err)
		}
		sessionID := start.Session.ID

		var (
			wg     sync.WaitGroup
			ended  *service.EndResult
			endErr error
		)
		submitErrs := make([]error, 8)
		for i := range submitErrs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				w := words[i%len(words)]
				_, submitErrs[i] = a.Game.SubmitAttempt(ctx, service.AttemptInput{
					SessionID:      sessionID,
					WordID:         w.ID,
					RecognizedText: w.Text,
					ResponseTimeMs: 1000 + i,
				})
			}(i)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ended, endErr = a.Game.EndSession(ctx, sessionID)
		}()
		wg.Wait()

		if endErr != nil {
			t.Fatalf("round %d: EndSession() error = %v", round, endErr)
		}
		for i, err := range submitErrs {
			if err != nil && !errors.Is(err, service.ErrSessionEnded) {
				t.Errorf("round %d: SubmitAttempt(%d) error = %v, want nil or ErrSessionEnded", round, i, err)
			}
		}

		stored, err := a.Game.GetSession(ctx, sessionID)
		if err != nil {
			t.Fatalf("round %d: GetSession() error = %v", round, err)
		}
		if len(stored.Attempts) != len(ended.Session.Attempts) {
			t.Errorf("round %d: stored %d attempts, finalization saw %d", round, len(stored.Attempts), len(ended.Session.Attempts))
		}
		for wordID, got := range stored.Attempts {
			want, ok := ended.Session.Attempts[wordID]
			if !ok || got.ResponseTimeMs != want.ResponseTimeMs || got.IsCorrect != want.IsCorrect {
				t.Errorf("round %d: stored attempt %s = %+v, finalization saw %+v", round, wordID, got, want)
			}
		}

		again, err := a.Game.EndSession(ctx, sessionID)
		if err != nil {
			t.Fatalf("round %d: repeat EndSession() error = %v", round, err)
		}
		if !again.AlreadyEnded || again.Score != ended.Score {
			t.Errorf("round %d: repeat EndSession() = score %d, already %v; want score %d, already true",
				round, again.Score, again.AlreadyEnded, ended.Score)
		}

		if _, err := a.Game.SubmitAttempt(ctx, service.AttemptInput{
			SessionID: sessionID, WordID: words[0].ID, RecognizedText: words[0].Text, ResponseTimeMs: 500,
		}); !errors.Is(err, service.ErrSessionEnded) {
			t.Errorf("round %d: late SubmitAttempt() error = %v, want ErrSessionEnded", round, err)
		}
	}
}
