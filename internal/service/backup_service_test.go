package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cantogame/internal/database"
	"cantogame/internal/models"
	"cantogame/internal/repository"
	"cantogame/internal/stats"
)

func openTestDB(t *testing.T, name string) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBackupRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	src := openTestDB(t, "src.db")

	users := repository.NewUserRepository(src)
	for _, u := range []*models.User{
		{ID: "t1", Username: "ms-chan", Role: models.RoleTeacher},
		{ID: "s1", Username: "ada", Role: models.RoleStudent},
	} {
		if err := users.UpsertUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	if err := users.Associate(ctx, "s1", "t1"); err != nil {
		t.Fatal(err)
	}

	deck, words, err := repository.NewDeckRepository(src).CreateDeck(ctx, "Greetings", "", nil, []models.Word{
		{Text: "你好", Jyutping: "nei5 hou2"},
		{Text: "多謝", Jyutping: "do1 ze6"},
	})
	if err != nil {
		t.Fatal(err)
	}

	sessions := repository.NewSessionRepository(src)
	session := &models.GameSession{
		ID: "g1", UserID: "s1", DeckID: deck.ID,
		WordIDs: []string{words[1].ID, words[0].ID}, Status: models.SessionInProgress,
		StartedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := sessions.CreateSession(ctx, session); err != nil {
		t.Fatal(err)
	}
	err = sessions.SaveAttempt(ctx, &models.Attempt{
		SessionID: "g1", WordID: words[0].ID, RecognizedText: "你好", IsCorrect: true,
		ResponseTimeMs: 900, Source: models.SourceClient, AttemptedAt: session.StartedAt.Add(time.Second),
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = sessions.FinalizeSession(ctx, "g1", func(s *models.GameSession, _ *models.StreakRecord) (*repository.Finalization, error) {
		return &repository.Finalization{
			Score:   100,
			EndedAt: session.StartedAt.Add(time.Minute),
			Reason:  models.EndCompleted,
			Streak:  &models.StreakRecord{UserID: "s1", CurrentStreak: 1, LongestStreak: 1, LastCompletionDate: "2024-03-01"},
			Deltas:  stats.Fold(s, true),
		}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := NewBackupService(src).ExportToWriter(ctx, &buf); err != nil {
		t.Fatalf("ExportToWriter() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"version": "1"`) {
		t.Errorf("export missing version: %s", buf.String())
	}

	dst := openTestDB(t, "dst.db")
	if err := NewBackupService(dst).ImportFromReader(ctx, bytes.NewReader(buf.Bytes()), false); err != nil {
		t.Fatalf("ImportFromReader() error = %v", err)
	}

	restored, err := repository.NewSessionRepository(dst).GetSession(ctx, "g1")
	if err != nil || restored == nil {
		t.Fatalf("GetSession() = %v, %v", restored, err)
	}
	if restored.Score == nil || *restored.Score != 100 || restored.WordIDs[0] != words[1].ID {
		t.Errorf("restored session = %+v", restored)
	}
	if a := restored.Attempts[words[0].ID]; a == nil || !a.IsCorrect {
		t.Errorf("restored attempt = %+v", a)
	}

	streak, err := repository.NewStatsRepository(dst).GetStreak(ctx, "s1")
	if err != nil || streak == nil || streak.LastCompletionDate != "2024-03-01" {
		t.Errorf("restored streak = %+v, %v", streak, err)
	}
	ids, err := repository.NewUserRepository(dst).StudentIDs(ctx, "t1")
	if err != nil || len(ids) != 1 {
		t.Errorf("restored StudentIDs() = %v, %v", ids, err)
	}

	// a second import collides unless the tables are wiped first
	if err := NewBackupService(dst).ImportFromReader(ctx, bytes.NewReader(buf.Bytes()), false); err == nil {
		t.Error("duplicate ImportFromReader() error = nil")
	}
	if err := NewBackupService(dst).ImportFromReader(ctx, bytes.NewReader(buf.Bytes()), true); err != nil {
		t.Errorf("ImportFromReader(wipe) error = %v", err)
	}
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db := openTestDB(t, "version.db")
	err := NewBackupService(db).ImportFromReader(context.Background(), strings.NewReader(`{"version":"0"}`), false)
	if !errors.Is(err, ErrBackupVersion) {
		t.Errorf("ImportFromReader() error = %v, want ErrBackupVersion", err)
	}
}
