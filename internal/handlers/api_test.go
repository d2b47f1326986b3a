package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"cantogame/internal/asr/mock"
	"cantogame/internal/database"
	"cantogame/internal/models"
	"cantogame/internal/pronunciation"
	"cantogame/internal/repository"
	"cantogame/internal/service"
)

type apiFixture struct {
	server *httptest.Server
	words  []models.Word
	deck   *models.Deck
	asr    *mock.Transcriber
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "api_test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	decks := repository.NewDeckRepository(db)
	sessions := repository.NewSessionRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	users := repository.NewUserRepository(db)

	deck, words, err := decks.CreateDeck(ctx, "Greetings", "", nil, []models.Word{
		{Text: "你好", Jyutping: "nei5 hou2"},
		{Text: "多謝", Jyutping: "do1 ze6"},
	})
	if err != nil {
		t.Fatalf("CreateDeck() error = %v", err)
	}
	for _, u := range []*models.User{
		{ID: "teacher", Username: "ms-chan", Role: models.RoleTeacher},
		{ID: "student", Username: "ada", Role: models.RoleStudent},
		{ID: "other", Username: "bo", Role: models.RoleStudent},
	} {
		if err := users.UpsertUser(ctx, u); err != nil {
			t.Fatalf("UpsertUser() error = %v", err)
		}
	}
	if err := users.Associate(ctx, "student", "teacher"); err != nil {
		t.Fatalf("Associate() error = %v", err)
	}

	recognizer := &mock.Transcriber{Text: "多謝"}
	evaluator := pronunciation.NewEvaluator(pronunciation.WithTranscriber(recognizer))
	game := service.NewGameService(decks, sessions, statsRepo, evaluator, service.GameOptions{
		MaxRecordingMs: 10000,
		AbandonAfter:   24 * time.Hour,
		Location:       time.UTC,
	})
	statsSvc := service.NewStatisticsService(statsRepo, users, decks, time.UTC, 20)

	router := NewRouter(RouterConfig{
		Game:   NewGameHandler(game, 1<<20),
		Stats:  NewStatsHandler(statsSvc),
		Auth:   NewAuthenticator(testSecret),
		Health: db.PingContext,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiFixture{server: server, words: words, deck: deck, asr: recognizer}
}

func (f *apiFixture) do(t *testing.T, userID string, role models.Role, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, _ := http.NewRequest(method, f.server.URL+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, userID, role, time.Now().Add(time.Hour)))
	}
	return f.send(t, req)
}

func (f *apiFixture) send(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestGameFlow(t *testing.T) {
	f := setupAPI(t)

	resp, body := f.do(t, "student", models.RoleStudent, http.MethodPost, "/api/games/start", map[string]string{"deckId": f.deck.ID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status = %d, body = %v", resp.StatusCode, body)
	}
	session := body["session"].(map[string]any)
	sessionID := session["id"].(string)

	resp, body = f.do(t, "student", models.RoleStudent, http.MethodPost, "/api/games/start", map[string]string{"deckId": f.deck.ID})
	if resp.StatusCode != http.StatusConflict || body["sessionId"] != sessionID {
		t.Errorf("duplicate start = %d %v, want 409 naming %s", resp.StatusCode, body, sessionID)
	}

	// client text
	resp, body = f.do(t, "student", models.RoleStudent, http.MethodPost, "/api/games/"+sessionID+"/attempts", map[string]any{
		"wordId": f.words[0].ID, "recognizedText": "你好", "responseTimeMs": 900,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("attempt status = %d, body = %v", resp.StatusCode, body)
	}
	if verdict := body["verdict"].(map[string]any); verdict["isCorrect"] != true || verdict["source"] != "client" {
		t.Errorf("verdict = %v, want correct from client", verdict)
	}

	// audio upload
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wordId", f.words[1].ID)
	_ = mw.WriteField("responseTimeMs", strconv.Itoa(1000))
	part, _ := mw.CreateFormFile("audio", "take.wav")
	_, _ = part.Write([]byte("RIFF\x24\x00\x00\x00WAVEfmt "))
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, f.server.URL+"/api/games/"+sessionID+"/attempts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "student", models.RoleStudent, time.Now().Add(time.Hour)))
	resp, body = f.send(t, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audio attempt status = %d, body = %v", resp.StatusCode, body)
	}
	if verdict := body["verdict"].(map[string]any); verdict["isCorrect"] != true || verdict["source"] != "asr" {
		t.Errorf("verdict = %v, want correct from asr", verdict)
	}
	if f.asr.CallCount() != 1 {
		t.Errorf("recognizer calls = %d, want 1", f.asr.CallCount())
	}

	// someone else's session
	resp, _ = f.do(t, "other", models.RoleStudent, http.MethodPost, "/api/games/"+sessionID+"/end", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign end status = %d, want 403", resp.StatusCode)
	}

	resp, body = f.do(t, "student", models.RoleStudent, http.MethodPost, "/api/games/"+sessionID+"/end", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, body = %v", resp.StatusCode, body)
	}
	if body["score"].(float64) != 200 || body["alreadyEnded"] != false {
		t.Errorf("end body = %v, want score 200", body)
	}

	resp, body = f.do(t, "student", models.RoleStudent, http.MethodPost, "/api/games/"+sessionID+"/attempts", map[string]any{
		"wordId": f.words[0].ID, "recognizedText": "你好",
	})
	if resp.StatusCode != http.StatusConflict || body["kind"] != "invalid_state" {
		t.Errorf("attempt after end = %d %v, want 409 invalid_state", resp.StatusCode, body)
	}

	resp, body = f.do(t, "teacher", models.RoleTeacher, http.MethodGet, "/api/statistics?userId=student", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("statistics status = %d, body = %v", resp.StatusCode, body)
	}
	if summary := body["summary"].(map[string]any); summary["totalGames"].(float64) != 1 {
		t.Errorf("summary = %v, want one game", summary)
	}

	resp, _ = f.do(t, "other", models.RoleStudent, http.MethodGet, "/api/statistics?userId=student", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign statistics status = %d, want 403", resp.StatusCode)
	}

	resp, body = f.do(t, "teacher", models.RoleTeacher, http.MethodGet, "/api/students", nil)
	if resp.StatusCode != http.StatusOK || len(body["students"].([]any)) != 1 {
		t.Errorf("students = %d %v, want one student", resp.StatusCode, body)
	}

	resp, body = f.do(t, "student", models.RoleStudent, http.MethodGet, "/api/words/error-ratios?limit=abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}
}

func TestAttemptValidationOverHTTP(t *testing.T) {
	f := setupAPI(t)

	_, body := f.do(t, "student", models.RoleStudent, http.MethodPost, "/api/games/start", map[string]string{"deckId": f.deck.ID})
	sessionID := body["session"].(map[string]any)["id"].(string)

	resp, body := f.do(t, "student", models.RoleStudent, http.MethodPost, "/api/games/"+sessionID+"/attempts", map[string]any{
		"wordId": f.words[0].ID, "recognizedText": "你好", "responseTimeMs": -3,
	})
	if resp.StatusCode != http.StatusBadRequest || body["field"] != "responseTimeMs" {
		t.Errorf("negative time = %d %v, want 400 on responseTimeMs", resp.StatusCode, body)
	}

	resp, _ = f.do(t, "student", models.RoleStudent, http.MethodPost, "/api/games/missing/end", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing session status = %d, want 404", resp.StatusCode)
	}

	resp, _ = f.do(t, "student", models.RoleStudent, http.MethodPost, "/api/games/start", map[string]string{"deckId": "nope"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing deck status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	f := setupAPI(t)
	resp, body := f.do(t, "", "", http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("healthz = %d %v", resp.StatusCode, body)
	}

	resp, _ = f.do(t, "", "", http.MethodGet, "/api/students", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}
}
