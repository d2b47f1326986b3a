package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cantogame/internal/audio"
)

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New(\"\") should fail")
	}
}

func TestTranscribeAgainstCompatibleServer(t *testing.T) {
	var gotPath, gotModel, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"nei5 hou2"}`))
	}))
	defer srv.Close()

	tr, err := New("test-key", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	clip := &audio.Clip{Data: []byte("OggS-data"), Format: audio.FormatOgg, Filename: "attempt.ogg"}
	text, err := tr.Transcribe(context.Background(), clip)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "nei5 hou2" {
		t.Errorf("Transcribe() = %q, want nei5 hou2", text)
	}
	if !strings.HasSuffix(gotPath, "/audio/transcriptions") {
		t.Errorf("path = %q, want .../audio/transcriptions", gotPath)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model = %q, want whisper-1", gotModel)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}
