// Package whisper transcribes attempts with a whisper.cpp HTTP server.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"cantogame/internal/audio"
)

// Option configures a Transcriber
type Option func(*Transcriber)

// WithLanguage sets the language hint sent with each request. Defaults to
// "yue" (Cantonese).
func WithLanguage(lang string) Option {
	return func(t *Transcriber) {
		t.language = lang
	}
}

// WithModel names the model the server should use. Empty means the server's
// default.
func WithModel(model string) Option {
	return func(t *Transcriber) {
		t.model = model
	}
}

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transcriber) {
		t.httpClient = c
	}
}

// Transcriber posts each clip to the server's /inference endpoint
type Transcriber struct {
	serverURL  string
	language   string
	model      string
	httpClient *http.Client
}

// New creates a Transcriber for the server at serverURL
func New(serverURL string, opts ...Option) (*Transcriber, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	t := &Transcriber{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   "yue",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Transcribe uploads the clip as multipart form data and returns the text
func (t *Transcriber) Transcribe(ctx context.Context, clip *audio.Clip) (string, error) {
	if clip.Empty() {
		return "", errors.New("whisper: empty clip")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", clip.Filename)
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(clip.Data); err != nil {
		return "", fmt.Errorf("whisper: write audio: %w", err)
	}

	fields := map[string]string{
		"response_format": "json",
		"language":        t.language,
		"model":           t.model,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return "", fmt.Errorf("whisper: write %s field: %w", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}
