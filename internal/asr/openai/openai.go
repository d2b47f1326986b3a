// Package openai transcribes attempts with the OpenAI audio transcription
// API or any server that implements it.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"cantogame/internal/audio"
)

// Option configures a Transcriber
type Option func(*config)

type config struct {
	baseURL  string
	model    string
	language string
	timeout  time.Duration
}

// WithBaseURL points the client at an OpenAI-compatible server
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithLanguage sets the ISO-639-1 language hint. Defaults to "zh", the
// closest code the API accepts for Cantonese.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Transcriber calls the audio transcription endpoint
type Transcriber struct {
	client   oai.Client
	model    string
	language string
}

// New creates a Transcriber authenticated with apiKey
func New(apiKey string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key must not be empty")
	}

	cfg := config{
		model:    string(oai.AudioModelWhisper1),
		language: "zh",
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
		// retries are handled by the failover group
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Transcriber{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
	}, nil
}

// Transcribe uploads the clip and returns the recognized text
func (t *Transcriber) Transcribe(ctx context.Context, clip *audio.Clip) (string, error) {
	if clip.Empty() {
		return "", errors.New("openai: empty clip")
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(clip.Data), clip.Filename, clip.ContentType()),
		Model: oai.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = oai.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
