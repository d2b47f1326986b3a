// Package pronunciation grades a spoken attempt against the expected word.
//
// Client-supplied text always wins. Audio is sent to the recognizer only when
// no text was supplied, and any recognizer failure grades the attempt as
// incorrect with Unavailable set. Evaluate never returns an error.
package pronunciation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"cantogame/internal/asr"
	"cantogame/internal/audio"
	"cantogame/internal/models"
)

// Transcriber is the recognizer the evaluator falls back to
type Transcriber interface {
	Transcribe(ctx context.Context, clip *audio.Clip) (string, error)
}

// Verdict is the outcome of grading one attempt
type Verdict struct {
	IsCorrect        bool                 `json:"isCorrect"`
	RecognizedText   string               `json:"recognizedText"`
	ExpectedText     string               `json:"expectedText"`
	ExpectedJyutping string               `json:"expectedJyutping"`
	Source           models.AttemptSource `json:"source"`
	Unavailable      bool                 `json:"unavailable"`
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithTranscriber sets the recognizer used for audio-only attempts
func WithTranscriber(t Transcriber) Option {
	return func(e *Evaluator) { e.transcriber = t }
}

// WithToneInsensitive accepts jyutping that differs only in tone digits
func WithToneInsensitive(enabled bool) Option {
	return func(e *Evaluator) { e.match.toneInsensitive = enabled }
}

// WithMaxEditDistance accepts jyutping within n edits of the expected form.
// Zero disables fuzzy matching.
func WithMaxEditDistance(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.match.maxEditDistance = n
		}
	}
}

// Evaluator grades attempts. It holds no per-call state and is safe for
// concurrent use.
type Evaluator struct {
	transcriber Transcriber
	match       matcher
}

// NewEvaluator creates an Evaluator. Without a transcriber, audio-only
// attempts are graded unavailable.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{transcriber: asr.Disabled{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate grades one attempt at word
func (e *Evaluator) Evaluate(ctx context.Context, word models.Word, clientText string, clip *audio.Clip) Verdict {
	v := Verdict{
		ExpectedText:     word.Text,
		ExpectedJyutping: word.Jyutping,
		Source:           models.SourceNone,
	}

	text := strings.TrimSpace(clientText)
	switch {
	case text != "":
		v.Source = models.SourceClient
	case !clip.Empty():
		recognized, err := e.transcriber.Transcribe(ctx, clip)
		recognized = strings.TrimSpace(recognized)
		if err != nil || recognized == "" {
			if err != nil && !errors.Is(err, asr.ErrUnavailable) {
				slog.Warn("transcription failed", "word_id", word.ID, "error", err)
			}
			v.Unavailable = true
			return v
		}
		text = recognized
		v.Source = models.SourceASR
	default:
		v.Unavailable = true
		return v
	}

	v.RecognizedText = text
	v.IsCorrect = e.match.match(text, word.Text, word.Jyutping)
	return v
}
