// Package asr defines the speech recognition collaborator used to turn a
// recorded attempt into text, plus the failover wrapper that sits in front of
// the concrete backends.
package asr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"cantogame/internal/audio"
	"cantogame/internal/observe"
	"cantogame/internal/resilience"
)

// ErrUnavailable means no recognizer could produce a transcript
var ErrUnavailable = errors.New("speech recognition unavailable")

// errEmptyTranscript lets an empty result fall through to the next backend
var errEmptyTranscript = errors.New("empty transcript")

// Transcriber turns recorded audio into text
type Transcriber interface {
	Transcribe(ctx context.Context, clip *audio.Clip) (string, error)
}

// Disabled is the Transcriber used when no backend is configured
type Disabled struct{}

func (Disabled) Transcribe(context.Context, *audio.Clip) (string, error) {
	return "", ErrUnavailable
}

// Options configures a Failover
type Options struct {
	Timeout time.Duration
	Breaker resilience.BreakerConfig
	Metrics *observe.Metrics
}

// Failover tries each registered backend in order, each behind a circuit
// breaker, and reports ErrUnavailable once all of them fail.
type Failover struct {
	group   *resilience.Group[Transcriber]
	timeout time.Duration
	metrics *observe.Metrics
}

// NewFailover creates a Failover with primary as the preferred backend
func NewFailover(primaryName string, primary Transcriber, opts Options) *Failover {
	return &Failover{
		group:   resilience.NewGroup(primaryName, primary, opts.Breaker),
		timeout: opts.Timeout,
		metrics: opts.Metrics,
	}
}

// Add registers a fallback backend
func (f *Failover) Add(name string, t Transcriber) {
	f.group.Add(name, t)
}

// Backends returns the backend names in call order
func (f *Failover) Backends() []string {
	return f.group.Names()
}

// Transcribe returns the first non-empty transcript. Any failure is wrapped
// with ErrUnavailable.
func (f *Failover) Transcribe(ctx context.Context, clip *audio.Clip) (string, error) {
	if clip.Empty() {
		return "", ErrUnavailable
	}

	text, _, err := resilience.Call(f.group, func(name string, t Transcriber) (string, error) {
		callCtx := ctx
		if f.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, f.timeout)
			defer cancel()
		}

		start := time.Now()
		text, err := t.Transcribe(callCtx, clip)
		text = strings.TrimSpace(text)
		if err == nil && text == "" {
			err = errEmptyTranscript
		}
		f.record(ctx, name, time.Since(start), err)
		return text, err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return text, nil
}

func (f *Failover) record(ctx context.Context, provider string, d time.Duration, err error) {
	if f.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case errors.Is(err, errEmptyTranscript):
		status = "empty"
	case err != nil:
		status = "error"
	}
	f.metrics.ASRDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}
