// Package observe holds the OpenTelemetry instruments recorded by the game
// engine and the Prometheus bridge that exposes them on /metrics.
//
// Tests should build their own Metrics with NewMetrics and a ManualReader
// rather than share DefaultMetrics.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "cantogame"

// Metrics holds every instrument the application records
type Metrics struct {
	// SessionsStarted counts started sessions
	SessionsStarted metric.Int64Counter

	// SessionsEnded counts finalized sessions. Attribute: reason.
	SessionsEnded metric.Int64Counter

	// Attempts counts evaluated attempts. Attributes: source, correct.
	Attempts metric.Int64Counter

	// EvaluationUnavailable counts attempts graded without any recognition
	EvaluationUnavailable metric.Int64Counter

	// SessionScore records final scores
	SessionScore metric.Int64Histogram

	// ASRDuration tracks recognizer latency. Attributes: provider, status.
	ASRDuration metric.Float64Histogram

	// ConcurrencyConflicts counts writes rejected by the store
	ConcurrencyConflicts metric.Int64Counter

	// HTTPRequestDuration tracks request handling time. Attributes: method, route, status.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

var scoreBuckets = []float64{
	0, 100, 200, 300, 500, 750, 1000, 1500, 2000, 3000,
}

// NewMetrics creates all instruments on mp
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.SessionsStarted, err = m.Int64Counter("cantogame.sessions.started",
		metric.WithDescription("Game sessions started."),
	); err != nil {
		return nil, err
	}
	if met.SessionsEnded, err = m.Int64Counter("cantogame.sessions.ended",
		metric.WithDescription("Game sessions finalized, by end reason."),
	); err != nil {
		return nil, err
	}
	if met.Attempts, err = m.Int64Counter("cantogame.attempts",
		metric.WithDescription("Pronunciation attempts evaluated, by source and correctness."),
	); err != nil {
		return nil, err
	}
	if met.EvaluationUnavailable, err = m.Int64Counter("cantogame.evaluation.unavailable",
		metric.WithDescription("Attempts graded incorrect because no recognition was available."),
	); err != nil {
		return nil, err
	}
	if met.SessionScore, err = m.Int64Histogram("cantogame.session.score",
		metric.WithDescription("Final score of finalized sessions."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ASRDuration, err = m.Float64Histogram("cantogame.asr.duration",
		metric.WithDescription("Latency of speech recognition calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConcurrencyConflicts, err = m.Int64Counter("cantogame.store.conflicts",
		metric.WithDescription("Writes rejected because of concurrent modification."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("cantogame.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns instruments bound to the global meter provider. It
// panics if instrument creation fails, which only happens on programmer error.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
