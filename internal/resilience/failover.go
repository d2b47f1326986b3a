package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every member of a Group failed or was skipped
var ErrAllFailed = errors.New("all providers failed")

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Group tries a primary and then each fallback in registration order, each
// behind its own breaker. Members must be registered before concurrent use.
type Group[T any] struct {
	members []member[T]
	cfg     BreakerConfig
}

// NewGroup creates a Group with primary as its first member
func NewGroup[T any](primaryName string, primary T, cfg BreakerConfig) *Group[T] {
	g := &Group[T]{cfg: cfg}
	g.Add(primaryName, primary)
	return g
}

// Add registers a fallback
func (g *Group[T]) Add(name string, value T) {
	cfg := g.cfg
	cfg.Name = name
	g.members = append(g.members, member[T]{name: name, value: value, breaker: NewBreaker(cfg)})
}

// Names returns member names in call order
func (g *Group[T]) Names() []string {
	names := make([]string, len(g.members))
	for i, m := range g.members {
		names[i] = m.name
	}
	return names
}

// Call runs fn against each member until one succeeds and returns the
// result along with the name of the member that produced it.
func Call[T, R any](g *Group[T], fn func(name string, value T) (R, error)) (R, string, error) {
	var (
		zero    R
		lastErr error
	)
	for i := range g.members {
		m := &g.members[i]
		var result R
		err := m.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(m.name, m.value)
			return callErr
		})
		if err == nil {
			return result, m.name, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider with open circuit", "provider", m.name)
			continue
		}
		slog.Warn("provider failed, trying next", "provider", m.name, "error", err)
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
