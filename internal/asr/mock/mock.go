// Package mock provides Transcriber test doubles.
//
// Transcriber returns a fixed result and records every call. Random picks
// from a fixed list with a seeded generator, so runs are reproducible.
package mock

import (
	"context"
	"math/rand/v2"
	"sync"

	"cantogame/internal/audio"
)

// Call records one Transcribe invocation
type Call struct {
	Ctx  context.Context
	Clip *audio.Clip
}

// Transcriber returns Text, Err for every call
type Transcriber struct {
	mu sync.Mutex

	Text string
	Err  error

	Calls []Call
}

func (m *Transcriber) Transcribe(ctx context.Context, clip *audio.Clip) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Ctx: ctx, Clip: clip})
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}

// CallCount returns the number of Transcribe calls so far
func (m *Transcriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Random returns one of Choices per call, driven by a seeded generator
type Random struct {
	mu      sync.Mutex
	rng     *rand.Rand
	choices []string
}

// NewRandom creates a Random. The same seed yields the same sequence.
func NewRandom(seed int64, choices []string) *Random {
	return &Random{
		rng:     rand.New(rand.NewPCG(uint64(seed), 0)),
		choices: append([]string(nil), choices...),
	}
}

func (r *Random) Transcribe(ctx context.Context, _ *audio.Clip) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.choices) == 0 {
		return "", nil
	}
	return r.choices[r.rng.IntN(len(r.choices))], nil
}
