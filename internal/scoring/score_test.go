package scoring

import (
	"testing"

	"cantogame/internal/models"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name      string
		results   []Result
		wantScore int
		wantAvg   int
	}{
		{
			name:      "empty session",
			results:   nil,
			wantScore: 0,
			wantAvg:   0,
		},
		{
			name: "two of three correct under a second",
			results: []Result{
				{IsCorrect: true, ResponseTimeMs: 800},
				{IsCorrect: false, ResponseTimeMs: 1200},
				{IsCorrect: true, ResponseTimeMs: 500},
			},
			wantScore: 200,
			wantAvg:   833,
		},
		{
			name: "slow answers are penalized per whole second",
			results: []Result{
				{IsCorrect: true, ResponseTimeMs: 3500},
				{IsCorrect: true, ResponseTimeMs: 2500},
			},
			wantScore: 170,
			wantAvg:   3000,
		},
		{
			name: "nothing correct scores zero",
			results: []Result{
				{IsCorrect: false, ResponseTimeMs: 9000},
			},
			wantScore: 0,
			wantAvg:   9000,
		},
		{
			name: "never negative",
			results: []Result{
				{IsCorrect: true, ResponseTimeMs: 200000},
			},
			wantScore: 0,
			wantAvg:   200000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.results)
			if got.Score != tt.wantScore {
				t.Errorf("Calculate().Score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.AverageResponseMs != tt.wantAvg {
				t.Errorf("Calculate().AverageResponseMs = %v, want %v", got.AverageResponseMs, tt.wantAvg)
			}
		})
	}
}

func TestCalculateMonotonicInResponseTime(t *testing.T) {
	prev := -1
	for ms := 0; ms <= 60000; ms += 250 {
		results := []Result{
			{IsCorrect: true, ResponseTimeMs: ms},
			{IsCorrect: true, ResponseTimeMs: ms},
			{IsCorrect: false, ResponseTimeMs: ms},
		}
		score := Calculate(results).Score
		if score < 0 {
			t.Fatalf("score %d is negative at %dms", score, ms)
		}
		if prev >= 0 && score > prev {
			t.Fatalf("score rose from %d to %d as response time grew to %dms", prev, score, ms)
		}
		prev = score
	}
}

func TestFromSession(t *testing.T) {
	session := &models.GameSession{
		WordIDs: []string{"a", "b", "c"},
		Attempts: map[string]*models.Attempt{
			"a": {WordID: "a", IsCorrect: true, ResponseTimeMs: 800},
			"c": {WordID: "c", IsCorrect: true, ResponseTimeMs: 25000},
		},
	}

	results := FromSession(session, 10000)
	want := []Result{
		{IsCorrect: true, ResponseTimeMs: 800},
		{IsCorrect: false, ResponseTimeMs: 10000},
		{IsCorrect: true, ResponseTimeMs: 10000},
	}

	if len(results) != len(want) {
		t.Fatalf("FromSession() returned %d results, want %d", len(results), len(want))
	}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("FromSession()[%d] = %+v, want %+v", i, results[i], want[i])
		}
	}
}
