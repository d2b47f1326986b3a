package security

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	steps := []struct {
		advance time.Duration
		key     string
		want    bool
	}{
		{0, "u1", true},
		{0, "u1", true},
		{0, "u1", false},
		{0, "u2", true},
		{30 * time.Second, "u1", false},
		{30 * time.Second, "u1", true},
	}

	for i, step := range steps {
		now = now.Add(step.advance)
		if got := rl.Allow(step.key); got != step.want {
			t.Errorf("step %d: Allow(%s) = %v, want %v", i, step.key, got, step.want)
		}
	}
}

func TestRateLimiterRefillsWholeWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		rl.Allow("u1")
	}
	// no partial refill inside the window
	now = now.Add(59 * time.Second)
	if rl.Allow("u1") {
		t.Fatal("Allow() = true before the window elapsed")
	}

	now = now.Add(time.Second)
	for i := 0; i < 3; i++ {
		if !rl.Allow("u1") {
			t.Fatalf("Allow() #%d after refill = false, want true", i+1)
		}
	}
	if rl.Allow("u1") {
		t.Error("Allow() #4 after refill = true, want false")
	}
}

func TestRateLimiterRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	if got := rl.RetryAfter("u1"); got != 0 {
		t.Errorf("RetryAfter(unknown) = %v, want 0", got)
	}
	rl.Allow("u1")
	now = now.Add(20 * time.Second)
	if got := rl.RetryAfter("u1"); got != 40*time.Second {
		t.Errorf("RetryAfter() = %v, want 40s", got)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(3 * time.Minute)
	rl.Allow("fresh")

	if got := rl.Cleanup(); got != 1 {
		t.Errorf("Cleanup() = %d, want 1", got)
	}
	if _, ok := rl.visitors["fresh"]; !ok {
		t.Error("Cleanup() removed an active visitor")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:5000", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:5000", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:4321", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
