package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %v, want 8080", cfg.ServerPort)
	}
	if cfg.Game.MaxRecordingMs != 10000 {
		t.Errorf("MaxRecordingMs = %v, want 10000", cfg.Game.MaxRecordingMs)
	}
	if cfg.Game.TopWrongWords != 20 {
		t.Errorf("TopWrongWords = %v, want 20", cfg.Game.TopWrongWords)
	}
	if cfg.ASR.Provider != "none" {
		t.Errorf("ASR.Provider = %v, want none", cfg.ASR.Provider)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_RECORDING_MS", "8000")
	t.Setenv("ABANDON_AFTER", "2h")
	t.Setenv("EVAL_TONE_INSENSITIVE", "true")
	t.Setenv("STREAK_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %v, want 9090", cfg.ServerPort)
	}
	if cfg.Game.MaxRecordingMs != 8000 {
		t.Errorf("MaxRecordingMs = %v, want 8000", cfg.Game.MaxRecordingMs)
	}
	if cfg.Game.AbandonAfter != 2*time.Hour {
		t.Errorf("AbandonAfter = %v, want 2h", cfg.Game.AbandonAfter)
	}
	if !cfg.Evaluator.ToneInsensitive {
		t.Error("ToneInsensitive = false, want true")
	}
	if cfg.Game.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Game.Location())
	}
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MAX_RECORDING_MS", "ten seconds")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for malformed MAX_RECORDING_MS")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cantogame.yaml")
	content := `
port: "7070"
game:
  max_recording_ms: 6000
  sweep_interval: 30m
evaluator:
  max_edit_distance: 1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "7070" {
		t.Errorf("ServerPort = %v, want 7070", cfg.ServerPort)
	}
	if cfg.Game.MaxRecordingMs != 6000 {
		t.Errorf("MaxRecordingMs = %v, want 6000", cfg.Game.MaxRecordingMs)
	}
	if cfg.Game.SweepInterval != 30*time.Minute {
		t.Errorf("SweepInterval = %v, want 30m", cfg.Game.SweepInterval)
	}
	if cfg.Evaluator.MaxEditDistance != 1 {
		t.Errorf("MaxEditDistance = %v, want 1", cfg.Evaluator.MaxEditDistance)
	}
	// Untouched keys keep their defaults
	if cfg.Game.TopWrongWords != 20 {
		t.Errorf("TopWrongWords = %v, want 20", cfg.Game.TopWrongWords)
	}
}

func TestLoadYAMLUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("colour: blue\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.DatabaseType = "postgres" },
			wantErr: "DATABASE_URL",
		},
		{
			name:    "unknown database",
			mutate:  func(c *Config) { c.DatabaseType = "oracle" },
			wantErr: "unsupported database type",
		},
		{
			name:    "whisper without url",
			mutate:  func(c *Config) { c.ASR.Provider = "whisper" },
			wantErr: "WHISPER_URL",
		},
		{
			name:    "openai without key",
			mutate:  func(c *Config) { c.ASR.Provider = "whisper+openai"; c.ASR.WhisperURL = "http://w" },
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Game.StreakTimezone = "Mars/Olympus" },
			wantErr: "STREAK_TIMEZONE",
		},
		{
			name:    "non-positive recording limit",
			mutate:  func(c *Config) { c.Game.MaxRecordingMs = 0 },
			wantErr: "MAX_RECORDING_MS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
