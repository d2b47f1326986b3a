package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	ServerPort   string `yaml:"port"`
	DatabaseType string `yaml:"database_type"`
	DatabasePath string `yaml:"db_path"`
	DatabaseURL  string `yaml:"database_url"`
	JWTSecret    string `yaml:"jwt_secret"`
	LogLevel     string `yaml:"log_level"`
	Debug        bool   `yaml:"debug"`

	Game      GameConfig      `yaml:"game"`
	Evaluator EvaluatorConfig `yaml:"evaluator"`
	ASR       ASRConfig       `yaml:"asr"`
	Email     EmailConfig     `yaml:"email"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// GameConfig holds session lifecycle settings
type GameConfig struct {
	// MaxRecordingMs is the longest allowed recording. Pending words are
	// scored with this as their response time.
	MaxRecordingMs int `yaml:"max_recording_ms"`

	// StreakTimezone is the IANA zone whose calendar days drive streaks.
	StreakTimezone string `yaml:"streak_timezone"`

	AbandonAfter  time.Duration `yaml:"abandon_after"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	TopWrongWords int           `yaml:"top_wrong_words"`
	MaxAudioBytes int64         `yaml:"max_audio_bytes"`
}

// EvaluatorConfig toggles tolerant pronunciation matching
type EvaluatorConfig struct {
	ToneInsensitive bool `yaml:"tone_insensitive"`
	MaxEditDistance int  `yaml:"max_edit_distance"`
}

// ASRConfig selects and tunes the speech recognition backends
type ASRConfig struct {
	// Provider is one of none, mock, whisper, openai or whisper+openai.
	Provider        string        `yaml:"provider"`
	WhisperURL      string        `yaml:"whisper_url"`
	WhisperLanguage string        `yaml:"whisper_language"`
	OpenAIKey       string        `yaml:"openai_api_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	OpenAIModel     string        `yaml:"openai_model"`
	Timeout         time.Duration `yaml:"timeout"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerReset    time.Duration `yaml:"breaker_reset"`
	MockSeed        int64         `yaml:"mock_seed"`

	// MockChoices are the transcripts the mock provider picks from
	MockChoices []string `yaml:"mock_choices"`
}

// EmailConfig holds SES settings for class reports
type EmailConfig struct {
	AWSRegion  string `yaml:"aws_region"`
	FromEmail  string `yaml:"from_email"`
	FromName   string `yaml:"from_name"`
	AppBaseURL string `yaml:"app_base_url"`
}

// RateLimitConfig bounds attempt submissions per user
type RateLimitConfig struct {
	Attempts int           `yaml:"attempts"`
	Window   time.Duration `yaml:"window"`
}

var validASRProviders = map[string]bool{
	"none":           true,
	"mock":           true,
	"whisper":        true,
	"openai":         true,
	"whisper+openai": true,
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ServerPort:   "8080",
		DatabaseType: "sqlite",
		DatabasePath: "./cantogame.db",
		LogLevel:     "info",
		Game: GameConfig{
			MaxRecordingMs: 10000,
			StreakTimezone: "Asia/Hong_Kong",
			AbandonAfter:   24 * time.Hour,
			SweepInterval:  time.Hour,
			TopWrongWords:  20,
			MaxAudioBytes:  5 * 1024 * 1024, // 5MB
		},
		ASR: ASRConfig{
			Provider:        "none",
			WhisperLanguage: "yue",
			OpenAIModel:     "whisper-1",
			Timeout:         30 * time.Second,
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
			MockSeed:        1,
			MockChoices:     []string{"你好", "多謝", "早晨"},
		},
		Email: EmailConfig{
			AWSRegion: "us-east-1",
			FromName:  "Cantogame",
		},
		RateLimit: RateLimitConfig{
			Attempts: 120,
			Window:   time.Minute,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in that order of precedence.
func Load() (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays a YAML file onto cfg. Unknown keys are rejected.
func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	envString(&c.ServerPort, "PORT")
	envString(&c.DatabaseType, "DATABASE_TYPE")
	envString(&c.DatabasePath, "DB_PATH")
	envString(&c.DatabaseURL, "DATABASE_URL")
	envString(&c.JWTSecret, "JWT_SECRET")
	envString(&c.LogLevel, "LOG_LEVEL")
	errs = append(errs, envBool(&c.Debug, "DEBUG"))

	errs = append(errs,
		envInt(&c.Game.MaxRecordingMs, "MAX_RECORDING_MS"),
		envDuration(&c.Game.AbandonAfter, "ABANDON_AFTER"),
		envDuration(&c.Game.SweepInterval, "SWEEP_INTERVAL"),
		envInt(&c.Game.TopWrongWords, "TOP_WRONG_WORDS"),
		envInt64(&c.Game.MaxAudioBytes, "MAX_AUDIO_BYTES"),
	)
	envString(&c.Game.StreakTimezone, "STREAK_TIMEZONE")

	errs = append(errs,
		envBool(&c.Evaluator.ToneInsensitive, "EVAL_TONE_INSENSITIVE"),
		envInt(&c.Evaluator.MaxEditDistance, "EVAL_MAX_EDIT_DISTANCE"),
	)

	envString(&c.ASR.Provider, "ASR_PROVIDER")
	envString(&c.ASR.WhisperURL, "WHISPER_URL")
	envString(&c.ASR.WhisperLanguage, "WHISPER_LANGUAGE")
	envString(&c.ASR.OpenAIKey, "OPENAI_API_KEY")
	envString(&c.ASR.OpenAIBaseURL, "OPENAI_BASE_URL")
	envString(&c.ASR.OpenAIModel, "OPENAI_MODEL")
	if choices := os.Getenv("ASR_MOCK_CHOICES"); choices != "" {
		c.ASR.MockChoices = strings.Split(choices, ",")
	}
	errs = append(errs,
		envDuration(&c.ASR.Timeout, "ASR_TIMEOUT"),
		envInt(&c.ASR.BreakerFailures, "ASR_BREAKER_FAILURES"),
		envDuration(&c.ASR.BreakerReset, "ASR_BREAKER_RESET"),
		envInt64(&c.ASR.MockSeed, "ASR_MOCK_SEED"),
	)

	envString(&c.Email.AWSRegion, "AWS_REGION")
	envString(&c.Email.FromEmail, "SES_FROM_EMAIL")
	envString(&c.Email.FromName, "SES_FROM_NAME")
	envString(&c.Email.AppBaseURL, "APP_BASE_URL")

	errs = append(errs,
		envInt(&c.RateLimit.Attempts, "RATE_LIMIT_ATTEMPTS"),
		envDuration(&c.RateLimit.Window, "RATE_LIMIT_WINDOW"),
	)
	return errors.Join(errs...)
}

// Validate checks the configuration for consistency and returns every
// problem found joined into a single error.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3", "":
		if c.DatabasePath == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for %s", c.DatabaseType))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database type: %s", c.DatabaseType))
	}

	if c.Game.MaxRecordingMs <= 0 {
		errs = append(errs, errors.New("MAX_RECORDING_MS must be positive"))
	}
	if _, err := time.LoadLocation(c.Game.StreakTimezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid STREAK_TIMEZONE %q: %w", c.Game.StreakTimezone, err))
	}
	if c.Game.AbandonAfter <= 0 {
		errs = append(errs, errors.New("ABANDON_AFTER must be positive"))
	}
	if c.Game.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.Game.TopWrongWords <= 0 {
		errs = append(errs, errors.New("TOP_WRONG_WORDS must be positive"))
	}
	if c.Evaluator.MaxEditDistance < 0 {
		errs = append(errs, errors.New("EVAL_MAX_EDIT_DISTANCE must not be negative"))
	}

	if !validASRProviders[c.ASR.Provider] {
		errs = append(errs, fmt.Errorf("unknown ASR_PROVIDER %q", c.ASR.Provider))
	}
	if strings.Contains(c.ASR.Provider, "whisper") && c.ASR.WhisperURL == "" {
		errs = append(errs, errors.New("WHISPER_URL is required for the whisper ASR provider"))
	}
	if strings.Contains(c.ASR.Provider, "openai") && c.ASR.OpenAIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai ASR provider"))
	}

	if c.ASR.Provider == "mock" && len(c.ASR.MockChoices) == 0 {
		errs = append(errs, errors.New("ASR_MOCK_CHOICES must not be empty for the mock ASR provider"))
	}

	if c.RateLimit.Attempts <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit attempts and window must be positive"))
	}

	return errors.Join(errs...)
}

// Location returns the timezone used to derive streak calendar dates
func (g GameConfig) Location() *time.Location {
	loc, err := time.LoadLocation(g.StreakTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envString(dst *string, key string) {
	*dst = getEnv(key, *dst)
}

func envInt(dst *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envInt64(dst *int64, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(dst *bool, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(dst *time.Duration, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
