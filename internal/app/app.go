// Package app assembles the repositories and services shared by the HTTP
// server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cantogame/internal/asr"
	"cantogame/internal/asr/mock"
	"cantogame/internal/asr/openai"
	"cantogame/internal/asr/whisper"
	"cantogame/internal/config"
	"cantogame/internal/database"
	"cantogame/internal/observe"
	"cantogame/internal/pronunciation"
	"cantogame/internal/repository"
	"cantogame/internal/resilience"
	"cantogame/internal/service"
)

// App holds the wired dependencies of one process
type App struct {
	Config  *config.Config
	DB      *database.DB
	Metrics *observe.Metrics

	Decks    *repository.DeckRepository
	Sessions *repository.SessionRepository
	Stats    *repository.StatsRepository
	Users    *repository.UserRepository

	Game       *service.GameService
	Statistics *service.StatisticsService
	Reports    *service.ReportService
	Email      *service.EmailService
	Backup     *service.BackupService
}

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the text logger both binaries install as the default
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// NewTranscriber builds the recognizer selected by cfg.Provider. A nil
// Transcriber with a nil error means recognition is disabled.
func NewTranscriber(cfg config.ASRConfig, metrics *observe.Metrics) (pronunciation.Transcriber, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "mock":
		return mock.NewRandom(cfg.MockSeed, cfg.MockChoices), nil
	}

	opts := asr.Options{
		Timeout: cfg.Timeout,
		Breaker: resilience.BreakerConfig{
			Name:         "asr",
			MaxFailures:  cfg.BreakerFailures,
			ResetTimeout: cfg.BreakerReset,
		},
		Metrics: metrics,
	}

	var failover *asr.Failover
	add := func(name string, t asr.Transcriber) {
		if failover == nil {
			failover = asr.NewFailover(name, t, opts)
			return
		}
		failover.Add(name, t)
	}

	for _, name := range strings.Split(cfg.Provider, "+") {
		switch name {
		case "whisper":
			t, err := whisper.New(cfg.WhisperURL, whisper.WithLanguage(cfg.WhisperLanguage))
			if err != nil {
				return nil, err
			}
			add(name, t)
		case "openai":
			oaOpts := []openai.Option{openai.WithModel(cfg.OpenAIModel), openai.WithTimeout(cfg.Timeout)}
			if cfg.OpenAIBaseURL != "" {
				oaOpts = append(oaOpts, openai.WithBaseURL(cfg.OpenAIBaseURL))
			}
			t, err := openai.New(cfg.OpenAIKey, oaOpts...)
			if err != nil {
				return nil, err
			}
			add(name, t)
		default:
			return nil, fmt.Errorf("unknown ASR provider %q", name)
		}
	}

	slog.Info("speech recognition enabled", "backends", failover.Backends())
	return failover, nil
}

// New opens the database, runs migrations and wires every service. The
// caller owns the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, metrics *observe.Metrics) (*App, error) {
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("database ready", "driver", db.Dialect.DriverName())

	a, err := Wire(ctx, cfg, db, metrics)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Wire builds the repositories and services on an open database
func Wire(ctx context.Context, cfg *config.Config, db *database.DB, metrics *observe.Metrics) (*App, error) {
	transcriber, err := NewTranscriber(cfg.ASR, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to configure speech recognition: %w", err)
	}

	evalOpts := []pronunciation.Option{
		pronunciation.WithToneInsensitive(cfg.Evaluator.ToneInsensitive),
		pronunciation.WithMaxEditDistance(cfg.Evaluator.MaxEditDistance),
	}
	if transcriber != nil {
		evalOpts = append(evalOpts, pronunciation.WithTranscriber(transcriber))
	}
	evaluator := pronunciation.NewEvaluator(evalOpts...)

	emailService, err := service.NewEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromEmail, cfg.Email.FromName, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to configure email: %w", err)
	}

	a := &App{
		Config:   cfg,
		DB:       db,
		Metrics:  metrics,
		Decks:    repository.NewDeckRepository(db),
		Sessions: repository.NewSessionRepository(db),
		Stats:    repository.NewStatsRepository(db),
		Users:    repository.NewUserRepository(db),
		Email:    emailService,
	}
	a.Backup = service.NewBackupService(db)

	loc := cfg.Game.Location()
	a.Game = service.NewGameService(a.Decks, a.Sessions, a.Stats, evaluator, service.GameOptions{
		MaxRecordingMs: cfg.Game.MaxRecordingMs,
		AbandonAfter:   cfg.Game.AbandonAfter,
		Location:       loc,
		Metrics:        metrics,
	})
	a.Statistics = service.NewStatisticsService(a.Stats, a.Users, a.Decks, loc, cfg.Game.TopWrongWords)
	a.Reports = service.NewReportService(a.Statistics, a.Users, emailService)
	return a, nil
}

// Close releases the database connection
func (a *App) Close() error {
	return a.DB.Close()
}
