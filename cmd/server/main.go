package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cantogame/internal/app"
	"cantogame/internal/config"
	"cantogame/internal/handlers"
	"cantogame/internal/observe"
	"cantogame/internal/scheduler"
	"cantogame/internal/security"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}
	slog.SetDefault(app.NewLogger(os.Stderr, cfg.LogLevel))

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is required")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics are exported through the Prometheus bridge
	shutdownMetrics, err := observe.InitProvider("cantogame", version)
	if err != nil {
		slog.Error("failed to initialize metrics", "error", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	a, err := app.New(ctx, cfg, metrics)
	if err != nil {
		slog.Error("failed to start application", "error", err)
		return 1
	}
	defer a.Close()

	limiter := security.NewRateLimiter(cfg.RateLimit.Attempts, cfg.RateLimit.Window)

	sched := scheduler.New(a.Game, limiter, scheduler.Config{
		SweepInterval: cfg.Game.SweepInterval,
		AbandonAfter:  cfg.Game.AbandonAfter,
	})
	if err := sched.Start(); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		return 1
	}
	defer sched.Stop()

	router := handlers.NewRouter(handlers.RouterConfig{
		Game:           handlers.NewGameHandler(a.Game, cfg.Game.MaxAudioBytes),
		Stats:          handlers.NewStatsHandler(a.Statistics),
		Auth:           handlers.NewAuthenticator(cfg.JWTSecret),
		Limiter:        limiter,
		Metrics:        metrics,
		MetricsHandler: promhttp.Handler(),
		Health:         a.DB.PingContext,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.ServerPort, "version", version, "asr", cfg.ASR.Provider)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			return 1
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		slog.Warn("metrics shutdown failed", "error", err)
	}
	slog.Info("server stopped")
	return 0
}
