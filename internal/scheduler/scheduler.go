// Package scheduler runs the server's periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Sweeper ends sessions that were abandoned mid-game
type Sweeper interface {
	ExpireAbandoned(ctx context.Context, olderThan time.Duration) (int, error)
}

// Cleaner drops idle rate limiter state
type Cleaner interface {
	Cleanup() int
}

// Config controls job intervals
type Config struct {
	SweepInterval time.Duration
	AbandonAfter  time.Duration

	// CleanupInterval defaults to one hour
	CleanupInterval time.Duration
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	cleaner   Cleaner
	cfg       Config

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler instance. cleaner may be nil.
func New(sweeper Sweeper, cleaner Cleaner, cfg Config) *Scheduler {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		sweeper:   sweeper,
		cleaner:   cleaner,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the jobs and runs them in the background. The sweep runs
// once immediately.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.cfg.SweepInterval).Do(s.RunSweep); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	if s.cleaner != nil {
		if _, err := s.scheduler.Every(s.cfg.CleanupInterval).Do(s.runCleanup); err != nil {
			return fmt.Errorf("failed to schedule rate limiter cleanup: %w", err)
		}
	}

	s.scheduler.StartAsync()
	slog.Info("scheduler started", "sweep_interval", s.cfg.SweepInterval, "abandon_after", s.cfg.AbandonAfter)
	return nil
}

// Stop cancels running jobs and terminates the scheduler
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

// RunSweep expires abandoned sessions once
func (s *Scheduler) RunSweep() {
	n, err := s.sweeper.ExpireAbandoned(s.ctx, s.cfg.AbandonAfter)
	if err != nil {
		slog.Error("session sweep failed", "expired", n, "error", err)
		return
	}
	slog.Debug("session sweep finished", "expired", n)
}

func (s *Scheduler) runCleanup() {
	if n := s.cleaner.Cleanup(); n > 0 {
		slog.Debug("rate limiter cleanup", "removed", n)
	}
}
