// Package main provides the admin CLI for cantogame.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cantogame/internal/app"
	"cantogame/internal/config"
	"cantogame/internal/models"
)

// adminViewer is the identity CLI queries run as
var adminViewer = models.Viewer{UserID: "cantoctl", Role: models.RoleAdmin}

var (
	importFile  string
	importName  string
	importDesc  string
	importSheet string

	statsUser string
	statsDeck string

	topDeck  string
	topLimit int

	sweepOlderThan string

	reportTeacher string
	reportEmail   bool

	userID          string
	userName        string
	userDisplayName string
	userEmail       string
	userRole        string
	userTeacher     string

	exportOutput string
	restoreInput string
	restoreWipe  bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "cantoctl",
		Short:        "Administer the Cantonese pronunciation game",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newImportDeckCmd())
	rootCmd.AddCommand(newAddUserCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newTopWordsCmd())
	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newRestoreCmd())

	return rootCmd
}

// loadConfig reads the configuration and installs the default logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.SetDefault(app.NewLogger(os.Stderr, cfg.LogLevel))
	return cfg, nil
}

// withApp runs fn against a fully wired application
func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			slog.Warn("failed to close database", "error", cerr)
		}
	}()

	return fn(a)
}
