package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cantogame/internal/app"
	"cantogame/internal/database"
	"cantogame/internal/importer"
	"cantogame/internal/models"
	"cantogame/internal/report"
	"cantogame/internal/service"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateCmd,
	}
}

func runMigrateCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(cmd.Context()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
	return nil
}

func newImportDeckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-deck",
		Short: "Create a deck from a .csv or .xlsx word list",
		Args:  cobra.NoArgs,
		RunE:  runImportDeckCmd,
	}
	cmd.Flags().StringVar(&importFile, "file", "", "word list file (.csv or .xlsx)")
	cmd.Flags().StringVar(&importName, "name", "", "deck name")
	cmd.Flags().StringVar(&importDesc, "description", "", "deck description")
	cmd.Flags().StringVar(&importSheet, "sheet", "", "worksheet name (xlsx only)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runImportDeckCmd(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		deck, result, err := importer.ImportDeck(cmd.Context(), a.Decks, importName, importDesc, nil, importer.Config{
			FilePath:  importFile,
			SheetName: importSheet,
		})
		if result != nil {
			for _, e := range result.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), "skipped:", e)
			}
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created deck %s (%s) with %d words, %d rows skipped\n",
			deck.Name, deck.ID, len(result.Words), result.Skipped)
		return nil
	})
}

func newAddUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-user",
		Short: "Register a user issued by the identity provider",
		Args:  cobra.NoArgs,
		RunE:  runAddUserCmd,
	}
	cmd.Flags().StringVar(&userID, "id", "", "user id as it appears in access tokens")
	cmd.Flags().StringVar(&userName, "username", "", "username")
	cmd.Flags().StringVar(&userDisplayName, "display-name", "", "display name")
	cmd.Flags().StringVar(&userEmail, "email", "", "email address for reports")
	cmd.Flags().StringVar(&userRole, "role", string(models.RoleStudent), "student, teacher or admin")
	cmd.Flags().StringVar(&userTeacher, "teacher", "", "teacher id to associate a student with")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func runAddUserCmd(cmd *cobra.Command, _ []string) error {
	role := models.Role(strings.ToLower(userRole))
	if !role.Valid() {
		return fmt.Errorf("invalid --role %q", userRole)
	}
	if userTeacher != "" && role != models.RoleStudent {
		return errors.New("--teacher only applies to students")
	}

	return withApp(cmd.Context(), func(a *app.App) error {
		ctx := cmd.Context()
		user := &models.User{
			ID:          userID,
			Username:    userName,
			DisplayName: userDisplayName,
			Email:       userEmail,
			Role:        role,
		}
		if err := a.Users.UpsertUser(ctx, user); err != nil {
			return err
		}
		if userTeacher != "" {
			if err := a.Users.Associate(ctx, userID, userTeacher); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s %s\n", role, userName)
		return nil
	})
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show a user's totals, streak and score history",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsUser, "user", "", "user id")
	cmd.Flags().StringVar(&statsDeck, "deck", "", "limit to one deck")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		st, err := a.Statistics.Statistics(cmd.Context(), adminViewer, statsUser, statsDeck)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, report.Summary(&st.Summary, st.ScoreHistory))
		fmt.Fprint(out, "\nMost mispronounced words\n\n")
		fmt.Fprint(out, report.WrongWords(st.TopWrongWords))
		return nil
	})
}

func newTopWordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "top-words",
		Short: "Rank the most mispronounced words across all users",
		Args:  cobra.NoArgs,
		RunE:  runTopWordsCmd,
	}
	cmd.Flags().StringVar(&topDeck, "deck", "", "limit to one deck")
	cmd.Flags().IntVar(&topLimit, "limit", 0, "number of words (default from TOP_WRONG_WORDS)")
	return cmd
}

func runTopWordsCmd(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		words, err := a.Statistics.TopWrongWords(cmd.Context(), adminViewer, topDeck, topLimit)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.WrongWords(words))
		return nil
	})
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "End abandoned sessions once",
		Args:  cobra.NoArgs,
		RunE:  runSweepCmd,
	}
	cmd.Flags().StringVar(&sweepOlderThan, "older-than", "", "session age to expire, e.g. 12h (default from ABANDON_AFTER)")
	return cmd
}

func runSweepCmd(cmd *cobra.Command, _ []string) error {
	var olderThan time.Duration
	if sweepOlderThan != "" {
		d, err := time.ParseDuration(sweepOlderThan)
		if err != nil {
			return fmt.Errorf("invalid --older-than value: %w", err)
		}
		if d <= 0 {
			return errors.New("--older-than must be positive")
		}
		olderThan = d
	}

	return withApp(cmd.Context(), func(a *app.App) error {
		if olderThan == 0 {
			olderThan = a.Config.Game.AbandonAfter
		}
		n, err := a.Game.ExpireAbandoned(cmd.Context(), olderThan)
		fmt.Fprintf(cmd.OutOrStdout(), "Expired %d sessions\n", n)
		return err
	})
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show or email a teacher's class report",
		Args:  cobra.NoArgs,
		RunE:  runReportCmd,
	}
	cmd.Flags().StringVar(&reportTeacher, "teacher", "", "teacher id")
	cmd.Flags().BoolVar(&reportEmail, "email", false, "email the report to the teacher through SES")
	_ = cmd.MarkFlagRequired("teacher")
	return cmd
}

func runReportCmd(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		ctx := cmd.Context()
		if reportEmail {
			class, err := a.Reports.EmailClassReport(ctx, reportTeacher)
			if errors.Is(err, service.ErrEmailDisabled) {
				return errors.New("email is disabled: set SES_FROM_EMAIL")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %q to %s\n", class.Title(), class.Teacher.Email)
			return nil
		}

		class, err := a.Reports.ClassReport(ctx, reportTeacher)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.Styled(class))
		return nil
	})
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every table to a JSON backup file",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportOutput, "output", "", "output file (default: backup_YYYYMMDD_HHMMSS.json)")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	path := exportOutput
	if path == "" {
		path = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}

	return withApp(cmd.Context(), func(a *app.App) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		if err := a.Backup.ExportToWriter(cmd.Context(), f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
		return nil
	})
}

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Load a JSON backup into the database",
		Args:  cobra.NoArgs,
		RunE:  runRestoreCmd,
	}
	cmd.Flags().StringVar(&restoreInput, "input", "", "backup file")
	cmd.Flags().BoolVar(&restoreWipe, "clear", false, "delete existing data first (destructive)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runRestoreCmd(cmd *cobra.Command, _ []string) error {
	f, err := os.Open(restoreInput)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	return withApp(cmd.Context(), func(a *app.App) error {
		if err := a.Backup.ImportFromReader(cmd.Context(), f, restoreWipe); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", restoreInput)
		return nil
	})
}
