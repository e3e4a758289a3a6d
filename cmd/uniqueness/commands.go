package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/jengzang/run-uniqueness/internal/analysis/route"
	"github.com/jengzang/run-uniqueness/internal/config"
	"github.com/jengzang/run-uniqueness/internal/database"
	"github.com/jengzang/run-uniqueness/internal/logging"
	"github.com/jengzang/run-uniqueness/internal/middleware"
	"github.com/jengzang/run-uniqueness/internal/models"
	"github.com/jengzang/run-uniqueness/internal/repository"
	"github.com/jengzang/run-uniqueness/internal/service"
)

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "uniqueness",
		Short:         "Score how unusual each activity route is",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			logging.Init(cfg.Logging.Logging())
			return nil
		},
	}

	getConfig := func() *config.Config { return cfg }
	root.AddCommand(
		newScoreCmd(getConfig),
		newImportCmd(getConfig),
		newRunCmd(getConfig),
		newTokenCmd(getConfig),
	)
	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newScoreCmd(getConfig func() *config.Config) *cobra.Command {
	var dir, history string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score every JSON activity record in a directory and merge the result into it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			if dir == "" {
				dir = cfg.Data.ActivitiesDir
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			svc, err := service.NewUniquenessService(nil, cfg.Uniqueness)
			if err != nil {
				return err
			}

			var reference []models.Activity
			if history != "" {
				reference, err = repository.LoadHistory(history)
				if err != nil {
					return err
				}
			}

			summary, err := svc.ScoreRecords(ctx, repository.NewFileStore(dir), reference)
			if summary != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "scored %d, unscored %d, skipped %d (corpus %d, %s)\n",
					summary.Scored, summary.Unscored, summary.Skipped, summary.Corpus, summary.Algorithm)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory of activity records (default data.activities_dir)")
	cmd.Flags().StringVar(&history, "history", "", "JSON array of activity records to use as the reference corpus")
	return cmd
}

func newImportCmd(getConfig func() *config.Config) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load an activity history export into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			if file == "" {
				file = cfg.Data.HistoryFile
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			activities, err := repository.LoadHistory(file)
			if err != nil {
				return err
			}

			db, err := database.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			svc, err := service.NewUniquenessService(repository.NewActivityRepository(db), cfg.Uniqueness)
			if err != nil {
				return err
			}

			n, err := svc.ImportActivities(ctx, activities)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d activities\n", n, len(activities))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "history file (default data.history_file)")
	return cmd
}

func newRunCmd(getConfig func() *config.Config) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score the activities stored in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			db, err := database.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			taskType := models.TaskTypeIncremental
			if full {
				taskType = models.TaskTypeFullRecompute
			}

			task, err := service.NewAnalysisTaskService(db, cfg.Uniqueness).RunTask(ctx, route.SkillName, taskType, "cli")
			if errors.Is(err, service.ErrNothingToAnalyze) {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to score")
				return nil
			}
			if err != nil {
				return err
			}
			if task.Status != models.TaskStatusCompleted {
				return fmt.Errorf("task %d %s: %s", task.ID, task.Status, task.ErrorMessage)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "task %d completed: %s\n", task.ID, task.ResultSummary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "rescore every activity instead of only unscored ones")
	return cmd
}

func newTokenCmd(getConfig func() *config.Config) *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API token signed with security.jwt_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			if cfg.Security.JWTSecret == "" {
				return fmt.Errorf("security.jwt_secret is not set")
			}

			now := time.Now()
			token, err := middleware.IssueToken(subject, cfg.Security.JWTSecret, jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
