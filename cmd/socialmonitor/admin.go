package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/bootstrap"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/orchestrator"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/service"
)

const defaultMigrationTimeout = 5 * time.Minute

func statusCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queued jobs and monitored accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, runOptions{}, func(ctx context.Context, app *bootstrap.App) error {
				st, err := app.Orchestrator.Status(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return c.printJSON(st)
				}
				return c.printStatus(st)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	return cmd
}

func (c *cli) printStatus(st *orchestrator.Status) error {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ACCOUNTS\t%d (%d active)\n", st.Accounts.Total, st.Accounts.Active)
	for _, pc := range st.Accounts.ByPlatform {
		fmt.Fprintf(tw, "  %s\t%d\n", pc.Platform, pc.Count)
	}
	fmt.Fprintf(tw, "JOBS\t%d\n", st.Jobs.Total())
	for _, s := range []model.JobStatus{
		model.JobStatusPending,
		model.JobStatusRunning,
		model.JobStatusCompleted,
		model.JobStatusFailed,
		model.JobStatusCancelled,
	} {
		fmt.Fprintf(tw, "  %s\t%d\n", s, st.Jobs[s])
	}
	return tw.Flush()
}

func cleanupCmd(c *cli) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete finished jobs older than --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				days = c.cfg.Queue.CleanupDays
			}
			return c.withApp(cmd, runOptions{}, func(ctx context.Context, app *bootstrap.App) error {
				n, err := app.Queue.CleanupOldJobs(ctx, days)
				if err != nil {
					return err
				}
				return c.printJSON(map[string]any{"deleted": n, "days": days})
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "age in days (default QUEUE_CLEANUP_DAYS)")
	return cmd
}

func enqueueCmd(c *cli) *cobra.Command {
	var (
		payload    string
		priority   int
		maxRetries int
	)
	cmd := &cobra.Command{
		Use:   "enqueue <job-type>",
		Short: "Queue a single job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var jt model.JobType
			if err := jt.UnmarshalText([]byte(args[0])); err != nil {
				return err
			}
			p, err := model.DecodePayload(jt, json.RawMessage(payload))
			if err != nil {
				return err
			}
			opts := service.EnqueueOptions{Priority: priority}
			if cmd.Flags().Changed("max-retries") {
				opts.MaxRetries = &maxRetries
			}
			return c.withApp(cmd, runOptions{}, func(ctx context.Context, app *bootstrap.App) error {
				job, err := app.Queue.Enqueue(ctx, p, opts)
				if err != nil {
					return err
				}
				return c.printJSON(job)
			})
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "{}", "job payload as JSON")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority from 1 (most urgent) to 10")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "override the retry limit")
	return cmd
}

func jobsCmd(c *cli) *cobra.Command {
	var (
		status string
		types  string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := model.JobListOptions{Limit: limit}
			if status != "" {
				st := model.JobStatus(strings.ToLower(strings.TrimSpace(status)))
				if !st.Valid() {
					return fmt.Errorf("unknown job status %q", status)
				}
				opts.Status = &st
			}
			if types != "" {
				jts, err := model.ParseJobTypes(types)
				if err != nil {
					return err
				}
				if len(jts) != 1 {
					return errors.New("--type takes a single job type")
				}
				opts.Type = &jts[0]
			}
			return c.withApp(cmd, runOptions{}, func(ctx context.Context, app *bootstrap.App) error {
				jobs, err := app.Queue.List(ctx, opts)
				if err != nil {
					return err
				}
				return c.printJobs(jobs)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&types, "type", "", "filter by job type")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of jobs")
	return cmd
}

func (c *cli) printJobs(jobs []*model.Job) error {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tPRIORITY\tRETRIES\tCREATED")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d/%d\t%s\n",
			j.ID, j.Type, j.Status, j.Priority, j.Retries, j.MaxRetries, j.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func accountsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "Import the accounts file and print the totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, runOptions{}, func(ctx context.Context, app *bootstrap.App) error {
				st, err := app.Orchestrator.Status(ctx)
				if err != nil {
					return err
				}
				return c.printJSON(st.Accounts)
			})
		},
	}
}

func migrateCmd(c *cli) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.UsesMemoryBackend() {
				return errors.New("migrate needs the postgres backend")
			}
			db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: c.cfg.Postgres, Logger: c.logger})
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return bootstrap.RunMigrations(ctx, db, c.logger)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrationTimeout, "migration timeout")
	return cmd
}
