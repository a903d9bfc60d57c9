package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/config"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/bootstrap"
)

// cli carries the state shared by every subcommand.
type cli struct {
	out    io.Writer
	cfg    config.AppConfig
	logger *slog.Logger

	memory       bool
	accountsFile string
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:           "socialmonitor",
		Short:         "Monitor the social media accounts of embassies and consulates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.loadConfig()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().BoolVar(&c.memory, "memory", false, "keep jobs and data in memory instead of Postgres")
	root.PersistentFlags().StringVar(&c.accountsFile, "accounts", "", "accounts YAML file (overrides ACCOUNTS_FILE)")

	root.AddCommand(
		serveCmd(c),
		dailyCmd(c),
		backfillCmd(c),
		reportsCmd(c),
		statusCmd(c),
		cleanupCmd(c),
		enqueueCmd(c),
		jobsCmd(c),
		accountsCmd(c),
		migrateCmd(c),
	)
	return root
}

func (c *cli) loadConfig() error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if c.memory {
		cfg.Queue.Backend = config.QueueBackendMemory
	}
	if c.accountsFile != "" {
		cfg.Accounts.File = c.accountsFile
		cfg.Accounts.Sanitize()
	}
	c.cfg = cfg
	c.logger = bootstrap.InitLogger(cfg.Observability.Logging)
	return nil
}

// runOptions controls the app lifecycle around a command.
type runOptions struct {
	// agents starts the queue agents before the command body runs.
	agents bool
	// cleanup removes old jobs on exit, as the long running workflows do.
	cleanup bool
}

// withApp wires the application, runs fn and tears everything down again.
// SIGINT and SIGTERM cancel the context passed to fn.
func (c *cli) withApp(cmd *cobra.Command, opts runOptions, fn func(context.Context, *bootstrap.App) error) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, bootstrap.AppDeps{Config: &c.cfg, Logger: c.logger})
	if err != nil {
		return err
	}
	defer func() {
		teardown := context.WithoutCancel(ctx)
		var terr error
		if opts.cleanup {
			terr = app.Orchestrator.Cleanup(teardown)
		} else {
			terr = errors.Join(app.Orchestrator.StopAgents(teardown), app.Agents.Close())
		}
		err = errors.Join(err, terr, app.Close())
	}()

	if _, err := app.Orchestrator.Initialize(ctx); err != nil {
		return err
	}
	if opts.agents {
		if err := app.Orchestrator.StartAgents(ctx); err != nil {
			return err
		}
	}
	return fn(ctx, app)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
