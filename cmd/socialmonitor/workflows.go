package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/bootstrap"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/orchestrator"
)

func serveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the services listed in SERVICES until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := bootstrap.ValidateServiceConfig(&c.cfg); err != nil {
				return err
			}
			c.logger.InfoContext(cmd.Context(), "starting socialmonitor",
				"services", strings.Join(bootstrap.GetEnabledServices(&c.cfg), ","),
				"backend", c.cfg.Queue.Backend,
				"accounts_file", c.cfg.Accounts.File,
				"dev", c.cfg.IsDev,
			)
			return c.withApp(cmd, runOptions{}, func(ctx context.Context, app *bootstrap.App) error {
				return bootstrap.RunServicesWithShutdown(ctx, app)
			})
		},
	}
}

func dailyCmd(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Collect all accounts, then recalculate metrics, benchmarks and anomalies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, runOptions{agents: true, cleanup: true}, func(ctx context.Context, app *bootstrap.App) error {
				res, err := app.Orchestrator.RunDailyCollection(ctx, orchestrator.DailyOptions{Force: force})
				if errors.Is(err, orchestrator.ErrAlreadyRan) {
					return fmt.Errorf("%w (use --force to run again)", err)
				}
				if err != nil {
					return err
				}
				return c.printJSON(res)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "run even if the daily collection already ran today")
	return cmd
}

func backfillCmd(c *cli) *cobra.Command {
	var (
		country string
		wait    bool
	)
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Queue a 12 month history collection for every active account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, runOptions{agents: wait, cleanup: wait}, func(ctx context.Context, app *bootstrap.App) error {
				res, err := app.Orchestrator.RunHistoricalBackfill(ctx, country)
				if err != nil {
					return err
				}
				if wait && res.AccountsQueued > 0 {
					done, err := app.Queue.WaitForCompletion(ctx, c.cfg.Queue.WaitTimeout, model.JobTypeCollectHistorical)
					if err != nil {
						return err
					}
					if !done {
						c.logger.WarnContext(ctx, "backfill still running after wait timeout")
					}
				}
				return c.printJSON(res)
			})
		},
	}
	cmd.Flags().StringVar(&country, "country", "", "only accounts of this country code")
	cmd.Flags().BoolVar(&wait, "wait", false, "run the agents and wait for the backfill to finish")
	return cmd
}

func reportsCmd(c *cli) *cobra.Command {
	var req orchestrator.ReportRequest
	var reportType string
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Generate the HTML report and CSV export for a month or a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Type = model.ReportType(strings.ToLower(strings.TrimSpace(reportType)))
			if req.Type != "" && !req.Type.Valid() {
				return fmt.Errorf("%w: unknown report type %q", model.ErrInvalidPayload, reportType)
			}
			return c.withApp(cmd, runOptions{agents: true, cleanup: true}, func(ctx context.Context, app *bootstrap.App) error {
				res, err := app.Orchestrator.GenerateReports(ctx, req)
				if err != nil {
					return err
				}
				return c.printJSON(res)
			})
		},
	}
	cmd.Flags().StringVar(&reportType, "type", string(model.ReportMonthly), "monthly or yearly")
	cmd.Flags().StringVar(&req.YearMonth, "month", "", "report month as YYYY-MM (default: current month)")
	cmd.Flags().IntVar(&req.Year, "year", 0, "report year (default: current year)")
	return cmd
}
