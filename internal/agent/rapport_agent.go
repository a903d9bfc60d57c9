package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/analysis"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

// RapportAgentName is the registry name of the report agent.
const RapportAgentName = "RapportAgent"

// Reports renders analysis results to files.
type Reports interface {
	Dashboard(ctx context.Context, ym model.YearMonth) (string, *analysis.Summary, error)
	MonthlyHTML(ctx context.Context, ym model.YearMonth) (string, error)
	YearlyHTML(ctx context.Context, year int) (string, error)
	MonthlyCSV(ctx context.Context, ym model.YearMonth) (string, error)
	YearlyCSV(ctx context.Context, year int) (string, error)
}

// RapportAgentOptions configures a RapportAgent.
type RapportAgentOptions struct {
	Reports Reports
	Logger  *slog.Logger
	Now     func() time.Time
}

// RapportAgent writes the dashboard snapshot, reports and exports.
type RapportAgent struct {
	reports Reports
	logger  *slog.Logger
	now     func() time.Time
}

var _ Agent = (*RapportAgent)(nil)

// NewRapportAgent constructs a RapportAgent.
func NewRapportAgent(opts RapportAgentOptions) (*RapportAgent, error) {
	if opts.Reports == nil {
		return nil, errors.New("rapport agent: reports are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &RapportAgent{
		reports: opts.Reports,
		logger:  logger.With("component", "rapport_agent"),
		now:     now,
	}, nil
}

// Name implements Agent.
func (a *RapportAgent) Name() string { return RapportAgentName }

// JobTypes implements Agent.
func (a *RapportAgent) JobTypes() []model.JobType {
	return []model.JobType{
		model.JobTypeGenerateDashboardData,
		model.JobTypeGeneratePDF,
		model.JobTypeExportExcel,
	}
}

// ProcessJob implements Agent.
func (a *RapportAgent) ProcessJob(ctx context.Context, job *model.Job) model.JobResult {
	payload, err := job.DecodePayload()
	if err != nil {
		return noRetry(err)
	}
	switch p := payload.(type) {
	case *model.GenerateDashboardDataPayload:
		return a.dashboard(ctx, p)
	case *model.GeneratePDFPayload:
		return a.periodFile(ctx, p.ReportType, p.ReportPeriod, a.reports.MonthlyHTML, a.reports.YearlyHTML)
	case *model.ExportExcelPayload:
		return a.periodFile(ctx, p.ExportType, p.ReportPeriod, a.reports.MonthlyCSV, a.reports.YearlyCSV)
	default:
		return noRetry(fmt.Errorf("rapport agent: unsupported job type %s", job.Type))
	}
}

func (a *RapportAgent) dashboard(ctx context.Context, p *model.GenerateDashboardDataPayload) model.JobResult {
	ym, err := model.ResolveYearMonth(p.YearMonth, a.now())
	if err != nil {
		return noRetry(err)
	}
	path, summary, err := a.reports.Dashboard(ctx, ym)
	if err != nil {
		return Fail(err)
	}
	return model.Succeeded("dashboard data generated", map[string]any{
		"year_month": ym.String(),
		"file_path":  path,
		"platforms":  len(summary.Platforms),
		"countries":  len(summary.Countries),
		"has_trends": summary.Trends != nil && len(summary.Trends.Growing) > 0,
	})
}

type (
	monthlyFile func(context.Context, model.YearMonth) (string, error)
	yearlyFile  func(context.Context, int) (string, error)
)

func (a *RapportAgent) periodFile(ctx context.Context, kind model.ReportType, period model.ReportPeriod, monthly monthlyFile, yearly yearlyFile) model.JobResult {
	var (
		path string
		err  error
	)
	switch kind {
	case model.ReportMonthly, "":
		ym, perr := model.ResolveYearMonth(period.YearMonth, a.now())
		if perr != nil {
			return noRetry(perr)
		}
		path, err = monthly(ctx, ym)
	case model.ReportYearly:
		year := period.Year
		if year == 0 {
			year = a.now().UTC().Year()
		}
		path, err = yearly(ctx, year)
	default:
		return noRetry(fmt.Errorf("unknown report type: %q", kind))
	}
	if err != nil {
		return Fail(err)
	}
	return model.Succeeded("report generated", map[string]any{
		"file_path": path,
	})
}
