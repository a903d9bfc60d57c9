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

// AnalyseAgentName is the registry name of the analysis agent.
const AnalyseAgentName = "AnalyseAgent"

// AnalyseAgentOptions configures an AnalyseAgent.
type AnalyseAgentOptions struct {
	Analysis *analysis.Service
	Logger   *slog.Logger
	Now      func() time.Time
}

// AnalyseAgent computes monthly metrics, benchmarks and anomalies.
type AnalyseAgent struct {
	analysis *analysis.Service
	logger   *slog.Logger
	now      func() time.Time
}

var _ Agent = (*AnalyseAgent)(nil)

// NewAnalyseAgent constructs an AnalyseAgent.
func NewAnalyseAgent(opts AnalyseAgentOptions) (*AnalyseAgent, error) {
	if opts.Analysis == nil {
		return nil, errors.New("analyse agent: analysis service is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AnalyseAgent{
		analysis: opts.Analysis,
		logger:   logger.With("component", "analyse_agent"),
		now:      now,
	}, nil
}

// Name implements Agent.
func (a *AnalyseAgent) Name() string { return AnalyseAgentName }

// JobTypes implements Agent.
func (a *AnalyseAgent) JobTypes() []model.JobType {
	return []model.JobType{
		model.JobTypeCalculateMonthly,
		model.JobTypeCalculateBenchmarks,
		model.JobTypeDetectAnomalies,
	}
}

// ProcessJob implements Agent.
func (a *AnalyseAgent) ProcessJob(ctx context.Context, job *model.Job) model.JobResult {
	payload, err := job.DecodePayload()
	if err != nil {
		return noRetry(err)
	}
	switch p := payload.(type) {
	case *model.CalculateMonthlyPayload:
		return a.calculateMonthly(ctx, p)
	case *model.CalculateBenchmarksPayload:
		return a.calculateBenchmarks(ctx, p)
	case *model.DetectAnomaliesPayload:
		return a.detectAnomalies(ctx, p)
	default:
		return noRetry(fmt.Errorf("analyse agent: unsupported job type %s", job.Type))
	}
}

func (a *AnalyseAgent) month(s string) (model.YearMonth, error) {
	return model.ResolveYearMonth(s, a.now())
}

func (a *AnalyseAgent) calculateMonthly(ctx context.Context, p *model.CalculateMonthlyPayload) model.JobResult {
	ym, err := a.month(p.YearMonth)
	if err != nil {
		return noRetry(err)
	}

	if p.AccountID != "" {
		m, err := a.analysis.CalculateMonthly(ctx, p.AccountID, ym)
		if err != nil {
			return Fail(err)
		}
		if m == nil {
			return noRetry(fmt.Errorf("no data for %s in %s", p.AccountID, ym))
		}
		return model.Succeeded("metrics calculated for "+p.AccountID, map[string]any{
			"year_month":         ym.String(),
			"accounts_processed": 1,
		})
	}

	rows, err := a.analysis.CalculateAllMonthly(ctx, ym)
	data := map[string]any{
		"year_month":         ym.String(),
		"accounts_processed": len(rows),
	}
	if err != nil {
		a.logger.WarnContext(ctx, "monthly metrics incomplete", "year_month", ym, "error", err)
		data["errors"] = err.Error()
	}
	return model.Succeeded(fmt.Sprintf("metrics calculated for %d accounts", len(rows)), data)
}

func (a *AnalyseAgent) calculateBenchmarks(ctx context.Context, p *model.CalculateBenchmarksPayload) model.JobResult {
	ym, err := a.month(p.YearMonth)
	if err != nil {
		return noRetry(err)
	}
	report, err := a.analysis.Benchmarks(ctx, ym)
	if err != nil {
		return Fail(err)
	}
	return model.Succeeded("benchmarks calculated", map[string]any{
		"year_month":          report.YearMonth,
		"engagement_rankings": len(report.Engagement),
		"follower_rankings":   len(report.Followers),
		"platforms_compared":  len(report.Platforms),
		"regions_compared":    len(report.Countries),
	})
}

func (a *AnalyseAgent) detectAnomalies(ctx context.Context, p *model.DetectAnomaliesPayload) model.JobResult {
	ym, err := a.month(p.YearMonth)
	if err != nil {
		return noRetry(err)
	}
	threshold := p.ThresholdOrDefault()
	report, err := a.analysis.DetectAnomalies(ctx, ym, threshold)
	if err != nil {
		return Fail(err)
	}
	if len(report.Anomalies) > 0 {
		a.logger.InfoContext(ctx, "anomalies detected",
			"year_month", ym, "anomalies", len(report.Anomalies), "inactive", len(report.Inactive))
	}
	return model.Succeeded(fmt.Sprintf("%d anomalies detected", len(report.Anomalies)), map[string]any{
		"year_month":        report.YearMonth,
		"threshold_pct":     report.ThresholdPct,
		"anomalies":         report.Anomalies,
		"inactive_accounts": report.Inactive,
		"summary": map[string]int{
			"total_anomalies": len(report.Anomalies),
			"strong_growth":   report.StrongGrowth(),
			"strong_decline":  report.StrongDecline(),
			"inactive":        len(report.Inactive),
		},
	})
}
