package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

// ServiceOptions groups dependencies for Service.
type ServiceOptions struct {
	Stores core.Stores
	Logger *slog.Logger
	Now    func() time.Time
}

// Service runs the analyses against the domain stores.
type Service struct {
	stores core.Stores
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Stores.Accounts == nil || opts.Stores.Posts == nil ||
		opts.Stores.Followers == nil || opts.Stores.Metrics == nil {
		return nil, errors.New("analysis: account, post, follower and metrics stores are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		stores: opts.Stores,
		logger: logger.With("component", "analysis"),
		now:    now,
	}, nil
}

// CalculateMonthly computes and stores the metrics of one account. It
// returns nil, nil when the account published nothing that month.
func (s *Service) CalculateMonthly(ctx context.Context, accountID string, ym model.YearMonth) (*model.MonthlyMetrics, error) {
	posts, err := s.stores.Posts.ListByAccount(ctx, core.PostRangeParams{
		AccountID: accountID,
		From:      ym.Start(),
		To:        ym.End(),
	})
	if err != nil {
		return nil, fmt.Errorf("posts of %s: %w", accountID, err)
	}
	if len(posts) == 0 {
		s.logger.DebugContext(ctx, "no posts in month", "account_id", accountID, "year_month", ym)
		return nil, nil
	}

	history, err := s.stores.Followers.History(ctx, core.FollowerRangeParams{
		AccountID: accountID,
		From:      ym.Start(),
		To:        ym.End(),
	})
	if err != nil {
		return nil, fmt.Errorf("follower history of %s: %w", accountID, err)
	}
	var latest *model.FollowerSnapshot
	if len(history) == 0 {
		if latest, err = s.stores.Followers.Latest(ctx, accountID); err != nil {
			return nil, fmt.Errorf("latest followers of %s: %w", accountID, err)
		}
	}

	m := Monthly(MonthlyInput{
		AccountID: accountID,
		Month:     ym,
		Posts:     posts,
		History:   history,
		Latest:    latest,
		Now:       s.now(),
	})
	if err := s.stores.Metrics.Upsert(ctx, m); err != nil {
		return nil, fmt.Errorf("store metrics of %s: %w", accountID, err)
	}
	return m, nil
}

// CalculateAllMonthly computes the metrics of every active account. Accounts
// without posts in the month are skipped; a failing account does not stop
// the others.
func (s *Service) CalculateAllMonthly(ctx context.Context, ym model.YearMonth) ([]*model.MonthlyMetrics, error) {
	accounts, err := s.stores.Accounts.List(ctx, model.AccountListOptions{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var (
		out  []*model.MonthlyMetrics
		errs []error
	)
	for _, a := range accounts {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		m, err := s.CalculateMonthly(ctx, a.ID, ym)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if m != nil {
			out = append(out, m)
		}
	}
	s.logger.InfoContext(ctx, "monthly metrics calculated", "year_month", ym, "accounts", len(out), "errors", len(errs))
	return out, errors.Join(errs...)
}

// BenchmarkReport ranks and groups the accounts of one month.
type BenchmarkReport struct {
	YearMonth  string          `json:"year_month"`
	Engagement []Benchmark     `json:"engagement"`
	Followers  []Benchmark     `json:"followers"`
	Platforms  []PlatformStats `json:"platforms"`
	Countries  []CountryStats  `json:"countries"`
}

// Benchmarks builds the rankings and comparisons of a month.
func (s *Service) Benchmarks(ctx context.Context, ym model.YearMonth) (*BenchmarkReport, error) {
	rows, err := s.stores.Metrics.ForMonth(ctx, ym.String())
	if err != nil {
		return nil, fmt.Errorf("metrics for %s: %w", ym, err)
	}
	return &BenchmarkReport{
		YearMonth:  ym.String(),
		Engagement: Rank(rows, MetricEngagementRate),
		Followers:  Rank(rows, MetricFollowers),
		Platforms:  ComparePlatforms(rows),
		Countries:  CompareCountries(rows),
	}, nil
}

// Anomaly is a month-over-month change at or above the threshold.
type Anomaly struct {
	AccountID     string         `json:"account_id"`
	Country       string         `json:"country"`
	Platform      model.Platform `json:"platform"`
	Metric        string         `json:"metric"`
	ChangePct     float64        `json:"change_pct"`
	Direction     Direction      `json:"direction"`
	CurrentValue  float64        `json:"current_value"`
	PreviousValue float64        `json:"previous_value"`
}

// InactiveAccount published nothing in the month.
type InactiveAccount struct {
	AccountID string         `json:"account_id"`
	Country   string         `json:"country"`
	Platform  model.Platform `json:"platform"`
	Reason    string         `json:"reason"`
}

// AnomalyReport lists the anomalies of one month, largest change first.
type AnomalyReport struct {
	YearMonth    string            `json:"year_month"`
	ThresholdPct float64           `json:"threshold_pct"`
	Anomalies    []Anomaly         `json:"anomalies"`
	Inactive     []InactiveAccount `json:"inactive_accounts"`
}

// StrongGrowth counts the positive anomalies.
func (r *AnomalyReport) StrongGrowth() int {
	n := 0
	for _, a := range r.Anomalies {
		if a.ChangePct > 0 {
			n++
		}
	}
	return n
}

// StrongDecline counts the negative anomalies.
func (r *AnomalyReport) StrongDecline() int {
	n := 0
	for _, a := range r.Anomalies {
		if a.ChangePct < 0 {
			n++
		}
	}
	return n
}

// DetectAnomalies compares every active account with the previous month.
func (s *Service) DetectAnomalies(ctx context.Context, ym model.YearMonth, thresholdPct float64) (*AnomalyReport, error) {
	accounts, err := s.stores.Accounts.List(ctx, model.AccountListOptions{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	cur, prev, err := s.twoMonths(ctx, ym)
	if err != nil {
		return nil, err
	}

	report := &AnomalyReport{YearMonth: ym.String(), ThresholdPct: thresholdPct}
	for _, a := range accounts {
		for _, t := range Compare(cur[a.ID], prev[a.ID]) {
			if math.Abs(t.ChangePct) < thresholdPct {
				continue
			}
			report.Anomalies = append(report.Anomalies, Anomaly{
				AccountID:     a.ID,
				Country:       a.Country,
				Platform:      a.Platform,
				Metric:        t.Metric,
				ChangePct:     t.ChangePct,
				Direction:     t.Direction,
				CurrentValue:  t.CurrentValue,
				PreviousValue: t.PreviousValue,
			})
		}
		if m := cur[a.ID]; m == nil || m.TotalPosts == 0 {
			report.Inactive = append(report.Inactive, InactiveAccount{
				AccountID: a.ID,
				Country:   a.Country,
				Platform:  a.Platform,
				Reason:    "no_posts",
			})
		}
	}
	sort.SliceStable(report.Anomalies, func(i, j int) bool {
		return math.Abs(report.Anomalies[i].ChangePct) > math.Abs(report.Anomalies[j].ChangePct)
	})
	return report, nil
}

// TrendEntry is one account in a TrendSummary.
type TrendEntry struct {
	AccountID string         `json:"account_id"`
	Country   string         `json:"country"`
	Platform  model.Platform `json:"platform"`
	ChangePct float64        `json:"change_pct"`
	Direction Direction      `json:"direction"`
}

// TrendSummary splits accounts by the direction of their engagement rate.
type TrendSummary struct {
	Period    string       `json:"period"`
	Growing   []TrendEntry `json:"growing"`
	Declining []TrendEntry `json:"declining"`
	Stable    []TrendEntry `json:"stable"`
	Accounts  int          `json:"total_accounts"`
}

// Trends summarizes the engagement trend of every active account.
func (s *Service) Trends(ctx context.Context, ym model.YearMonth) (*TrendSummary, error) {
	accounts, err := s.stores.Accounts.List(ctx, model.AccountListOptions{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	cur, prev, err := s.twoMonths(ctx, ym)
	if err != nil {
		return nil, err
	}

	out := &TrendSummary{Period: ym.Prev().String() + " → " + ym.String(), Accounts: len(accounts)}
	for _, a := range accounts {
		for _, t := range Compare(cur[a.ID], prev[a.ID]) {
			if t.Metric != TrendEngagement {
				continue
			}
			e := TrendEntry{AccountID: a.ID, Country: a.Country, Platform: a.Platform, ChangePct: t.ChangePct, Direction: t.Direction}
			switch t.Direction {
			case StrongUp, Up:
				out.Growing = append(out.Growing, e)
			case StrongDown, Down:
				out.Declining = append(out.Declining, e)
			default:
				out.Stable = append(out.Stable, e)
			}
		}
	}
	sort.SliceStable(out.Growing, func(i, j int) bool { return out.Growing[i].ChangePct > out.Growing[j].ChangePct })
	sort.SliceStable(out.Declining, func(i, j int) bool { return out.Declining[i].ChangePct < out.Declining[j].ChangePct })
	return out, nil
}

func (s *Service) twoMonths(ctx context.Context, ym model.YearMonth) (cur, prev map[string]*model.MonthlyMetrics, err error) {
	if cur, err = s.byAccount(ctx, ym); err != nil {
		return nil, nil, err
	}
	if prev, err = s.byAccount(ctx, ym.Prev()); err != nil {
		return nil, nil, err
	}
	return cur, prev, nil
}

func (s *Service) byAccount(ctx context.Context, ym model.YearMonth) (map[string]*model.MonthlyMetrics, error) {
	rows, err := s.stores.Metrics.ForMonth(ctx, ym.String())
	if err != nil {
		return nil, fmt.Errorf("metrics for %s: %w", ym, err)
	}
	out := make(map[string]*model.MonthlyMetrics, len(rows))
	for _, r := range rows {
		out[r.AccountID] = &r.MonthlyMetrics
	}
	return out, nil
}

// Summary is the complete picture of a month used by the dashboard and reports.
type Summary struct {
	YearMonth   string                      `json:"year_month"`
	GeneratedAt time.Time                   `json:"generated_at"`
	Trends      *TrendSummary               `json:"trends"`
	Platforms   []PlatformStats             `json:"by_platform"`
	Countries   []CountryStats              `json:"by_region"`
	Top         []Benchmark                 `json:"top_performers"`
	Bottom      []Benchmark                 `json:"bottom_performers"`
	Metrics     []*model.MetricsWithAccount `json:"metrics"`
}

// Summarize builds the Summary of a month with n top and bottom performers.
func (s *Service) Summarize(ctx context.Context, ym model.YearMonth, n int) (*Summary, error) {
	rows, err := s.stores.Metrics.ForMonth(ctx, ym.String())
	if err != nil {
		return nil, fmt.Errorf("metrics for %s: %w", ym, err)
	}
	trends, err := s.Trends(ctx, ym)
	if err != nil {
		return nil, err
	}
	ranked := Rank(rows, MetricEngagementRate)
	return &Summary{
		YearMonth:   ym.String(),
		GeneratedAt: s.now().UTC(),
		Trends:      trends,
		Platforms:   ComparePlatforms(rows),
		Countries:   CompareCountries(rows),
		Top:         Top(ranked, n),
		Bottom:      Bottom(ranked, n),
		Metrics:     rows,
	}, nil
}

// Year returns every metrics row of a calendar year, ordered by month.
func (s *Service) Year(ctx context.Context, year int) ([]*model.MetricsWithAccount, error) {
	from := fmt.Sprintf("%04d-01", year)
	to := fmt.Sprintf("%04d-12", year)
	rows, err := s.stores.Metrics.ForRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("metrics for %d: %w", year, err)
	}
	return rows, nil
}
