package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/data/pgxutil"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	apperrors "github.com/JuliaLoth/NLWW-socialmediamonitor/internal/errors"
)

const metricsColumns = `id, account_id, year_month, avg_followers, follower_growth, follower_growth_pct,
	total_posts, total_likes, total_comments, total_shares, avg_engagement_rate, top_post_id, calculated_at`

const metricsWithAccountSelect = `
	SELECT m.id, m.account_id, m.year_month, m.avg_followers, m.follower_growth, m.follower_growth_pct,
	       m.total_posts, m.total_likes, m.total_comments, m.total_shares, m.avg_engagement_rate,
	       m.top_post_id, m.calculated_at, a.country, a.platform, a.handle
	FROM monthly_metrics m
	JOIN accounts a ON a.id = m.account_id`

// MetricsRepo stores computed monthly metrics in Postgres.
type MetricsRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewMetricsRepo creates a new MetricsRepo.
func NewMetricsRepo(db *sql.DB, cfg RepoConfig) *MetricsRepo {
	tp, logger := cfg.resolve()
	return &MetricsRepo{DB: db, timeProvider: tp, logger: logger.With("component", "metrics_repo")}
}

// Upsert writes the metrics row for (account_id, year_month), replacing a previous calculation.
func (r *MetricsRepo) Upsert(ctx context.Context, m *model.MonthlyMetrics) error {
	if m == nil || m.AccountID == "" {
		return ErrAccountIDRequired
	}
	if _, err := model.ParseYearMonth(m.YearMonth); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidYearMonth, m.YearMonth)
	}
	m.ID = model.MonthlyMetricsID(m.AccountID, m.YearMonth)
	if m.CalculatedAt.IsZero() {
		m.CalculatedAt = r.timeProvider.Now().UTC()
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO monthly_metrics (`+metricsColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (account_id, year_month) DO UPDATE SET
			avg_followers = EXCLUDED.avg_followers,
			follower_growth = EXCLUDED.follower_growth,
			follower_growth_pct = EXCLUDED.follower_growth_pct,
			total_posts = EXCLUDED.total_posts,
			total_likes = EXCLUDED.total_likes,
			total_comments = EXCLUDED.total_comments,
			total_shares = EXCLUDED.total_shares,
			avg_engagement_rate = EXCLUDED.avg_engagement_rate,
			top_post_id = EXCLUDED.top_post_id,
			calculated_at = EXCLUDED.calculated_at
	`, m.ID, m.AccountID, m.YearMonth, m.AvgFollowers, m.FollowerGrowth, m.FollowerGrowthPct,
		m.TotalPosts, m.TotalLikes, m.TotalComments, m.TotalShares, m.AvgEngagementRate, m.TopPostID, m.CalculatedAt)
	if err != nil {
		return fmt.Errorf("upsert metrics %s: %w", m.ID, apperrors.MapDBError(err))
	}
	return nil
}

type metricsRowData struct {
	avgFollowers, followerGrowth  sql.NullInt64
	followerGrowthPct, engagement sql.NullFloat64
	topPostID                     sql.NullString
}

func (d *metricsRowData) apply(m *model.MonthlyMetrics) {
	if d.avgFollowers.Valid {
		v := int(d.avgFollowers.Int64)
		m.AvgFollowers = &v
	}
	if d.followerGrowth.Valid {
		v := int(d.followerGrowth.Int64)
		m.FollowerGrowth = &v
	}
	if d.followerGrowthPct.Valid {
		v := d.followerGrowthPct.Float64
		m.FollowerGrowthPct = &v
	}
	if d.engagement.Valid {
		v := d.engagement.Float64
		m.AvgEngagementRate = &v
	}
	m.TopPostID = cloneNullableString(d.topPostID)
	m.CalculatedAt = m.CalculatedAt.UTC()
}

// Get returns the metrics of one account and month, or nil when they were never calculated.
func (r *MetricsRepo) Get(ctx context.Context, accountID, yearMonth string) (*model.MonthlyMetrics, error) {
	var m model.MonthlyMetrics
	var d metricsRowData
	err := r.DB.QueryRowContext(ctx, `
		SELECT `+metricsColumns+`
		FROM monthly_metrics
		WHERE account_id = $1 AND year_month = $2
	`, accountID, yearMonth).Scan(
		&m.ID, &m.AccountID, &m.YearMonth, &d.avgFollowers, &d.followerGrowth, &d.followerGrowthPct,
		&m.TotalPosts, &m.TotalLikes, &m.TotalComments, &m.TotalShares, &d.engagement, &d.topPostID, &m.CalculatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("get metrics %s %s: %w", accountID, yearMonth, apperrors.MapDBError(err))
	}
	d.apply(&m)
	return &m, nil
}

// ForMonth returns metrics of active accounts for one month, best engagement first.
func (r *MetricsRepo) ForMonth(ctx context.Context, yearMonth string) ([]*model.MetricsWithAccount, error) {
	return r.collect(ctx, metricsWithAccountSelect+`
		WHERE m.year_month = $1 AND a.status = 'active'
		ORDER BY m.avg_engagement_rate DESC NULLS LAST, m.account_id`, yearMonth)
}

// ForRange returns metrics for months in [fromYM, toYM], ordered by month then account.
func (r *MetricsRepo) ForRange(ctx context.Context, fromYM, toYM string) ([]*model.MetricsWithAccount, error) {
	return r.collect(ctx, metricsWithAccountSelect+`
		WHERE m.year_month >= $1 AND m.year_month <= $2
		ORDER BY m.year_month, m.account_id`, fromYM, toYM)
}

func (r *MetricsRepo) collect(ctx context.Context, query string, args ...any) ([]*model.MetricsWithAccount, error) {
	rows, err := pgxutil.QueryStructs[model.MetricsWithAccount](ctx, r.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", apperrors.MapDBError(err))
	}
	return rows, nil
}
