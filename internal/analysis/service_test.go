package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/data"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serviceNow = time.Date(2024, 4, 2, 6, 0, 0, 0, time.UTC)

type serviceFixture struct {
	svc    *Service
	stores core.Stores
	nl     *model.Account
	tr     *model.Account
	gone   *model.Account
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	stores := data.NewMemoryStore(data.RepoConfig{TimeProvider: data.NewFixedTimeProvider(serviceNow)}).Stores()

	f := &serviceFixture{
		stores: stores,
		nl:     testAccount("nederland", model.PlatformInstagram, "nlinde", model.AccountActive),
		tr:     testAccount("turkije", model.PlatformTwitter, "nlinturkey", model.AccountActive),
		gone:   testAccount("india", model.PlatformFacebook, "nlinindia", model.AccountInactive),
	}
	for _, a := range []*model.Account{f.nl, f.tr, f.gone} {
		require.NoError(t, stores.Accounts.Upsert(context.Background(), a))
	}

	svc, err := NewService(ServiceOptions{Stores: stores, Now: func() time.Time { return serviceNow }})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func testAccount(country string, platform model.Platform, handle string, status model.AccountStatus) *model.Account {
	return &model.Account{
		ID:       model.AccountID(country, platform, handle),
		Country:  country,
		Platform: platform,
		Handle:   handle,
		Status:   status,
	}
}

func (f *serviceFixture) putMetrics(t *testing.T, accountID, ym string, rate float64, followers, posts, likes int) {
	t.Helper()
	require.NoError(t, f.stores.Metrics.Upsert(context.Background(), &model.MonthlyMetrics{
		AccountID:         accountID,
		YearMonth:         ym,
		AvgEngagementRate: &rate,
		AvgFollowers:      &followers,
		TotalPosts:        posts,
		TotalLikes:        likes,
	}))
}

func TestNewService_RequiresStores(t *testing.T) {
	_, err := NewService(ServiceOptions{})
	require.Error(t, err)
}

func TestService_CalculateAllMonthly(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	at := func(day int) time.Time { return time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC) }
	march := []*model.Post{
		{AccountID: f.nl.ID, PlatformPostID: "p1", PostedAt: at(3), Likes: 10, Comments: 2, Shares: 1},
		{AccountID: f.nl.ID, PlatformPostID: "p2", PostedAt: at(15), Likes: 20},
		// April posts belong to the next month.
		{AccountID: f.nl.ID, PlatformPostID: "p3", PostedAt: at(1).AddDate(0, 1, 0), Likes: 500},
		{AccountID: f.gone.ID, PlatformPostID: "x1", PostedAt: at(4), Likes: 1},
	}
	_, err := f.stores.Posts.Upsert(ctx, march)
	require.NoError(t, err)
	for day, n := range map[int]int{1: 1000, 20: 1100} {
		require.NoError(t, f.stores.Followers.Upsert(ctx, &model.FollowerSnapshot{AccountID: f.nl.ID, Date: at(day), Followers: n}))
	}

	got, err := f.svc.CalculateAllMonthly(ctx, march2024)
	require.NoError(t, err)
	require.Len(t, got, 1, "accounts without posts and inactive accounts are skipped")

	stored, err := f.stores.Metrics.Get(ctx, f.nl.ID, "2024-03")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.TotalPosts)
	assert.Equal(t, 30, stored.TotalLikes)
	require.NotNil(t, stored.AvgFollowers)
	assert.Equal(t, 1050, *stored.AvgFollowers)
	require.NotNil(t, stored.FollowerGrowth)
	assert.Equal(t, 100, *stored.FollowerGrowth)

	none, err := f.svc.CalculateMonthly(ctx, f.tr.ID, march2024)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestService_DetectAnomalies(t *testing.T) {
	f := newServiceFixture(t)
	f.putMetrics(t, f.nl.ID, "2024-02", 1.0, 1000, 10, 100)
	f.putMetrics(t, f.nl.ID, "2024-03", 2.0, 1050, 4, 100)
	f.putMetrics(t, f.tr.ID, "2024-02", 1.5, 300, 5, 20)

	report, err := f.svc.DetectAnomalies(context.Background(), march2024, 20)
	require.NoError(t, err)

	require.Len(t, report.Anomalies, 2)
	assert.Equal(t, TrendEngagement, report.Anomalies[0].Metric)
	assert.InDelta(t, 100.0, report.Anomalies[0].ChangePct, 1e-9)
	assert.Equal(t, TrendPosts, report.Anomalies[1].Metric)
	assert.InDelta(t, -60.0, report.Anomalies[1].ChangePct, 1e-9)
	assert.Equal(t, 1, report.StrongGrowth())
	assert.Equal(t, 1, report.StrongDecline())

	require.Len(t, report.Inactive, 1)
	assert.Equal(t, f.tr.ID, report.Inactive[0].AccountID)
	assert.Equal(t, "no_posts", report.Inactive[0].Reason)
}

func TestService_TrendsAndSummary(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.putMetrics(t, f.nl.ID, "2024-02", 1.0, 1000, 10, 100)
	f.putMetrics(t, f.nl.ID, "2024-03", 2.0, 1050, 4, 100)
	f.putMetrics(t, f.tr.ID, "2024-02", 1.5, 300, 5, 20)
	f.putMetrics(t, f.tr.ID, "2024-03", 1.45, 310, 6, 20)

	trends, err := f.svc.Trends(ctx, march2024)
	require.NoError(t, err)
	assert.Equal(t, 2, trends.Accounts)
	require.Len(t, trends.Growing, 1)
	assert.Equal(t, f.nl.ID, trends.Growing[0].AccountID)
	require.Len(t, trends.Stable, 1)
	assert.Equal(t, f.tr.ID, trends.Stable[0].AccountID)
	assert.Empty(t, trends.Declining)

	summary, err := f.svc.Summarize(ctx, march2024, 1)
	require.NoError(t, err)
	assert.Equal(t, "2024-03", summary.YearMonth)
	assert.Equal(t, serviceNow, summary.GeneratedAt)
	require.Len(t, summary.Top, 1)
	assert.Equal(t, f.nl.ID, summary.Top[0].AccountID)
	require.Len(t, summary.Bottom, 1)
	assert.Equal(t, f.tr.ID, summary.Bottom[0].AccountID)
	assert.Len(t, summary.Metrics, 2)
	assert.Len(t, summary.Platforms, 2)

	bench, err := f.svc.Benchmarks(ctx, march2024)
	require.NoError(t, err)
	require.Len(t, bench.Engagement, 2)
	assert.Equal(t, f.nl.ID, bench.Engagement[0].AccountID)
	require.Len(t, bench.Countries, 2)
	assert.Equal(t, "nederland", bench.Countries[0].Country)

	year, err := f.svc.Year(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, year, 4)
	assert.Equal(t, "2024-02", year[0].YearMonth)
	assert.Equal(t, "2024-03", year[3].YearMonth)
}
