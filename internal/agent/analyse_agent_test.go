package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/analysis"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/data"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

func newAnalyseFixture(t *testing.T) (*AnalyseAgent, core.Stores) {
	t.Helper()
	stores := data.NewMemoryStore(data.RepoConfig{TimeProvider: data.NewFixedTimeProvider(agentNow)}).Stores()
	for _, a := range []*model.Account{
		{ID: "nederland_instagram_nlinde", Country: "nederland", Platform: model.PlatformInstagram, Handle: "nlinde"},
		{ID: "turkije_twitter_nlinturkey", Country: "turkije", Platform: model.PlatformTwitter, Handle: "nlinturkey"},
	} {
		require.NoError(t, stores.Accounts.Upsert(context.Background(), a))
	}
	now := func() time.Time { return agentNow }
	svc, err := analysis.NewService(analysis.ServiceOptions{Stores: stores, Now: now})
	require.NoError(t, err)
	a, err := NewAnalyseAgent(AnalyseAgentOptions{Analysis: svc, Now: now})
	require.NoError(t, err)
	return a, stores
}

func putMetrics(t *testing.T, stores core.Stores, accountID, ym string, rate float64, posts int) {
	t.Helper()
	followers := 1000
	require.NoError(t, stores.Metrics.Upsert(context.Background(), &model.MonthlyMetrics{
		AccountID:         accountID,
		YearMonth:         ym,
		AvgEngagementRate: &rate,
		AvgFollowers:      &followers,
		TotalPosts:        posts,
	}))
}

func TestNewAnalyseAgent_Validation(t *testing.T) {
	_, err := NewAnalyseAgent(AnalyseAgentOptions{})
	require.Error(t, err)
}

func TestAnalyseAgent_CalculateMonthly(t *testing.T) {
	a, stores := newAnalyseFixture(t)
	ctx := context.Background()
	_, err := stores.Posts.Upsert(ctx, []*model.Post{
		{AccountID: "nederland_instagram_nlinde", PlatformPostID: "p1", PostedAt: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), Likes: 40},
	})
	require.NoError(t, err)

	res := a.ProcessJob(ctx, newJob(t, model.CalculateMonthlyPayload{YearMonth: "2024-03"}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "2024-03", res.Data["year_month"])
	assert.Equal(t, 1, res.Data["accounts_processed"])

	m, err := stores.Metrics.Get(ctx, "nederland_instagram_nlinde", "2024-03")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 40, m.TotalLikes)
}

func TestAnalyseAgent_CalculateMonthlySingleAccountWithoutData(t *testing.T) {
	a, _ := newAnalyseFixture(t)

	res := a.ProcessJob(context.Background(), newJob(t, model.CalculateMonthlyPayload{AccountID: "turkije_twitter_nlinturkey"}))
	assert.False(t, res.Success)
	assert.True(t, res.NoRetry)
	assert.Contains(t, res.Error, "2024-04", "defaults to the current month")
}

func TestAnalyseAgent_CalculateBenchmarks(t *testing.T) {
	a, stores := newAnalyseFixture(t)
	putMetrics(t, stores, "nederland_instagram_nlinde", "2024-03", 2.0, 10)
	putMetrics(t, stores, "turkije_twitter_nlinturkey", "2024-03", 1.0, 5)

	res := a.ProcessJob(context.Background(), newJob(t, model.CalculateBenchmarksPayload{YearMonth: "2024-03"}))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Data["engagement_rankings"])
	assert.Equal(t, 2, res.Data["follower_rankings"])
	assert.Equal(t, 2, res.Data["platforms_compared"])
	assert.Equal(t, 2, res.Data["regions_compared"])
}

func TestAnalyseAgent_DetectAnomalies(t *testing.T) {
	a, stores := newAnalyseFixture(t)
	putMetrics(t, stores, "nederland_instagram_nlinde", "2024-02", 1.0, 10)
	putMetrics(t, stores, "nederland_instagram_nlinde", "2024-03", 1.8, 10)

	res := a.ProcessJob(context.Background(), newJob(t, model.DetectAnomaliesPayload{YearMonth: "2024-03"}))
	require.True(t, res.Success, res.Error)
	assert.InDelta(t, model.DefaultAnomalyThresholdPct, res.Data["threshold_pct"], 1e-9)
	assert.Equal(t, map[string]int{
		"total_anomalies": 1,
		"strong_growth":   1,
		"strong_decline":  0,
		"inactive":        1,
	}, res.Data["summary"])

	anomalies, ok := res.Data["anomalies"].([]analysis.Anomaly)
	require.True(t, ok)
	require.Len(t, anomalies, 1)
	assert.Equal(t, analysis.TrendEngagement, anomalies[0].Metric)
}
