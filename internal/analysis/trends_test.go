package analysis

import (
	"testing"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectionOf(t *testing.T) {
	tests := []struct {
		change float64
		want   Direction
	}{
		{25, StrongUp},
		{20, Up},
		{5.1, Up},
		{5, Stable},
		{0, Stable},
		{-5, Stable},
		{-5.1, Down},
		{-20, Down},
		{-20.1, StrongDown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DirectionOf(tt.change), "change %v", tt.change)
	}
}

func TestCompare(t *testing.T) {
	cur := &model.MonthlyMetrics{
		AccountID:         "a",
		YearMonth:         "2024-03",
		AvgEngagementRate: floatPtr(2),
		AvgFollowers:      intPtr(1000),
		TotalPosts:        10,
		TotalLikes:        90,
	}
	prev := &model.MonthlyMetrics{
		AccountID:         "a",
		YearMonth:         "2024-02",
		AvgEngagementRate: floatPtr(1),
		TotalPosts:        10,
		TotalLikes:        100,
	}

	trends := Compare(cur, prev)
	require.Len(t, trends, 3, "followers have no previous value")

	byMetric := map[string]Trend{}
	for _, tr := range trends {
		byMetric[tr.Metric] = tr
	}
	assert.InDelta(t, 100.0, byMetric[TrendEngagement].ChangePct, 1e-9)
	assert.Equal(t, StrongUp, byMetric[TrendEngagement].Direction)
	assert.Equal(t, Stable, byMetric[TrendPosts].Direction)
	assert.InDelta(t, -10.0, byMetric[TrendLikes].ChangePct, 1e-9)
	assert.Equal(t, Down, byMetric[TrendLikes].Direction)
	assert.Equal(t, "2024-02 → 2024-03", byMetric[TrendLikes].Period)

	assert.Nil(t, Compare(cur, nil))
	assert.Nil(t, Compare(nil, prev))
}
