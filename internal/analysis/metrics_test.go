package analysis

import (
	"testing"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march2024 = model.YearMonth{Year: 2024, Month: time.March}

func post(id string, likes, comments, shares int) *model.Post {
	return &model.Post{ID: id, PlatformPostID: id, Likes: likes, Comments: comments, Shares: shares}
}

func snapshot(followers int) *model.FollowerSnapshot {
	return &model.FollowerSnapshot{Followers: followers}
}

func TestEngagementRate(t *testing.T) {
	assert.InDelta(t, 3.7, EngagementRate(10, 5, 4, 1000), 1e-9)
	assert.Zero(t, EngagementRate(10, 5, 4, 0))
}

func TestMonthly(t *testing.T) {
	now := time.Date(2024, 4, 1, 6, 0, 0, 0, time.UTC)
	posts := []*model.Post{post("p1", 10, 2, 1), post("p2", 20, 0, 0)}

	tests := []struct {
		name          string
		history       []*model.FollowerSnapshot
		latest        *model.FollowerSnapshot
		wantFollowers *int
		wantGrowth    *int
		wantGrowthPct *float64
		wantRate      float64
	}{
		{
			name:          "history skips empty snapshots",
			history:       []*model.FollowerSnapshot{snapshot(1000), snapshot(0), snapshot(1100)},
			wantFollowers: intPtr(1050),
			wantGrowth:    intPtr(100),
			wantGrowthPct: floatPtr(10),
			wantRate:      1.761905,
		},
		{
			name:          "latest snapshot without history",
			latest:        snapshot(500),
			wantFollowers: intPtr(500),
			wantRate:      3.7,
		},
		{
			name:     "no follower data",
			wantRate: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Monthly(MonthlyInput{
				AccountID: "nederland_instagram_nlinde",
				Month:     march2024,
				Posts:     posts,
				History:   tt.history,
				Latest:    tt.latest,
				Now:       now,
			})
			require.NotNil(t, m)

			assert.Equal(t, "nederland_instagram_nlinde_2024-03", m.ID)
			assert.Equal(t, "2024-03", m.YearMonth)
			assert.Equal(t, 2, m.TotalPosts)
			assert.Equal(t, 30, m.TotalLikes)
			assert.Equal(t, 2, m.TotalComments)
			assert.Equal(t, 1, m.TotalShares)
			require.NotNil(t, m.TopPostID)
			assert.Equal(t, "p2", *m.TopPostID)
			assert.Equal(t, tt.wantFollowers, m.AvgFollowers)
			assert.Equal(t, tt.wantGrowth, m.FollowerGrowth)
			assert.Equal(t, tt.wantGrowthPct, m.FollowerGrowthPct)
			require.NotNil(t, m.AvgEngagementRate)
			assert.InDelta(t, tt.wantRate, *m.AvgEngagementRate, 1e-9)
			assert.Equal(t, now, m.CalculatedAt)
		})
	}
}

func TestMonthly_NoPosts(t *testing.T) {
	assert.Nil(t, Monthly(MonthlyInput{AccountID: "a", Month: march2024}))
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
