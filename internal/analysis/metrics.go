// Package analysis turns stored posts and follower snapshots into monthly
// metrics, rankings, trends and anomaly reports.
package analysis

import (
	"math"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

// EngagementRate is the weighted engagement of a period relative to the
// audience: (likes + 2·comments + 3·shares) / followers · 100.
func EngagementRate(likes, comments, shares, followers int) float64 {
	if followers <= 0 {
		return 0
	}
	weighted := likes + 2*comments + 3*shares
	return float64(weighted) / float64(followers) * 100
}

// MonthlyInput is everything Monthly needs for one account and month.
type MonthlyInput struct {
	AccountID string
	Month     model.YearMonth
	// Posts published in the month.
	Posts []*model.Post
	// History holds the month's follower snapshots, oldest first.
	History []*model.FollowerSnapshot
	// Latest is used when the month has no snapshots.
	Latest *model.FollowerSnapshot
	Now    time.Time
}

// Monthly computes the metrics row of an account for a month. It returns nil
// when the account published nothing that month.
func Monthly(in MonthlyInput) *model.MonthlyMetrics {
	if len(in.Posts) == 0 {
		return nil
	}

	ym := in.Month.String()
	m := &model.MonthlyMetrics{
		ID:           model.MonthlyMetricsID(in.AccountID, ym),
		AccountID:    in.AccountID,
		YearMonth:    ym,
		TotalPosts:   len(in.Posts),
		CalculatedAt: in.Now.UTC(),
	}

	var top *model.Post
	for _, p := range in.Posts {
		m.TotalLikes += p.Likes
		m.TotalComments += p.Comments
		m.TotalShares += p.Shares
		if top == nil || p.WeightedEngagement() > top.WeightedEngagement() {
			top = p
		}
	}
	topID := top.ID
	m.TopPostID = &topID

	avgFollowers := 0
	var counts []int
	for _, s := range in.History {
		if s.Followers > 0 {
			counts = append(counts, s.Followers)
		}
	}
	if len(counts) > 0 {
		sum := 0
		for _, c := range counts {
			sum += c
		}
		avgFollowers = sum / len(counts)

		growth := counts[len(counts)-1] - counts[0]
		pct := 0.0
		if counts[0] > 0 {
			pct = round(float64(growth)/float64(counts[0])*100, 4)
		}
		m.FollowerGrowth = &growth
		m.FollowerGrowthPct = &pct
	} else if in.Latest != nil && in.Latest.Followers > 0 {
		avgFollowers = in.Latest.Followers
	}
	if avgFollowers > 0 {
		m.AvgFollowers = &avgFollowers
	}

	rate := 0.0
	if avgFollowers > 0 {
		perPost := float64(m.TotalLikes+2*m.TotalComments+3*m.TotalShares) / float64(m.TotalPosts)
		rate = round(perPost/float64(avgFollowers)*100, 6)
	}
	m.AvgEngagementRate = &rate
	return m
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
