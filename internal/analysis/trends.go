package analysis

import (
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

// Direction classifies a month-over-month change.
type Direction string

const (
	StrongUp   Direction = "strong_up"   // > 20%
	Up         Direction = "up"          // 5% to 20%
	Stable     Direction = "stable"      // -5% to 5%
	Down       Direction = "down"        // -20% to -5%
	StrongDown Direction = "strong_down" // < -20%
)

// DirectionOf classifies a percentage change.
func DirectionOf(changePct float64) Direction {
	switch {
	case changePct > 20:
		return StrongUp
	case changePct > 5:
		return Up
	case changePct >= -5:
		return Stable
	case changePct >= -20:
		return Down
	default:
		return StrongDown
	}
}

// Trend metrics.
const (
	TrendEngagement = "engagement_rate"
	TrendFollowers  = "followers"
	TrendPosts      = "posts"
	TrendLikes      = "likes"
)

// Trend compares one metric of an account between two months.
type Trend struct {
	AccountID     string    `json:"account_id"`
	Metric        string    `json:"metric"`
	Direction     Direction `json:"direction"`
	ChangePct     float64   `json:"change_pct"`
	CurrentValue  float64   `json:"current_value"`
	PreviousValue float64   `json:"previous_value"`
	Period        string    `json:"period"`
}

// Compare computes the trends from prev to cur. A metric is skipped when its
// previous value is zero; both rows are required.
func Compare(cur, prev *model.MonthlyMetrics) []Trend {
	if cur == nil || prev == nil {
		return nil
	}
	period := prev.YearMonth + " → " + cur.YearMonth
	pairs := []struct {
		metric    string
		cur, prev float64
	}{
		{TrendEngagement, deref(cur.AvgEngagementRate), deref(prev.AvgEngagementRate)},
		{TrendFollowers, float64(deref(cur.AvgFollowers)), float64(deref(prev.AvgFollowers))},
		{TrendPosts, float64(cur.TotalPosts), float64(prev.TotalPosts)},
		{TrendLikes, float64(cur.TotalLikes), float64(prev.TotalLikes)},
	}

	var out []Trend
	for _, p := range pairs {
		if p.prev <= 0 {
			continue
		}
		change := round((p.cur-p.prev)/p.prev*100, 2)
		out = append(out, Trend{
			AccountID:     cur.AccountID,
			Metric:        p.metric,
			Direction:     DirectionOf(change),
			ChangePct:     change,
			CurrentValue:  p.cur,
			PreviousValue: p.prev,
			Period:        period,
		})
	}
	return out
}
