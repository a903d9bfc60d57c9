package analysis

import (
	"sort"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

// YearlyAccount sums the monthly rows of one account over a year.
type YearlyAccount struct {
	AccountID         string         `json:"account_id"`
	Country           string         `json:"country"`
	Platform          model.Platform `json:"platform"`
	Handle            string         `json:"handle"`
	Months            int            `json:"months"`
	TotalPosts        int            `json:"total_posts"`
	TotalLikes        int            `json:"total_likes"`
	TotalComments     int            `json:"total_comments"`
	TotalShares       int            `json:"total_shares"`
	AvgEngagementRate float64        `json:"avg_engagement_rate"`
	// Followers is the average of the last month that had follower data.
	Followers int `json:"followers"`
}

// MonthTotals sums every account for one month.
type MonthTotals struct {
	YearMonth         string  `json:"year_month"`
	Accounts          int     `json:"accounts"`
	TotalFollowers    int     `json:"total_followers"`
	TotalPosts        int     `json:"total_posts"`
	TotalLikes        int     `json:"total_likes"`
	AvgEngagementRate float64 `json:"avg_engagement_rate"`
}

// YearlyTotals groups rows ordered by month into one entry per account,
// best engagement first.
func YearlyTotals(rows []*model.MetricsWithAccount) []YearlyAccount {
	byID := map[string]*YearlyAccount{}
	rateN := map[string]int{}
	for _, r := range rows {
		y := byID[r.AccountID]
		if y == nil {
			y = &YearlyAccount{AccountID: r.AccountID, Country: r.Country, Platform: r.Platform, Handle: r.Handle}
			byID[r.AccountID] = y
		}
		y.Months++
		y.TotalPosts += r.TotalPosts
		y.TotalLikes += r.TotalLikes
		y.TotalComments += r.TotalComments
		y.TotalShares += r.TotalShares
		if v := deref(r.AvgEngagementRate); v != 0 {
			y.AvgEngagementRate += v
			rateN[r.AccountID]++
		}
		if v := deref(r.AvgFollowers); v > 0 {
			y.Followers = v
		}
	}

	out := make([]YearlyAccount, 0, len(byID))
	for id, y := range byID {
		if n := rateN[id]; n > 0 {
			y.AvgEngagementRate = round(y.AvgEngagementRate/float64(n), 6)
		}
		out = append(out, *y)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgEngagementRate != out[j].AvgEngagementRate {
			return out[i].AvgEngagementRate > out[j].AvgEngagementRate
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out
}

// MonthlySeries sums rows per month, oldest first.
func MonthlySeries(rows []*model.MetricsWithAccount) []MonthTotals {
	byMonth := map[string]*MonthTotals{}
	rateN := map[string]int{}
	for _, r := range rows {
		m := byMonth[r.YearMonth]
		if m == nil {
			m = &MonthTotals{YearMonth: r.YearMonth}
			byMonth[r.YearMonth] = m
		}
		m.Accounts++
		m.TotalFollowers += deref(r.AvgFollowers)
		m.TotalPosts += r.TotalPosts
		m.TotalLikes += r.TotalLikes
		if v := deref(r.AvgEngagementRate); v != 0 {
			m.AvgEngagementRate += v
			rateN[r.YearMonth]++
		}
	}

	out := make([]MonthTotals, 0, len(byMonth))
	for ym, m := range byMonth {
		if n := rateN[ym]; n > 0 {
			m.AvgEngagementRate = round(m.AvgEngagementRate/float64(n), 6)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].YearMonth < out[j].YearMonth })
	return out
}
