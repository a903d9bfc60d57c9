package analysis

import (
	"slices"
	"sort"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

// Metric names a ranked monthly metric.
type Metric string

const (
	MetricEngagementRate Metric = "avg_engagement_rate"
	MetricFollowers      Metric = "avg_followers"
	MetricPosts          Metric = "total_posts"
)

func (m Metric) value(row *model.MetricsWithAccount) float64 {
	switch m {
	case MetricEngagementRate:
		return deref(row.AvgEngagementRate)
	case MetricFollowers:
		return float64(deref(row.AvgFollowers))
	case MetricPosts:
		return float64(row.TotalPosts)
	default:
		return 0
	}
}

// Benchmark is the position of one account in a ranking.
type Benchmark struct {
	AccountID     string         `json:"account_id"`
	Country       string         `json:"country"`
	Platform      model.Platform `json:"platform"`
	Metric        Metric         `json:"metric"`
	Value         float64        `json:"value"`
	Rank          int            `json:"rank"`
	TotalAccounts int            `json:"total_accounts"`
	// Percentile is 100 for the best account.
	Percentile float64 `json:"percentile"`
	// VsAverage is the distance to the mean value in percent.
	VsAverage float64 `json:"vs_average"`
}

// Rank orders accounts by metric, best first. Rows without a positive value
// are left out.
func Rank(rows []*model.MetricsWithAccount, metric Metric) []Benchmark {
	type entry struct {
		row   *model.MetricsWithAccount
		value float64
	}
	var entries []entry
	for _, r := range rows {
		if v := metric.value(r); v > 0 {
			entries = append(entries, entry{row: r, value: v})
		}
	}
	if len(entries) == 0 {
		return nil
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].value > entries[j].value })

	sum := 0.0
	for _, e := range entries {
		sum += e.value
	}
	avg := sum / float64(len(entries))
	total := len(entries)

	out := make([]Benchmark, total)
	for i, e := range entries {
		rank := i + 1
		vsAvg := 0.0
		if avg > 0 {
			vsAvg = (e.value - avg) / avg * 100
		}
		out[i] = Benchmark{
			AccountID:     e.row.AccountID,
			Country:       e.row.Country,
			Platform:      e.row.Platform,
			Metric:        metric,
			Value:         e.value,
			Rank:          rank,
			TotalAccounts: total,
			Percentile:    round(float64(total-rank+1)/float64(total)*100, 1),
			VsAverage:     round(vsAvg, 2),
		}
	}
	return out
}

// Top returns the first n benchmarks.
func Top(b []Benchmark, n int) []Benchmark {
	return b[:min(n, len(b))]
}

// Bottom returns the last n benchmarks, worst first.
func Bottom(b []Benchmark, n int) []Benchmark {
	out := slices.Clone(b[len(b)-min(n, len(b)):])
	slices.Reverse(out)
	return out
}

// PlatformStats aggregates one platform for a month.
type PlatformStats struct {
	Platform          model.Platform `json:"platform"`
	Accounts          int            `json:"accounts"`
	AvgEngagementRate float64        `json:"avg_engagement_rate"`
	AvgFollowers      int            `json:"avg_followers"`
	AvgPosts          float64        `json:"avg_posts"`
	TotalFollowers    int            `json:"total_followers"`
	TotalPosts        int            `json:"total_posts"`
}

// ComparePlatforms groups the month's metrics by platform. Averages only
// count accounts with a non-zero value.
func ComparePlatforms(rows []*model.MetricsWithAccount) []PlatformStats {
	groups := map[model.Platform]*aggregate{}
	for _, r := range rows {
		g := groups[r.Platform]
		if g == nil {
			g = &aggregate{}
			groups[r.Platform] = g
		}
		g.add(r)
	}

	out := make([]PlatformStats, 0, len(groups))
	for p, g := range groups {
		out = append(out, PlatformStats{
			Platform:          p,
			Accounts:          g.accounts,
			AvgEngagementRate: g.avgRate(),
			AvgFollowers:      g.avgFollowers(),
			AvgPosts:          g.avgPosts(),
			TotalFollowers:    g.followers,
			TotalPosts:        g.posts,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}

// CountryStats aggregates one country for a month.
type CountryStats struct {
	Country           string           `json:"country"`
	DisplayName       string           `json:"display_name"`
	Platforms         []model.Platform `json:"platforms"`
	AvgEngagementRate float64          `json:"avg_engagement_rate"`
	TotalFollowers    int              `json:"total_followers"`
	TotalPosts        int              `json:"total_posts"`
}

// CompareCountries groups the month's metrics by country, best engagement first.
func CompareCountries(rows []*model.MetricsWithAccount) []CountryStats {
	groups := map[string]*aggregate{}
	platforms := map[string][]model.Platform{}
	for _, r := range rows {
		g := groups[r.Country]
		if g == nil {
			g = &aggregate{}
			groups[r.Country] = g
		}
		g.add(r)
		if !slices.Contains(platforms[r.Country], r.Platform) {
			platforms[r.Country] = append(platforms[r.Country], r.Platform)
		}
	}

	out := make([]CountryStats, 0, len(groups))
	for c, g := range groups {
		ps := platforms[c]
		slices.Sort(ps)
		out = append(out, CountryStats{
			Country:           c,
			DisplayName:       CountryName(c),
			Platforms:         ps,
			AvgEngagementRate: g.avgRate(),
			TotalFollowers:    g.followers,
			TotalPosts:        g.posts,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgEngagementRate != out[j].AvgEngagementRate {
			return out[i].AvgEngagementRate > out[j].AvgEngagementRate
		}
		return out[i].Country < out[j].Country
	})
	return out
}

type aggregate struct {
	accounts   int
	rateSum    float64
	rateN      int
	followers  int
	followersN int
	posts      int
	postsN     int
}

func (a *aggregate) add(r *model.MetricsWithAccount) {
	a.accounts++
	if v := deref(r.AvgEngagementRate); v != 0 {
		a.rateSum += v
		a.rateN++
	}
	if v := deref(r.AvgFollowers); v != 0 {
		a.followers += v
		a.followersN++
	}
	if r.TotalPosts != 0 {
		a.posts += r.TotalPosts
		a.postsN++
	}
}

func (a *aggregate) avgRate() float64 {
	if a.rateN == 0 {
		return 0
	}
	return a.rateSum / float64(a.rateN)
}

func (a *aggregate) avgFollowers() int {
	if a.followersN == 0 {
		return 0
	}
	return a.followers / a.followersN
}

func (a *aggregate) avgPosts() float64 {
	if a.postsN == 0 {
		return 0
	}
	return float64(a.posts) / float64(a.postsN)
}
