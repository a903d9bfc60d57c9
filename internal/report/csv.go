package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/analysis"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

var monthlyHeader = []string{
	"account_id", "country", "platform", "handle", "year_month",
	"avg_followers", "follower_growth", "follower_growth_pct",
	"total_posts", "total_likes", "total_comments", "total_shares", "avg_engagement_rate",
}

var yearlyHeader = []string{
	"account_id", "country", "platform", "handle", "months",
	"total_posts", "total_likes", "total_comments", "total_shares", "followers", "avg_engagement_rate",
}

// MonthlyCSV exports every account's metrics of a month.
func (w *Writer) MonthlyCSV(ctx context.Context, ym model.YearMonth) (string, error) {
	summary, err := w.analysis.Summarize(ctx, ym, 0)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.outputDir, "export_"+ym.String()+".csv")
	err = writeAtomic(path, func(out io.Writer) error {
		return writeCSV(out, monthlyHeader, len(summary.Metrics), func(i int) []string {
			return monthlyRecord(summary.Metrics[i])
		})
	})
	if err != nil {
		return "", err
	}
	w.logger.InfoContext(ctx, "monthly export written", "path", path, "rows", len(summary.Metrics))
	return path, nil
}

// YearlyCSV exports the yearly totals of every account.
func (w *Writer) YearlyCSV(ctx context.Context, year int) (string, error) {
	rows, err := w.analysis.Year(ctx, year)
	if err != nil {
		return "", err
	}
	accounts := analysis.YearlyTotals(rows)
	path := filepath.Join(w.outputDir, fmt.Sprintf("export_%d.csv", year))
	err = writeAtomic(path, func(out io.Writer) error {
		return writeCSV(out, yearlyHeader, len(accounts), func(i int) []string {
			return yearlyRecord(accounts[i])
		})
	})
	if err != nil {
		return "", err
	}
	w.logger.InfoContext(ctx, "yearly export written", "path", path, "rows", len(accounts))
	return path, nil
}

func writeCSV(out io.Writer, header []string, n int, record func(int) []string) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range n {
		if err := cw.Write(record(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func monthlyRecord(m *model.MetricsWithAccount) []string {
	return []string{
		m.AccountID,
		m.Country,
		string(m.Platform),
		m.Handle,
		m.YearMonth,
		optInt(m.AvgFollowers),
		optInt(m.FollowerGrowth),
		optFloat(m.FollowerGrowthPct),
		strconv.Itoa(m.TotalPosts),
		strconv.Itoa(m.TotalLikes),
		strconv.Itoa(m.TotalComments),
		strconv.Itoa(m.TotalShares),
		optFloat(m.AvgEngagementRate),
	}
}

func yearlyRecord(y analysis.YearlyAccount) []string {
	return []string{
		y.AccountID,
		y.Country,
		string(y.Platform),
		y.Handle,
		strconv.Itoa(y.Months),
		strconv.Itoa(y.TotalPosts),
		strconv.Itoa(y.TotalLikes),
		strconv.Itoa(y.TotalComments),
		strconv.Itoa(y.TotalShares),
		strconv.Itoa(y.Followers),
		strconv.FormatFloat(y.AvgEngagementRate, 'f', -1, 64),
	}
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
