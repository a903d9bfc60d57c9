// Package report writes the dashboard snapshot, the printable HTML reports
// and the CSV exports of the monitored accounts.
package report

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/analysis"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	dashboardPerformers = 10
	reportPerformers    = 5
)

// Options configures a Writer.
type Options struct {
	Analysis     *analysis.Service
	OutputDir    string
	DashboardDir string
	Logger       *slog.Logger
	Now          func() time.Time
}

// Writer renders analysis results to files.
type Writer struct {
	analysis     *analysis.Service
	outputDir    string
	dashboardDir string
	tmpl         *template.Template
	logger       *slog.Logger
	now          func() time.Time
}

// New parses the report templates and constructs a Writer.
func New(opts Options) (*Writer, error) {
	if opts.Analysis == nil {
		return nil, errors.New("report: analysis service is required")
	}
	if opts.OutputDir == "" || opts.DashboardDir == "" {
		return nil, errors.New("report: output and dashboard directories are required")
	}
	tmpl, err := template.New("report").Funcs(funcs()).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse report templates: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Writer{
		analysis:     opts.Analysis,
		outputDir:    opts.OutputDir,
		dashboardDir: opts.DashboardDir,
		tmpl:         tmpl,
		logger:       logger.With("component", "report"),
		now:          now,
	}, nil
}

// Dashboard writes the month's summary as JSON for the dashboard.
func (w *Writer) Dashboard(ctx context.Context, ym model.YearMonth) (string, *analysis.Summary, error) {
	summary, err := w.analysis.Summarize(ctx, ym, dashboardPerformers)
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(w.dashboardDir, "dashboard_"+ym.String()+".json")
	err = writeAtomic(path, func(out io.Writer) error {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	})
	if err != nil {
		return "", nil, err
	}
	w.logger.InfoContext(ctx, "dashboard data written", "path", path, "year_month", ym)
	return path, summary, nil
}

type totals struct {
	Accounts      int
	Followers     int
	Posts         int
	AvgEngagement float64
}

type monthlyView struct {
	YearMonth   string
	GeneratedAt time.Time
	Totals      totals
	Top         []analysis.Benchmark
	Bottom      []analysis.Benchmark
	Platforms   []analysis.PlatformStats
	Countries   []analysis.CountryStats
	Accounts    []*model.MetricsWithAccount
}

// MonthlyHTML writes the printable report of a month.
func (w *Writer) MonthlyHTML(ctx context.Context, ym model.YearMonth) (string, error) {
	summary, err := w.analysis.Summarize(ctx, ym, reportPerformers)
	if err != nil {
		return "", err
	}
	view := monthlyView{
		YearMonth:   summary.YearMonth,
		GeneratedAt: summary.GeneratedAt,
		Totals:      sumRows(summary.Metrics),
		Top:         summary.Top,
		Bottom:      summary.Bottom,
		Platforms:   summary.Platforms,
		Countries:   summary.Countries,
		Accounts:    summary.Metrics,
	}
	path := filepath.Join(w.outputDir, "rapport_"+ym.String()+".html")
	if err := w.render(path, "monthly", view); err != nil {
		return "", err
	}
	w.logger.InfoContext(ctx, "monthly report written", "path", path, "year_month", ym)
	return path, nil
}

type yearlyView struct {
	Year        int
	GeneratedAt time.Time
	Months      []analysis.MonthTotals
	Accounts    []analysis.YearlyAccount
}

// YearlyHTML writes the printable report of a year.
func (w *Writer) YearlyHTML(ctx context.Context, year int) (string, error) {
	rows, err := w.analysis.Year(ctx, year)
	if err != nil {
		return "", err
	}
	view := yearlyView{
		Year:        year,
		GeneratedAt: w.now().UTC(),
		Months:      analysis.MonthlySeries(rows),
		Accounts:    analysis.YearlyTotals(rows),
	}
	path := filepath.Join(w.outputDir, fmt.Sprintf("jaarrapport_%d.html", year))
	if err := w.render(path, "yearly", view); err != nil {
		return "", err
	}
	w.logger.InfoContext(ctx, "yearly report written", "path", path, "year", year)
	return path, nil
}

func (w *Writer) render(path, name string, data any) error {
	return writeAtomic(path, func(out io.Writer) error {
		if err := w.tmpl.ExecuteTemplate(out, name, data); err != nil {
			w.logger.Error("template execution failed", "template", name, "error", err)
			return err
		}
		return nil
	})
}

func sumRows(rows []*model.MetricsWithAccount) totals {
	t := totals{Accounts: len(rows)}
	rate := 0.0
	for _, r := range rows {
		if r.AvgFollowers != nil {
			t.Followers += *r.AvgFollowers
		}
		if r.AvgEngagementRate != nil {
			rate += *r.AvgEngagementRate
		}
		t.Posts += r.TotalPosts
	}
	if len(rows) > 0 {
		t.AvgEngagement = rate / float64(len(rows))
	}
	return t
}

// writeAtomic writes through a temporary file in the target directory so
// readers never see a partial file.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
