package data

import (
	"context"
	"fmt"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/data/pgxutil"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	apperrors "github.com/JuliaLoth/NLWW-socialmediamonitor/internal/errors"
)

// CountPending counts pending jobs, optionally restricted to the given types.
func (r *JobRepo) CountPending(ctx context.Context, types []model.JobType) (int, error) {
	filter, args := typeFilter(types, 1)
	var n int
	if err := r.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM jobs WHERE status = 'pending'`+filter, args...,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return n, nil
}

// CountRunning counts running jobs of every type.
func (r *JobRepo) CountRunning(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM jobs WHERE status = 'running'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count running jobs: %w", err)
	}
	return n, nil
}

// StatusSummary returns the number of jobs per status. Statuses without jobs are omitted.
func (r *JobRepo) StatusSummary(ctx context.Context) (model.StatusSummary, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job status summary: %w", err)
	}
	defer rows.Close()

	summary := model.StatusSummary{}
	for rows.Next() {
		var status string
		var n int
		if scanErr := rows.Scan(&status, &n); scanErr != nil {
			return nil, fmt.Errorf("scan status summary: %w", scanErr)
		}
		summary[model.JobStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status summary: %w", err)
	}
	return summary, nil
}

// jobFilterQueryBuilder appends optional equality filters with numbered placeholders.
type jobFilterQueryBuilder struct {
	query  string
	args   []any
	argIdx int
}

func (b *jobFilterQueryBuilder) addFilter(condition string, value any) {
	b.query += fmt.Sprintf(" AND %s = $%d", condition, b.argIdx)
	b.args = append(b.args, value)
	b.argIdx++
}

func buildJobListQuery(opts model.JobListOptions) (string, []any) {
	opts = opts.Normalized()
	b := &jobFilterQueryBuilder{
		query:  `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`,
		argIdx: 1,
	}
	if opts.Status != nil && *opts.Status != "" {
		b.addFilter("status", string(*opts.Status))
	}
	if opts.Type != nil && *opts.Type != "" {
		b.addFilter("type", string(*opts.Type))
	}
	b.query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", b.argIdx, b.argIdx+1)
	b.args = append(b.args, opts.Limit, opts.Offset)
	return b.query, b.args
}

// List returns jobs newest first with optional status and type filters.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	query, args := buildJobListQuery(opts)

	jobs, err := pgxutil.QueryStructs[model.Job](ctx, r.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", apperrors.MapDBError(err))
	}
	return jobs, nil
}
