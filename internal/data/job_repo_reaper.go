package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/data/pgxutil"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

// Advisory lock namespace for reaper operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
const (
	advisoryLockReaperMajor  = 2000
	advisoryLockReaperDelete = 1 // minor key for DeleteOldJobs
)

// DeleteOldJobs deletes completed, failed and cancelled jobs that ended before the cutoff.
// Cancelled jobs never get completed_at, so their started_at stands in.
// Uses advisory locks so concurrent reaper instances do not delete the same batch.
func (r *JobRepo) DeleteOldJobs(ctx context.Context, params core.DeleteOldJobsParams) (int64, error) {
	limit := "ALL"
	if params.BatchSize > 0 {
		limit = fmt.Sprintf("%d", params.BatchSize)
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperDelete).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			res, err := tx.ExecContext(ctx, `
				DELETE FROM jobs
				WHERE id IN (
					SELECT id FROM jobs
					WHERE status IN ('completed', 'failed', 'cancelled')
					  AND COALESCE(completed_at, started_at, created_at) < $1
					ORDER BY COALESCE(completed_at, started_at, created_at)
					LIMIT `+limit+`
				)
			`, params.Cutoff.UTC())
			if err != nil {
				return fmt.Errorf("delete old jobs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// ListStaleRunning returns running jobs whose started_at is before the given time, oldest first.
func (r *JobRepo) ListStaleRunning(ctx context.Context, params core.ListStaleRunningParams) ([]*model.Job, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE status = 'running' AND started_at < $1
		ORDER BY started_at ASC
		LIMIT $2
	`, params.StartedBefore.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale running jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := scanJobRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan stale running jobs: %w", err)
	}
	return jobs, nil
}
