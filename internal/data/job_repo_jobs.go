package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/data/pgxutil"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	apperrors "github.com/JuliaLoth/NLWW-socialmediamonitor/internal/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const insertJobSQL = `
	INSERT INTO jobs (id, type, priority, status, payload, created_at, retries, max_retries)
	VALUES ($1, $2, $3, 'pending', $4, $5, 0, $6)
	RETURNING ` + "%s"

// Create creates a new pending job.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, fmt.Sprintf(insertJobSQL, jobColumns),
		uuid.NewString(),
		string(req.Type),
		req.Priority,
		[]byte(req.Payload),
		now,
		req.RetryBudget(),
	)

	job, err := scanJobFromRow(row)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// claimNextSQL picks the most urgent pending job; FIFO within a priority.
const claimNextSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE status = 'pending'%s
    ORDER BY priority ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET status = 'running',
      started_at = $1
  FROM cte
  WHERE j.id = cte.id
  RETURNING %s`

// ClaimNext atomically moves the next pending job matching types to running.
func (r *JobRepo) ClaimNext(ctx context.Context, types []model.JobType) (*model.Job, error) {
	for _, t := range types {
		if !t.Valid() {
			return nil, fmt.Errorf("invalid job type: %s", t)
		}
	}

	filter, filterArgs := typeFilter(types, 2)
	query := fmt.Sprintf(claimNextSQL, filter, prefixedJobColumns("j"))
	args := append([]any{r.timeProvider.Now().UTC()}, filterArgs...)

	var job *model.Job
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx *sql.Tx) error {
			j, scanErr := scanJobFromRow(tx.QueryRowContext(ctx, query, args...))
			if errors.Is(scanErr, sql.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if scanErr != nil {
				return fmt.Errorf("claim job: %w", scanErr)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, model.ErrNoJobsAvailable
		}
		return nil, err
	}
	return job, nil
}

func marshalResultDoc(result model.JobResult) ([]byte, error) {
	if result.Data == nil {
		return nil, nil
	}
	b, err := json.Marshal(result.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal job result: %w", err)
	}
	return b, nil
}

// Complete stores the outcome of a running job. A job that is no longer
// running is left untouched and false is returned.
func (r *JobRepo) Complete(ctx context.Context, id string, result model.JobResult) (bool, error) {
	if !validJobID(id) {
		return false, ErrJobNotFound
	}

	status := model.JobStatusCompleted
	var errMsg sql.NullString
	if !result.Success {
		status = model.JobStatusFailed
		errMsg = sql.NullString{String: result.FailureMessage(), Valid: true}
	}

	resultDoc, err := marshalResultDoc(result)
	if err != nil {
		return false, err
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2,
		    completed_at = $3,
		    result = $4,
		    error = $5
		WHERE id = $1 AND status = 'running'
	`, id, string(status), r.timeProvider.Now().UTC(), resultDoc, errMsg)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", apperrors.MapDBError(err))
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", apperrors.MapDBError(err))
	}
	if rowsAffected == 0 {
		r.logger.DebugContext(ctx, "complete ignored, job not running", "job_id", id)
		return false, nil
	}
	return true, nil
}

// failJobSQL records a failed attempt in one statement. $5 asks for a
// re-arm, which only happens while retries < max_retries.
const failJobSQL = `
	UPDATE jobs
	SET status = CASE WHEN $5::boolean AND retries < max_retries THEN 'pending' ELSE 'failed' END,
	    retries = CASE WHEN $5::boolean AND retries < max_retries THEN retries + 1 ELSE retries END,
	    started_at = CASE WHEN $5::boolean AND retries < max_retries THEN NULL ELSE started_at END,
	    completed_at = CASE WHEN $5::boolean AND retries < max_retries THEN NULL ELSE $2::timestamptz END,
	    result = CASE WHEN $5::boolean AND retries < max_retries THEN NULL ELSE $3::jsonb END,
	    error = CASE WHEN $5::boolean AND retries < max_retries THEN NULL ELSE $4::text END
	WHERE id = $1 AND status = 'running'
	RETURNING status`

// Fail records a failed attempt of a running job and, when rearm is set and
// budget is left, moves it back to pending in the same statement. It returns
// the resulting status, or "" when the job was not running.
func (r *JobRepo) Fail(ctx context.Context, id string, result model.JobResult, rearm bool) (model.JobStatus, error) {
	if !validJobID(id) {
		return "", ErrJobNotFound
	}

	resultDoc, err := marshalResultDoc(result)
	if err != nil {
		return "", err
	}

	var status string
	err = r.DB.QueryRowContext(ctx, failJobSQL,
		id,
		r.timeProvider.Now().UTC(),
		resultDoc,
		result.FailureMessage(),
		rearm,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		ok, existsErr := r.exists(ctx, id)
		if existsErr != nil {
			return "", existsErr
		}
		if !ok {
			return "", ErrJobNotFound
		}
		r.logger.DebugContext(ctx, "fail ignored, job not running", "job_id", id)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("fail job: %w", apperrors.MapDBError(err))
	}
	return model.JobStatus(status), nil
}

// Retry re-arms a running or failed job while its retry budget allows it.
// A pending job is already armed: it matches without being touched.
func (r *JobRepo) Retry(ctx context.Context, id string) (bool, error) {
	if !validJobID(id) {
		return false, ErrJobNotFound
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'pending',
		    retries = CASE WHEN status = 'pending' THEN retries ELSE retries + 1 END,
		    started_at = NULL,
		    completed_at = NULL,
		    error = NULL
		WHERE id = $1
		  AND (status = 'pending'
		       OR (status IN ('running', 'failed') AND retries < max_retries))
	`, id)
	if err != nil {
		return false, fmt.Errorf("retry job: %w", apperrors.MapDBError(err))
	}
	return r.affectedOrMissing(ctx, res, id)
}

// Cancel forces the job to cancelled whatever its current status.
func (r *JobRepo) Cancel(ctx context.Context, id string) (bool, error) {
	if !validJobID(id) {
		return false, ErrJobNotFound
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'cancelled',
		    started_at = COALESCE(started_at, $2),
		    completed_at = NULL
		WHERE id = $1
	`, id, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", apperrors.MapDBError(err))
	}
	return r.affectedOrMissing(ctx, res, id)
}

// affectedOrMissing turns a zero-row update into false, or ErrJobNotFound when the id is unknown.
func (r *JobRepo) affectedOrMissing(ctx context.Context, res sql.Result, id string) (bool, error) {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", apperrors.MapDBError(err))
	}
	if rowsAffected > 0 {
		return true, nil
	}

	ok, err := r.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrJobNotFound
	}
	return false, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if !validJobID(id) {
		return nil, ErrJobNotFound
	}

	job, err := pgxutil.QueryStruct[model.Job](ctx, r.DB, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}
