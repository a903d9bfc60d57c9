package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/google/uuid"
)

var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides Postgres operations for the job queue.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp, logger := cfg.resolve()
	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       logger.With("component", "job_repo"),
	}
}

var jobColumnList = []string{
	"id",
	"type",
	"priority",
	"status",
	"payload",
	"created_at",
	"started_at",
	"completed_at",
	"error",
	"retries",
	"max_retries",
	"result",
}

var jobColumns = strings.Join(jobColumnList, ", ")

// prefixedJobColumns qualifies every job column with a table alias.
func prefixedJobColumns(alias string) string {
	cols := make([]string, len(jobColumnList))
	for i, c := range jobColumnList {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// validJobID reports whether id can be compared against the uuid column.
func validJobID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	payload, result        []byte
	errMsg                 sql.NullString
	startedAt, completedAt sql.NullTime
	jobType, status        string
}

func (d *jobRowData) scanInto(scanner rowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&d.jobType,
		&job.Priority,
		&d.status,
		&d.payload,
		&job.CreatedAt,
		&d.startedAt,
		&d.completedAt,
		&d.errMsg,
		&job.Retries,
		&job.MaxRetries,
		&d.result,
	)
}

func (d *jobRowData) apply(job *model.Job) {
	job.Type = model.JobType(d.jobType)
	job.Status = model.JobStatus(d.status)
	job.Payload = cloneJSON(d.payload)
	job.CreatedAt = job.CreatedAt.UTC()
	job.StartedAt = cloneNullableTime(d.startedAt)
	job.CompletedAt = cloneNullableTime(d.completedAt)
	job.Error = cloneNullableString(d.errMsg)
	if len(d.result) > 0 {
		job.Result = append(json.RawMessage(nil), d.result...)
	}
}

func scanJobFromRow(scanner rowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}

	data.apply(job)
	return job, nil
}

func scanJobRows(rows *sql.Rows) ([]*model.Job, error) {
	var out []*model.Job
	for rows.Next() {
		job, err := scanJobFromRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func (r *JobRepo) exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("check job exists: %w", err)
	}
	return ok, nil
}

// typeFilter renders "AND type IN ($n, ...)" starting at placeholder start.
func typeFilter(types []model.JobType, start int) (string, []any) {
	if len(types) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(types))
	args := make([]any, len(types))
	for i, t := range types {
		placeholders[i] = fmt.Sprintf("$%d", start+i)
		args[i] = string(t)
	}
	return " AND type IN (" + strings.Join(placeholders, ", ") + ")", args
}
