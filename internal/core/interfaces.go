package core

import (
	"context"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the interface for job data operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// ClaimNext moves the most urgent pending job of the given types to running.
	// An empty types slice matches every type. Returns model.ErrNoJobsAvailable when nothing matches.
	ClaimNext(ctx context.Context, types []model.JobType) (*model.Job, error)
	// Complete finishes a running job. Returns false when the job was not running.
	Complete(ctx context.Context, id string, result model.JobResult) (bool, error)
	// Fail records a failed attempt of a running job in one write. With rearm
	// set and retries < max_retries the job returns to pending, otherwise it
	// ends failed. Returns the new status, or "" when the job was not running.
	Fail(ctx context.Context, id string, result model.JobResult, rearm bool) (model.JobStatus, error)
	// Retry re-arms a running or failed job while retries < max_retries.
	// A pending job reports true and is left untouched.
	Retry(ctx context.Context, id string) (bool, error)
	// Cancel forces the job to cancelled from any status.
	Cancel(ctx context.Context, id string) (bool, error)
	CountPending(ctx context.Context, types []model.JobType) (int, error)
	CountRunning(ctx context.Context) (int, error)
	StatusSummary(ctx context.Context) (model.StatusSummary, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
}

// DeleteOldJobsParams groups parameters for DeleteOldJobs to keep param count ≤3.
type DeleteOldJobsParams struct {
	Cutoff    time.Time
	BatchSize int
}

// ListStaleRunningParams groups parameters for ListStaleRunning.
type ListStaleRunningParams struct {
	StartedBefore time.Time
	Limit         int
}

// ReaperRepository defines the interface for job cleanup operations.
type ReaperRepository interface {
	// DeleteOldJobs deletes completed, failed and cancelled jobs that finished before the cutoff.
	// Processes up to batchSize jobs per call to prevent long locks; zero means no limit.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)

	// ListStaleRunning returns running jobs started before the given time.
	// Nothing re-arms them; callers only report.
	ListStaleRunning(ctx context.Context, params ListStaleRunningParams) ([]*model.Job, error)
}

// AccountRepository defines the interface for monitored account data.
type AccountRepository interface {
	Upsert(ctx context.Context, account *model.Account) error
	GetByID(ctx context.Context, id string) (*model.Account, error)
	List(ctx context.Context, opts model.AccountListOptions) ([]*model.Account, error)
	CountByPlatform(ctx context.Context) ([]model.PlatformCount, error)
}

// PostRangeParams selects posts of one account within [From, To).
type PostRangeParams struct {
	AccountID string
	From      time.Time
	To        time.Time
}

// PostRepository defines the interface for collected post data.
type PostRepository interface {
	// Upsert inserts new posts and refreshes engagement on known ones, keyed by (account_id, platform_post_id).
	Upsert(ctx context.Context, posts []*model.Post) (int, error)
	// LatestPostedAt returns nil when the account has no posts.
	LatestPostedAt(ctx context.Context, accountID string) (*time.Time, error)
	ListByAccount(ctx context.Context, params PostRangeParams) ([]*model.Post, error)
	// AccountsWithPostsSince returns ids of accounts with at least one post at or after since.
	AccountsWithPostsSince(ctx context.Context, since time.Time) ([]string, error)
}

// FollowerRangeParams selects snapshots of one account within [From, To).
type FollowerRangeParams struct {
	AccountID string
	From      time.Time
	To        time.Time
}

// FollowerRepository defines the interface for daily follower snapshots.
type FollowerRepository interface {
	// Upsert stores at most one snapshot per account per day; later writes win.
	Upsert(ctx context.Context, snap *model.FollowerSnapshot) error
	History(ctx context.Context, params FollowerRangeParams) ([]*model.FollowerSnapshot, error)
	// Latest returns nil when no snapshot exists.
	Latest(ctx context.Context, accountID string) (*model.FollowerSnapshot, error)
}

// MetricsRepository defines the interface for computed monthly metrics.
type MetricsRepository interface {
	Upsert(ctx context.Context, m *model.MonthlyMetrics) error
	// Get returns nil when no row exists for the account and month.
	Get(ctx context.Context, accountID, yearMonth string) (*model.MonthlyMetrics, error)
	ForMonth(ctx context.Context, yearMonth string) ([]*model.MetricsWithAccount, error)
	// ForRange returns metrics for months in [fromYM, toYM] inclusive, ordered by month.
	ForRange(ctx context.Context, fromYM, toYM string) ([]*model.MetricsWithAccount, error)
}

// CollectionLogRepository records collection attempts.
type CollectionLogRepository interface {
	Insert(ctx context.Context, log *model.CollectionLog) error
}

// Stores bundles the domain repositories used by the agents.
type Stores struct {
	Accounts  AccountRepository
	Posts     PostRepository
	Followers FollowerRepository
	Metrics   MetricsRepository
	Logs      CollectionLogRepository
}
