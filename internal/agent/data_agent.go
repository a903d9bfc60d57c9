package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/collector"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/data"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/ratelimit"
)

const (
	// DataAgentName is the registry name of the data agent.
	DataAgentName = "DataAgent"

	// incremental collections look back this far for a new account
	firstCollectionWindow = 30 * 24 * time.Hour
	// posts read per incremental collection
	incrementalPostLimit = 50
)

// Collectors resolves the collector of a platform.
type Collectors interface {
	Get(p model.Platform) (collector.Collector, error)
	Close() error
}

// DataAgentOptions configures a DataAgent.
type DataAgentOptions struct {
	Stores     core.Stores
	Collectors Collectors
	Logger     *slog.Logger
	Now        func() time.Time
}

// DataAgent collects posts and follower counts and stores them.
type DataAgent struct {
	stores     core.Stores
	collectors Collectors
	logger     *slog.Logger
	now        func() time.Time
}

var _ Agent = (*DataAgent)(nil)

// NewDataAgent constructs a DataAgent.
func NewDataAgent(opts DataAgentOptions) (*DataAgent, error) {
	if opts.Stores.Accounts == nil || opts.Stores.Posts == nil || opts.Stores.Followers == nil || opts.Stores.Logs == nil {
		return nil, errors.New("data agent: account, post, follower and log stores are required")
	}
	if opts.Collectors == nil {
		return nil, errors.New("data agent: collectors are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &DataAgent{
		stores:     opts.Stores,
		collectors: opts.Collectors,
		logger:     logger.With("component", "data_agent"),
		now:        now,
	}, nil
}

// Name implements Agent.
func (a *DataAgent) Name() string { return DataAgentName }

// JobTypes implements Agent.
func (a *DataAgent) JobTypes() []model.JobType {
	return []model.JobType{
		model.JobTypeCollectAccount,
		model.JobTypeCollectHistorical,
		model.JobTypeUpdateFollowers,
		model.JobTypeUpdatePostEngagement,
	}
}

// Close closes every collector.
func (a *DataAgent) Close() error {
	return a.collectors.Close()
}

// ProcessJob implements Agent.
func (a *DataAgent) ProcessJob(ctx context.Context, job *model.Job) model.JobResult {
	payload, err := job.DecodePayload()
	if err != nil {
		return noRetry(err)
	}
	switch p := payload.(type) {
	case *model.CollectAccountPayload:
		return a.collectAccount(ctx, p.AccountID, func(c collector.Collector, acc *model.Account, since time.Time) collector.Result {
			return c.Collect(ctx, acc.Handle, collector.PostsOptions{Since: since, Limit: incrementalPostLimit})
		})
	case *model.CollectHistoricalPayload:
		months := p.MonthsOrDefault()
		return a.collectAccount(ctx, p.AccountID, func(c collector.Collector, acc *model.Account, _ time.Time) collector.Result {
			a.logger.InfoContext(ctx, "historical collection", "account_id", acc.ID, "months", months)
			return c.CollectHistorical(ctx, acc.Handle, months)
		})
	case *model.UpdateFollowersPayload:
		return a.updateFollowers(ctx)
	case *model.UpdatePostEngagementPayload:
		return a.updatePostEngagement(ctx, p.DaysOrDefault())
	default:
		return noRetry(fmt.Errorf("data agent: unsupported job type %s", job.Type))
	}
}

type collectFunc func(c collector.Collector, account *model.Account, since time.Time) collector.Result

// collectAccount runs one collection and stores whatever it returned, even
// when the collection failed part way.
func (a *DataAgent) collectAccount(ctx context.Context, accountID string, collect collectFunc) model.JobResult {
	account, err := a.stores.Accounts.GetByID(ctx, accountID)
	if errors.Is(err, data.ErrAccountNotFound) {
		return noRetry(fmt.Errorf("account not found: %s", accountID))
	}
	if err != nil {
		return Fail(err)
	}
	c, err := a.collectors.Get(account.Platform)
	if err != nil {
		return noRetry(err)
	}

	since, err := a.collectSince(ctx, account.ID)
	if err != nil {
		return Fail(err)
	}

	started := a.now().UTC()
	res := collect(c, account, since)

	stored, storeErr := a.store(ctx, account, res)
	a.logCollection(ctx, account, res, started)

	out := map[string]any{
		"account_id":      account.ID,
		"posts_collected": res.PostsCollected,
		"new_posts":       stored,
	}
	if res.Followers != nil {
		out["followers"] = *res.Followers
	}

	if !res.Success {
		failed := Fail(res.Err)
		failed.Data = out
		return failed
	}
	if storeErr != nil {
		return Fail(storeErr)
	}
	return model.Succeeded(fmt.Sprintf("%d posts collected for %s", res.PostsCollected, account.Handle), out)
}

func (a *DataAgent) collectSince(ctx context.Context, accountID string) (time.Time, error) {
	latest, err := a.stores.Posts.LatestPostedAt(ctx, accountID)
	if err != nil {
		return time.Time{}, err
	}
	if latest != nil {
		return *latest, nil
	}
	return a.now().Add(-firstCollectionWindow), nil
}

// store writes posts and the follower snapshot of res. It returns the number
// of posts not seen before.
func (a *DataAgent) store(ctx context.Context, account *model.Account, res collector.Result) (int, error) {
	var errs []error
	inserted := 0
	if len(res.Posts) > 0 {
		for _, p := range res.Posts {
			p.AccountID = account.ID
		}
		n, err := a.stores.Posts.Upsert(ctx, res.Posts)
		if err != nil {
			errs = append(errs, fmt.Errorf("store posts: %w", err))
		}
		inserted = n
	}
	if res.Followers != nil {
		if err := a.saveSnapshot(ctx, account.ID, res); err != nil {
			errs = append(errs, err)
		}
	}
	return inserted, errors.Join(errs...)
}

func (a *DataAgent) saveSnapshot(ctx context.Context, accountID string, res collector.Result) error {
	now := a.now().UTC()
	snap := &model.FollowerSnapshot{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Date:        time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		Followers:   *res.Followers,
		Following:   res.Following,
		CollectedAt: now,
	}
	if err := a.stores.Followers.Upsert(ctx, snap); err != nil {
		return fmt.Errorf("store follower snapshot: %w", err)
	}
	return nil
}

func (a *DataAgent) logCollection(ctx context.Context, account *model.Account, res collector.Result, started time.Time) {
	status := model.CollectionSuccess
	switch {
	case !res.Success && res.PostsCollected > 0:
		status = model.CollectionPartial
	case !res.Success:
		status = model.CollectionFailed
	}
	entry := &model.CollectionLog{
		ID:             uuid.NewString(),
		AccountID:      account.ID,
		Platform:       account.Platform,
		Status:         status,
		PostsCollected: res.PostsCollected,
		StartedAt:      started,
		CompletedAt:    a.now().UTC(),
	}
	if res.Err != nil {
		msg := res.Err.Error()
		entry.ErrorMessage = &msg
	}
	// The log is bookkeeping; a failed insert must not fail the collection.
	if err := a.stores.Logs.Insert(context.WithoutCancel(ctx), entry); err != nil {
		a.logger.WarnContext(ctx, "failed to write collection log", "account_id", account.ID, "error", err)
	}
}

// updateFollowers refreshes the follower count of every active account. A
// platform whose daily quota runs out is skipped for the rest of the run.
func (a *DataAgent) updateFollowers(ctx context.Context) model.JobResult {
	accounts, err := a.stores.Accounts.List(ctx, model.AccountListOptions{ActiveOnly: true})
	if err != nil {
		return Fail(err)
	}

	var (
		updated int
		errs    []string
		capped  = map[model.Platform]bool{}
	)
	for _, account := range accounts {
		if ctx.Err() != nil {
			return Fail(ctx.Err())
		}
		if capped[account.Platform] {
			errs = append(errs, fmt.Sprintf("%s: skipped, %s quota exhausted", account.Handle, account.Platform))
			continue
		}
		c, err := a.collectors.Get(account.Platform)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", account.Handle, err))
			continue
		}
		res := c.CollectFollowers(ctx, account.Handle)
		if !res.Success {
			if ratelimit.IsRateLimitExceeded(res.Err) {
				capped[account.Platform] = true
			}
			errs = append(errs, fmt.Sprintf("%s: %s", account.Handle, res.Error()))
			a.logger.WarnContext(ctx, "follower update failed", "account_id", account.ID, "error", res.Err)
			continue
		}
		if res.Followers == nil {
			continue
		}
		if err := a.saveSnapshot(ctx, account.ID, res); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", account.Handle, err))
			continue
		}
		updated++
	}

	out := map[string]any{"updated": updated, "errors": errs}
	msg := fmt.Sprintf("%d accounts updated", updated)
	if len(errs) == 0 {
		return model.Succeeded(msg, out)
	}
	return model.JobResult{
		Message: msg,
		Data:    out,
		Error:   fmt.Sprintf("%d of %d accounts failed", len(errs), len(accounts)),
		NoRetry: len(capped) > 0,
	}
}

// updatePostEngagement re-collects the recent posts of every account that
// published in the last days so their counters are refreshed.
func (a *DataAgent) updatePostEngagement(ctx context.Context, days int) model.JobResult {
	now := a.now()
	since := now.AddDate(0, 0, -days)
	ids, err := a.stores.Posts.AccountsWithPostsSince(ctx, since)
	if err != nil {
		return Fail(err)
	}

	var (
		updated int
		errs    []string
		capped  = map[model.Platform]bool{}
	)
	for _, id := range ids {
		if ctx.Err() != nil {
			return Fail(ctx.Err())
		}
		account, err := a.stores.Accounts.GetByID(ctx, id)
		if err != nil {
			continue
		}
		if capped[account.Platform] {
			continue
		}
		recent, err := a.stores.Posts.ListByAccount(ctx, core.PostRangeParams{AccountID: id, From: since})
		if err != nil || len(recent) == 0 {
			continue
		}
		c, err := a.collectors.Get(account.Platform)
		if err != nil {
			continue
		}
		res := c.Collect(ctx, account.Handle, collector.PostsOptions{Since: since, Limit: len(recent)})
		if ratelimit.IsRateLimitExceeded(res.Err) {
			capped[account.Platform] = true
		}
		if res.Err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", account.Handle, res.Error()))
			a.logger.WarnContext(ctx, "engagement update failed", "account_id", id, "error", res.Err)
		}
		for _, p := range res.Posts {
			p.AccountID = id
		}
		if len(res.Posts) == 0 {
			continue
		}
		if _, err := a.stores.Posts.Upsert(ctx, res.Posts); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", account.Handle, err))
			continue
		}
		updated += len(res.Posts)
	}

	return model.Succeeded(fmt.Sprintf("%d posts updated", updated), map[string]any{
		"updated": updated,
		"days":    days,
		"errors":  errs,
	})
}

func noRetry(err error) model.JobResult {
	res := Fail(err)
	res.NoRetry = true
	return res
}
