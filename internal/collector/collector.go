// Package collector fetches profiles and posts from the supported social platforms.
//
// A Source knows how to talk to one platform. Base wraps a Source with the
// platform's rate limiter and turns a fetch into a Result.
package collector

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/metrics"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/statsd"
)

// ErrPlatformBlocked is returned when a platform refuses to serve us, typically
// after a "too many requests" response. Jobs failing with it are retried.
var ErrPlatformBlocked error = &classedError{msg: "platform blocked", class: "platform_blocked"}

// ErrUnknownPlatform is returned by the registry for an unregistered platform.
var ErrUnknownPlatform = errors.New("unknown platform")

type classedError struct {
	msg   string
	class string
}

func (e *classedError) Error() string      { return e.msg }
func (e *classedError) ErrorClass() string { return e.class }

// Blocked wraps ErrPlatformBlocked with the platform and a reason.
func Blocked(platform model.Platform, reason string) error {
	return fmt.Errorf("%s: %s: %w", platform, reason, ErrPlatformBlocked)
}

// IsPlatformBlocked reports whether err is, or wraps, ErrPlatformBlocked.
func IsPlatformBlocked(err error) bool {
	return errors.Is(err, ErrPlatformBlocked)
}

// Profile holds the counters read from an account's profile page.
// A nil field means the platform did not expose it.
type Profile struct {
	Followers *int
	Following *int
}

// PostsOptions bounds a post listing. Zero times are open bounds.
type PostsOptions struct {
	Since time.Time
	Until time.Time
	Limit int
}

// DefaultPostLimit is used when PostsOptions.Limit is not set.
const DefaultPostLimit = 100

func (o PostsOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultPostLimit
	}
	return o.Limit
}

// Source is the platform specific half of a collector.
type Source interface {
	Platform() model.Platform
	// CollectProfile reads follower counters. An account that does not exist
	// yields an empty Profile and no error.
	CollectProfile(ctx context.Context, handle string) (Profile, error)
	// CollectPosts lists posts newest first and stops at the first post older
	// than opts.Since. Posts are fetched lazily as the sequence is consumed.
	CollectPosts(ctx context.Context, handle string, opts PostsOptions) iter.Seq2[*model.Post, error]
	Close() error
}

// Collector is a rate limited Source.
type Collector interface {
	Source
	Collect(ctx context.Context, handle string, opts PostsOptions) Result
	CollectHistorical(ctx context.Context, handle string, months int) Result
	// CollectFollowers reads only the profile counters.
	CollectFollowers(ctx context.Context, handle string) Result
}

// Result is the outcome of collecting one account. Err carries the fault of a
// failed collection; posts gathered before the fault are kept.
type Result struct {
	Success        bool
	PostsCollected int
	Followers      *int
	Following      *int
	Posts          []*model.Post
	Err            error
}

// Error returns the fault message or an empty string.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Limiter is the part of ratelimit.Limiter a collector needs.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// acquireEvery is the number of consumed posts between two limiter acquires.
const acquireEvery = 10

// Options configures a Base collector.
type Options struct {
	Limiter Limiter
	Logger  *slog.Logger
	Metrics statsd.Sink
	Now     func() time.Time
}

// Base implements Collector on top of a Source.
type Base struct {
	Source

	limiter Limiter
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

var _ Collector = (*Base)(nil)

// New wraps src with the limiter from opts.
func New(src Source, opts Options) (*Base, error) {
	if src == nil {
		return nil, errors.New("collector: source is required")
	}
	if opts.Limiter == nil {
		return nil, fmt.Errorf("collector %s: limiter is required", src.Platform())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Base{
		Source:  src,
		limiter: opts.Limiter,
		logger:  logger.With("component", "collector", "platform", string(src.Platform())),
		metrics: opts.Metrics,
		now:     now,
	}, nil
}

// Collect reads the profile and then the posts of handle. The limiter is
// acquired before the profile and again after every ten posts.
func (b *Base) Collect(ctx context.Context, handle string, opts PostsOptions) Result {
	start := b.now()
	res := b.collect(ctx, handle, opts)

	status := string(model.CollectionSuccess)
	if !res.Success {
		status = string(model.CollectionFailed)
		b.logger.WarnContext(ctx, "collection failed", "handle", handle,
			"posts", res.PostsCollected, "error", res.Err)
	} else {
		b.logger.InfoContext(ctx, "collection finished", "handle", handle, "posts", res.PostsCollected)
	}
	metrics.EmitCollection(b.metrics, metrics.CollectionMetric{
		Platform: string(b.Platform()),
		Status:   status,
		Posts:    res.PostsCollected,
		Duration: b.now().Sub(start),
		Err:      res.Err,
	})
	return res
}

func (b *Base) collect(ctx context.Context, handle string, opts PostsOptions) Result {
	var res Result
	fail := func(err error) Result {
		res.Success = false
		res.Err = err
		res.PostsCollected = len(res.Posts)
		return res
	}

	if err := b.limiter.Acquire(ctx); err != nil {
		return fail(err)
	}

	profile, err := b.CollectProfile(ctx, handle)
	if err != nil {
		return fail(fmt.Errorf("profile %s: %w", handle, err))
	}
	res.Followers = profile.Followers
	res.Following = profile.Following

	for post, err := range b.CollectPosts(ctx, handle, opts) {
		if err != nil {
			return fail(fmt.Errorf("posts %s: %w", handle, err))
		}
		res.Posts = append(res.Posts, post)
		if len(res.Posts)%acquireEvery == 0 {
			if err := b.limiter.Acquire(ctx); err != nil {
				return fail(err)
			}
		}
	}

	res.Success = true
	res.PostsCollected = len(res.Posts)
	return res
}

// CollectFollowers acquires the limiter once and reads the profile.
func (b *Base) CollectFollowers(ctx context.Context, handle string) Result {
	if err := b.limiter.Acquire(ctx); err != nil {
		return Result{Err: err}
	}
	profile, err := b.CollectProfile(ctx, handle)
	if err != nil {
		return Result{Err: fmt.Errorf("profile %s: %w", handle, err)}
	}
	return Result{Success: true, Followers: profile.Followers, Following: profile.Following}
}

// HistoricalPostsPerMonth bounds how many posts a backfill reads per month.
const HistoricalPostsPerMonth = 50

// CollectHistorical collects up to months×50 posts published in the last
// months×30 days.
func (b *Base) CollectHistorical(ctx context.Context, handle string, months int) Result {
	if months <= 0 {
		months = model.DefaultHistoricalMonths
	}
	since := b.now().AddDate(0, 0, -30*months)
	return b.Collect(ctx, handle, PostsOptions{
		Since: since,
		Limit: months * HistoricalPostsPerMonth,
	})
}

// inWindow reports whether a post passes the Until bound, and whether the
// listing should stop because the post is older than Since.
func (o PostsOptions) inWindow(postedAt time.Time) (keep, stop bool) {
	if !o.Since.IsZero() && postedAt.Before(o.Since) {
		return false, true
	}
	if !o.Until.IsZero() && postedAt.After(o.Until) {
		return false, false
	}
	return true, false
}
