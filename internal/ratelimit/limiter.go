// Package ratelimit paces outbound requests to a social platform with a token bucket and a daily cap.
package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/metrics"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/statsd"
)

// ErrRateLimitExceeded is returned by Acquire once the daily cap is spent.
// Jobs failing with it are not retried the same day.
var ErrRateLimitExceeded error = &capError{msg: "daily rate limit exceeded"}

type capError struct{ msg string }

func (e *capError) Error() string    { return e.msg }
func (*capError) ErrorClass() string { return "rate_limit_exceeded" }

// Config holds the per-platform tunables.
type Config struct {
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	DailyMax          int           `yaml:"daily_max"`
	MinDelay          time.Duration `yaml:"min_delay"`
}

// Validate rejects configurations that could never grant a token.
func (c Config) Validate() error {
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests_per_minute must be > 0, got %d", c.RequestsPerMinute)
	}
	if c.DailyMax <= 0 {
		return fmt.Errorf("daily_max must be > 0, got %d", c.DailyMax)
	}
	if c.MinDelay < 0 {
		return fmt.Errorf("min_delay must be >= 0, got %s", c.MinDelay)
	}
	return nil
}

// Clock abstracts time so tests can run the limiter without real sleeps.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State is a snapshot of the bucket.
type State struct {
	Tokens         float64
	LastRefill     time.Time
	DailyCount     int
	DailyResetDate time.Time
}

// Options configures a Limiter.
type Options struct {
	Platform string
	Config   Config
	Clock    Clock
	// Jitter returns a random duration in [0, max]. Defaults to a crypto/rand source.
	Jitter  func(max time.Duration) time.Duration
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Limiter grants one token per request. Acquire calls are serialized, so the
// waits of concurrent callers add up.
type Limiter struct {
	platform string
	cfg      Config
	clock    Clock
	jitter   func(time.Duration) time.Duration
	logger   *slog.Logger
	metrics  statsd.Sink

	mu    sync.Mutex
	state State
}

// New creates a Limiter starting with a full bucket.
func New(opts Options) (*Limiter, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("rate limiter %s: %w", opts.Platform, err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	jitter := opts.Jitter
	if jitter == nil {
		jitter = cryptoJitter
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := clock.Now()
	return &Limiter{
		platform: opts.Platform,
		cfg:      opts.Config,
		clock:    clock,
		jitter:   jitter,
		logger:   logger.With("component", "rate_limiter", "platform", opts.Platform),
		metrics:  opts.Metrics,
		state: State{
			Tokens:         float64(opts.Config.RequestsPerMinute),
			LastRefill:     now,
			DailyResetDate: day(now),
		},
	}, nil
}

// Acquire blocks until a request may be sent. It returns ErrRateLimitExceeded
// when the daily cap is spent, or the context error when ctx ends while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if today := day(now); !today.Equal(l.state.DailyResetDate) {
		l.state.DailyCount = 0
		l.state.DailyResetDate = today
	}

	if l.state.DailyCount >= l.cfg.DailyMax {
		metrics.EmitRateLimit(l.metrics, metrics.RateLimitMetric{Platform: l.platform, Event: metrics.RateLimitCapHit})
		return fmt.Errorf("%s: %w (%d)", l.platform, ErrRateLimitExceeded, l.cfg.DailyMax)
	}

	rpm := float64(l.cfg.RequestsPerMinute)
	elapsed := now.Sub(l.state.LastRefill).Seconds()
	l.state.Tokens = min(rpm, l.state.Tokens+elapsed*rpm/60)
	l.state.LastRefill = now

	if l.state.Tokens < 1 {
		wait := time.Duration((1 - l.state.Tokens) * 60 / rpm * float64(time.Second))
		wait += l.jitter(l.cfg.MinDelay)
		l.logger.DebugContext(ctx, "rate limit wait", "wait", wait)
		metrics.EmitRateLimit(l.metrics, metrics.RateLimitMetric{
			Platform: l.platform, Event: metrics.RateLimitWait, Waited: wait,
		})
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
		l.state.Tokens = 1
		l.state.LastRefill = l.clock.Now()
	}

	l.state.Tokens--
	l.state.DailyCount++

	return l.clock.Sleep(ctx, l.cfg.MinDelay)
}

// State returns a copy of the current bucket.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Remaining returns how many requests are left today.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !day(l.clock.Now()).Equal(l.state.DailyResetDate) {
		return l.cfg.DailyMax
	}
	return max(0, l.cfg.DailyMax-l.state.DailyCount)
}

// IsRateLimitExceeded reports whether err is, or wraps, ErrRateLimitExceeded.
func IsRateLimitExceeded(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}

// day truncates t to its local calendar day.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func cryptoJitter(maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	n := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter+1)
	return time.Duration(int64(n)) // #nosec G115 - bounded by maxJitter
}
