package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/config"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/adapters/reaper"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/collector"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/statsd"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/ratelimit"
)

// CollectorDeps groups dependencies for BuildCollectors.
type CollectorDeps struct {
	Config config.CollectorsConfig
	// Cache stores Nitter instance cooldowns.
	Cache   core.CacheRepository
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// BuildCollectors wires one rate limited collector per platform.
func BuildCollectors(deps CollectorDeps) (*collector.Registry, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	httpOpts := collector.HTTPOptions{Timeout: cfg.HTTPTimeout, UserAgent: cfg.UserAgent}

	instances := cfg.NitterInstances
	if len(instances) == 0 {
		instances = collector.DefaultNitterInstances
	}
	twitter, err := collector.NewTwitter(collector.TwitterOptions{
		HTTP:       httpOpts,
		Instances:  instances,
		Cache:      deps.Cache,
		Cooldown:   cfg.NitterCooldown,
		RetryDelay: cfg.NitterRetryDelay,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	sources := []struct {
		src      collector.Source
		override config.RateLimitConfig
	}{
		{collector.NewInstagram(collector.InstagramOptions{HTTP: httpOpts, SessionID: cfg.InstagramSessionID, Logger: logger}), cfg.Instagram},
		{collector.NewFacebook(collector.FacebookOptions{HTTP: httpOpts, Logger: logger}), cfg.Facebook},
		{twitter, cfg.Twitter},
	}

	reg, err := collector.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, s := range sources {
		p := s.src.Platform()
		limiter, err := ratelimit.New(ratelimit.Options{
			Platform: string(p),
			Config:   RateLimits(p, s.override),
			Logger:   logger,
			Metrics:  deps.Metrics,
		})
		if err != nil {
			return nil, err
		}
		c, err := collector.New(s.src, collector.Options{
			Limiter: limiter,
			Logger:  logger,
			Metrics: deps.Metrics,
		})
		if err != nil {
			return nil, err
		}
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// RateLimits returns the platform default with the non-zero fields of
// override applied.
func RateLimits(p model.Platform, override config.RateLimitConfig) ratelimit.Config {
	out := collector.DefaultLimits(p)
	if override.RequestsPerMinute > 0 {
		out.RequestsPerMinute = override.RequestsPerMinute
	}
	if override.DailyMax > 0 {
		out.DailyMax = override.DailyMax
	}
	if override.MinDelaySeconds > 0 {
		out.MinDelay = override.MinDelay()
	}
	return out
}

// ReaperConfig contains configuration for the reaper service.
type ReaperConfig struct {
	Repo    core.ReaperRepository
	Backend string
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Repo:    cfg.Repo,
		Backend: cfg.Backend,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
