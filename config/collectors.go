package config

import (
	"strings"
	"time"
)

// CollectorsConfig contains scraping configuration.
type CollectorsConfig struct {
	HTTPTimeout time.Duration `env:"COLLECTOR_HTTP_TIMEOUT" envDefault:"30s"`
	UserAgent   string        `env:"COLLECTOR_USER_AGENT"`

	// NitterInstances are tried in order; empty uses the built-in list.
	NitterInstances []string      `env:"NITTER_INSTANCES" envSeparator:","`
	NitterCooldown  time.Duration `env:"NITTER_COOLDOWN"  envDefault:"10m"`
	// NitterRetryDelay is slept after a 429 before the next instance is tried.
	NitterRetryDelay time.Duration `env:"NITTER_RETRY_DELAY" envDefault:"5s"`

	// InstagramSessionID is an optional logged in session cookie.
	InstagramSessionID string `env:"INSTAGRAM_SESSION_ID"`

	// Per platform overrides. Zero fields keep the platform default.
	Instagram RateLimitConfig `envPrefix:"INSTAGRAM_"`
	Facebook  RateLimitConfig `envPrefix:"FACEBOOK_"`
	Twitter   RateLimitConfig `envPrefix:"TWITTER_"`
}

// RateLimitConfig holds the limiter tunables of one platform.
type RateLimitConfig struct {
	RequestsPerMinute int     `env:"REQUESTS_PER_MINUTE"`
	DailyMax          int     `env:"DAILY_MAX"`
	MinDelaySeconds   float64 `env:"MIN_DELAY_SECONDS"`
}

// MinDelay converts MinDelaySeconds.
func (r RateLimitConfig) MinDelay() time.Duration {
	return time.Duration(r.MinDelaySeconds * float64(time.Second))
}

// Sanitize applies guardrails to collector configuration values.
func (c *CollectorsConfig) Sanitize() {
	if c.HTTPTimeout < time.Second {
		c.HTTPTimeout = time.Second
	}
	if c.NitterCooldown < 0 {
		c.NitterCooldown = 0
	}
	if c.NitterRetryDelay < 0 {
		c.NitterRetryDelay = 0
	}
	instances := c.NitterInstances[:0]
	for _, in := range c.NitterInstances {
		if in = strings.TrimRight(strings.TrimSpace(in), "/"); in != "" {
			instances = append(instances, in)
		}
	}
	c.NitterInstances = instances
	c.InstagramSessionID = strings.TrimSpace(c.InstagramSessionID)
	c.Instagram.sanitize()
	c.Facebook.sanitize()
	c.Twitter.sanitize()
}

func (r *RateLimitConfig) sanitize() {
	r.RequestsPerMinute = max(r.RequestsPerMinute, 0)
	r.DailyMax = max(r.DailyMax, 0)
	r.MinDelaySeconds = max(r.MinDelaySeconds, 0)
}
