package collector

import (
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/ratelimit"
)

var defaultLimits = map[model.Platform]ratelimit.Config{
	model.PlatformInstagram: {RequestsPerMinute: 10, DailyMax: 200, MinDelay: 6 * time.Second},
	model.PlatformFacebook:  {RequestsPerMinute: 5, DailyMax: 100, MinDelay: 12 * time.Second},
	model.PlatformTwitter:   {RequestsPerMinute: 20, DailyMax: 500, MinDelay: 3 * time.Second},
}

var fallbackLimit = ratelimit.Config{RequestsPerMinute: 5, DailyMax: 100, MinDelay: 5 * time.Second}

// DefaultLimits returns the conservative rate limit for a platform.
func DefaultLimits(p model.Platform) ratelimit.Config {
	if cfg, ok := defaultLimits[p]; ok {
		return cfg
	}
	return fallbackLimit
}
