package config

import "time"

// RateLimitConfig drives the redis token bucket in front of /v1.  Waiting
// clients poll once or twice a second, so the defaults leave room for a
// steady poll plus bursts of joins and submits.
//
//   RATE_LIMIT_ENABLED         on by default; also needs redis
//   RATE_LIMIT_CAPACITY        bucket size (RATE_LIMIT_BURST overrides)
//   RATE_LIMIT_REFILL_TOKENS   tokens added per interval
//   RATE_LIMIT_REFILL_INTERVAL interval length
//   RATE_LIMIT_REFILL_EVERY    shorthand for one token per interval
//   RATE_LIMIT_TTL             idle bucket lifetime, at least 5 intervals
//   RATE_LIMIT_KEY_STRATEGY    ip, user, route, ip_user, ip_route, user_route
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

func LoadRateLimitConfig() RateLimitConfig {
    rl := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_BURST", envInt("RATE_LIMIT_CAPACITY", 120)),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 4),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "user_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
        rl.RefillTokens, rl.RefillInterval = 1, every
    }
    return rl.clamped()
}

// clamped returns rl with every numeric setting in its usable range.
func (rl RateLimitConfig) clamped() RateLimitConfig {
    rl.Capacity = max(rl.Capacity, 1)
    rl.RefillTokens = max(rl.RefillTokens, 1)
    if rl.RefillInterval <= 0 {
        rl.RefillInterval = time.Second
    }
    rl.TTL = max(rl.TTL, 5*rl.RefillInterval)
    return rl
}
