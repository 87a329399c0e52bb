package middleware

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/live-room-coordinator/internal/config"
)

// takeToken refills the bucket at KEYS[1] for the whole intervals elapsed
// since the last refill, then tries to take one token.
// ARGV: now_ms, capacity, refill, interval_ms, ttl_s.
// Reply: {allowed 0|1, tokens left, ms until the next refill when refused}.
var takeToken = redis.NewScript(`
local now, cap, refill, every, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local h = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill_ms')
local tokens, last = tonumber(h[1]), tonumber(h[2])
if tokens == nil or last == nil then
  tokens, last = cap, now
end
local steps = math.floor(math.max(0, now - last) / every)
if steps > 0 then
  tokens = math.min(cap, tokens + steps * refill)
  last = last + steps * every
end
local ok, wait = 0, 0
if tokens > 0 then
  ok, tokens = 1, tokens - 1
else
  wait = math.max(0, every - (now - last))
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_refill_ms', last)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, tokens, wait}
`)

var errBadReply = errors.New("unexpected token bucket reply")

// verdict is one decision of the bucket.
type verdict struct {
    allowed    bool
    remaining  int64
    retryAfter time.Duration
}

// retrySeconds rounds retryAfter up to whole seconds for Retry-After.
func (v verdict) retrySeconds() int {
    return int((v.retryAfter + time.Second - 1) / time.Second)
}

func take(ctx context.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string, now time.Time) (verdict, error) {
    reply, err := takeToken.Run(ctx, rdb, []string{key},
        now.UnixMilli(), cfg.Capacity, cfg.RefillTokens,
        cfg.RefillInterval.Milliseconds(), int64(cfg.TTL/time.Second),
    ).Int64Slice()
    if err != nil {
        return verdict{}, err
    }
    v, ok := parseVerdict(reply)
    if !ok {
        return verdict{}, errBadReply
    }
    return v, nil
}

func parseVerdict(reply []int64) (verdict, bool) {
    if len(reply) != 3 {
        return verdict{}, false
    }
    return verdict{
        allowed:    reply[0] == 1,
        remaining:  reply[1],
        retryAfter: time.Duration(reply[2]) * time.Millisecond,
    }, true
}

// NewTokenBucket limits requests per key with a redis token bucket.  With
// no client, or when redis errors, requests pass through: polling clients
// must never be locked out because the limiter is down.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = zap.NewNop()
    }
    limit := strconv.Itoa(cfg.Capacity)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            v, err := take(c.Request().Context(), rdb, cfg, key, time.Now())
            if err != nil {
                log.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", limit)
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(v.remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if v.allowed {
                return next(c)
            }

            secs := v.retrySeconds()
            h.Set("Retry-After", strconv.Itoa(secs))
            if cfg.Debug {
                log.Info("rate limited", zap.String("key", key), zap.Duration("retry_after", v.retryAfter))
            }
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "too_many_requests",
                "message":     "rate limit exceeded",
                "retry_after": secs,
            })
        }
    }
}

// rateKeyParts lists, per strategy, which request facets form the key.
var rateKeyParts = map[string][]string{
    "ip":         {"ip"},
    "user":       {"user"},
    "route":      {"route"},
    "ip_user":    {"ip", "user"},
    "ip_route":   {"ip", "route"},
    "user_route": {"user", "route"},
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    facets := map[string]string{
        "ip":    ip,
        "user":  currentUserID(c),
        "route": c.Request().Method + " " + c.Path(),
    }

    strategy := strings.ToLower(cfg.KeyStrategy)
    parts, ok := rateKeyParts[strategy]
    if !ok {
        parts = []string{"ip", "user", "route"}
    }
    // anonymous calls (user creation) are keyed by client address instead
    if strategy == "user_route" && facets["user"] == "anon" {
        parts = []string{"ip", "route"}
    }

    key := []string{cfg.Prefix}
    for _, p := range parts {
        key = append(key, p, facets[p])
    }
    return strings.Join(key, ":")
}
