package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/hex"
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/live-room-coordinator/internal/config"
    "github.com/iliyamo/live-room-coordinator/internal/room"
)

// cachedResponse is what a cache entry holds.  Only the content type is
// kept from the headers; list responses carry nothing else of interest.
type cachedResponse struct {
    Status      int    `json:"s"`
    ContentType string `json:"ct"`
    Body        []byte `json:"b"`
}

// bodyTee forwards writes to the client and keeps a copy of the body until
// it grows past limit (0 means no limit).
type bodyTee struct {
    http.ResponseWriter
    status   int
    body     bytes.Buffer
    limit    int
    overflow bool
}

func (t *bodyTee) WriteHeader(code int) {
    t.status = code
    t.ResponseWriter.WriteHeader(code)
}

func (t *bodyTee) Write(b []byte) (int, error) {
    if !t.overflow {
        if t.limit > 0 && t.body.Len()+len(b) > t.limit {
            t.overflow = true
            t.body.Reset()
        } else {
            t.body.Write(b)
        }
    }
    return t.ResponseWriter.Write(b)
}

// cacheKey names an entry by list generation, route and query, so bumping
// the generation orphans every older entry at once.
func cacheKey(cfg config.CacheConfig, gen int64, c echo.Context) string {
    sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
    return cfg.Prefix + ":" + strconv.FormatInt(gen, 10) + ":" + hex.EncodeToString(sum[:])
}

// listGeneration reads the current generation; a missing key is generation 0.
func listGeneration(ctx context.Context, rdb *redis.Client, cfg config.CacheConfig) (int64, error) {
    gen, err := rdb.Get(ctx, cfg.GenerationKey()).Int64()
    if errors.Is(err, redis.Nil) {
        return 0, nil
    }
    return gen, err
}

func lookup(ctx context.Context, rdb *redis.Client, key string) (cachedResponse, bool) {
    raw, err := rdb.Get(ctx, key).Bytes()
    if err != nil {
        return cachedResponse{}, false
    }
    var cr cachedResponse
    if err := json.Unmarshal(raw, &cr); err != nil || cr.Status == 0 {
        return cachedResponse{}, false
    }
    return cr, true
}

// NewRedisCache caches successful responses of the routes it wraps.  It is
// meant for the lobby list only: member and result polls must always read
// live seats.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = zap.NewNop()
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()
            gen, err := listGeneration(ctx, rdb, cfg)
            if err != nil {
                log.Warn("cache generation read failed", zap.Error(err))
                return next(c)
            }
            key := cacheKey(cfg, gen, c)

            if cr, ok := lookup(ctx, rdb, key); ok {
                c.Response().Header().Set("X-Cache", "HIT")
                return c.Blob(cr.Status, cr.ContentType, cr.Body)
            }

            tee := &bodyTee{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = tee
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if tee.status != http.StatusOK || tee.overflow {
                return nil
            }

            payload, err := json.Marshal(cachedResponse{
                Status:      tee.status,
                ContentType: c.Response().Header().Get(echo.HeaderContentType),
                Body:        tee.body.Bytes(),
            })
            if err != nil {
                return nil
            }
            if err := rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err(); err != nil {
                log.Warn("cache store failed", zap.String("key", key), zap.Error(err))
            }
            return nil
        }
    }
}

// CacheInvalidator bumps the list generation whenever a room change can
// alter the lobby list.  It is registered as a room.Observer.
type CacheInvalidator struct {
    rdb *redis.Client
    cfg config.CacheConfig
    log *zap.Logger
}

// NewCacheInvalidator returns nil when caching is off; callers then skip
// registering it.
func NewCacheInvalidator(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *CacheInvalidator {
    if !cfg.Enabled || rdb == nil {
        return nil
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &CacheInvalidator{rdb: rdb, cfg: cfg, log: log}
}

func (ci *CacheInvalidator) RoomChanged(ctx context.Context, e room.Event) {
    if !e.AffectsListing() {
        return
    }
    if err := ci.rdb.Incr(context.WithoutCancel(ctx), ci.cfg.GenerationKey()).Err(); err != nil {
        ci.log.Warn("cache invalidation failed", zap.Uint64("room_id", e.RoomID), zap.Error(err))
    }
}
