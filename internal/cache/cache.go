package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cozytiny/internal/middleware"
	"cozytiny/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Cache is a JSON cache-aside helper over Redis. A Cache with a nil client is
// valid and behaves as a permanent miss, so callers never branch on availability.
type Cache struct {
	rdb *redis.Client
}

// New wraps rdb. rdb may be nil.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Client returns the underlying Redis client, or nil when caching is disabled.
func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}

// Enabled reports whether a Redis client is attached.
func (c *Cache) Enabled() bool {
	return c.Client() != nil
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.CacheResults.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		observability.CacheResults.WithLabelValues("error").Inc()
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		observability.CacheResults.WithLabelValues("error").Inc()
		return false, err
	}
	observability.CacheResults.WithLabelValues("hit").Inc()
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// versionTTL outlives every entry TTL so a bump is still visible to any fill
// that started before it.
const versionTTL = 2 * time.Hour

func versionKey(name string) string {
	return "ver:" + name
}

// setIfVersion stores KEYS[1] only while the version at KEYS[2] still equals
// the value read before the fetch. A missing version reads as "".
var setIfVersion = redis.NewScript(`
local v = redis.call('GET', KEYS[2]) or ''
if v ~= ARGV[2] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// Aside tries Redis first; on a miss it calls fetch, which must populate dest,
// then stores dest with ttl. Cache failures never fail the read.
func (c *Cache) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	return c.AsideGroup(ctx, key, key, dest, ttl, fetch)
}

// AsideGroup is Aside with the fill fenced by the version of group instead of
// key. A fill whose group was invalidated while fetch ran is not stored, so
// a slow read cannot put back data an invalidation already removed.
func (c *Cache) AsideGroup(ctx context.Context, group, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := c.GetJSON(ctx, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}
	if found {
		return nil
	}

	ver, verErr := c.version(ctx, group)

	if err := fetch(); err != nil {
		return err
	}

	if verErr != nil {
		middleware.Logger.WarnContext(ctx, "cache version read failed", "key", key, "error", verErr)
		return nil
	}
	if err := c.setFenced(ctx, group, key, ver, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return nil
}

func (c *Cache) version(ctx context.Context, group string) (string, error) {
	if !c.Enabled() {
		return "", nil
	}
	v, err := c.rdb.Get(ctx, versionKey(group)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (c *Cache) setFenced(ctx context.Context, group, key, ver string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	stored, err := setIfVersion.Run(ctx, c.rdb, []string{key, versionKey(group)}, b, ver, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if stored == 0 {
		observability.CacheResults.WithLabelValues("stale_fill").Inc()
	}
	return nil
}

// Invalidate deletes the given keys and bumps their versions so in-flight
// fills of the same keys are dropped. Errors are logged, not returned.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	c.bump(ctx, keys...)
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed", "keys", keys, "error", err)
	}
}

// InvalidateGroup bumps the group version, then deletes every key matching
// pattern.
func (c *Cache) InvalidateGroup(ctx context.Context, group, pattern string) {
	if !c.Enabled() {
		return
	}
	c.bump(ctx, group)
	c.InvalidatePattern(ctx, pattern)
}

func (c *Cache) bump(ctx context.Context, names ...string) {
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, n := range names {
			p.Incr(ctx, versionKey(n))
			p.Expire(ctx, versionKey(n), versionTTL)
		}
		return nil
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache version bump failed", "keys", names, "error", err)
	}
}

// InvalidatePattern deletes every key matching pattern using SCAN.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) {
	if !c.Enabled() {
		return
	}
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache scan failed", "pattern", pattern, "error", err)
		return
	}
	c.Invalidate(ctx, keys...)
}
