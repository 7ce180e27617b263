// Package countcache keeps badge counts in redis so repeated polling does not
// hit postgres. Every failure degrades to a miss.
package countcache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "notif:count:"

// Invalidator drops cached counts for addresses whose notifications changed.
type Invalidator interface {
	Invalidate(ctx context.Context, emails ...string)
}

type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// New returns a cache over rdb. A nil client or a non-positive ttl disables
// caching; the returned cache then always misses.
func New(rdb *redis.Client, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, logger: log}
}

func (c *Cache) enabled() bool {
	return c != nil && c.rdb != nil && c.ttl > 0
}

// Key is the redis key of one badge count variant.
func Key(email string, isRead *bool) string {
	variant := "all"
	if isRead != nil {
		if *isRead {
			variant = "read"
		} else {
			variant = "unread"
		}
	}
	return keyPrefix + strings.ToLower(email) + ":" + variant
}

func keys(email string) []string {
	read, unread := true, false
	return []string{Key(email, &read), Key(email, &unread), Key(email, nil)}
}

// Get returns the cached count and whether it was present.
func (c *Cache) Get(ctx context.Context, email string, isRead *bool) (int, bool) {
	if !c.enabled() {
		return 0, false
	}

	val, err := c.rdb.Get(ctx, Key(email, isRead)).Result()
	if errors.Is(err, redis.Nil) {
		metrics.CountCache.WithLabelValues(metrics.CacheMiss).Inc()
		return 0, false
	}
	if err != nil {
		metrics.CountCache.WithLabelValues(metrics.CacheError).Inc()
		c.logger.Warn("count cache read failed", map[string]interface{}{"email": email, "error": err})
		return 0, false
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		metrics.CountCache.WithLabelValues(metrics.CacheError).Inc()
		return 0, false
	}
	metrics.CountCache.WithLabelValues(metrics.CacheHit).Inc()
	return n, true
}

// Set stores a freshly computed count.
func (c *Cache) Set(ctx context.Context, email string, isRead *bool, n int) {
	if !c.enabled() {
		return
	}
	if err := c.rdb.Set(ctx, Key(email, isRead), n, c.ttl).Err(); err != nil {
		c.logger.Warn("count cache write failed", map[string]interface{}{"email": email, "error": err})
	}
}

// Invalidate drops every count variant of the given addresses.
func (c *Cache) Invalidate(ctx context.Context, emails ...string) {
	if !c.enabled() || len(emails) == 0 {
		return
	}

	seen := make(map[string]bool, len(emails))
	var ks []string
	for _, e := range emails {
		e = strings.ToLower(e)
		if seen[e] {
			continue
		}
		seen[e] = true
		ks = append(ks, keys(e)...)
	}

	if err := c.rdb.Del(ctx, ks...).Err(); err != nil {
		c.logger.Warn("count cache invalidation failed", map[string]interface{}{"emails": emails, "error": err})
	}
}
