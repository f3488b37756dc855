// Package cache memoizes finished pipeline results in Redis, keyed by the
// document kind and a fingerprint of the input collection. Concurrent
// computations of the same key are collapsed with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/EmanuelaBoros/impresso-essentials/internal/bag"
	"github.com/EmanuelaBoros/impresso-essentials/internal/stats"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/config"
	pkgredis "github.com/EmanuelaBoros/impresso-essentials/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "stats:"

// StatsCache caches computed statistics sequences.
type StatsCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a StatsCache on top of an open redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *StatsCache {
	return &StatsCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "stats-cache"),
	}
}

// Get returns the cached statistics for the key, if present.
func (c *StatsCache) Get(ctx context.Context, kind stats.Kind, fingerprint string) ([]bag.Record, bool) {
	key := c.buildKey(kind, fingerprint)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var records []bag.Record
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "kind", kind, "key", key)
	return records, true
}

// Set stores the statistics for the key with the configured TTL.
func (c *StatsCache) Set(ctx context.Context, kind stats.Kind, fingerprint string, records []bag.Record) {
	key := c.buildKey(kind, fingerprint)
	data, err := json.Marshal(records)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs computeFn once, caching
// its output. The second return reports whether the cache was hit.
func (c *StatsCache) GetOrCompute(
	ctx context.Context,
	kind stats.Kind,
	fingerprint string,
	computeFn func() ([]bag.Record, error),
) ([]bag.Record, bool, error) {
	if records, ok := c.Get(ctx, kind, fingerprint); ok {
		return records, true, nil
	}
	key := c.buildKey(kind, fingerprint)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if records, ok := c.Get(ctx, kind, fingerprint); ok {
			return records, nil
		}
		records, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, kind, fingerprint, records)
		return records, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]bag.Record), false, nil
}

// Invalidate drops every cached statistics entry.
func (c *StatsCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating stats cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counters.
func (c *StatsCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *StatsCache) buildKey(kind stats.Kind, fingerprint string) string {
	hash := sha256.Sum256([]byte(string(kind) + "|" + fingerprint))
	return fmt.Sprintf("%s%s:%x", keyPrefix, kind, hash[:16])
}
