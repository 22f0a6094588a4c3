// Package cache memoises ranked query results in Redis. Entries are keyed
// by the normalised query terms and filters and are flushed whenever a book
// is indexed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/resilience"
)

const keyPrefix = "search:"

// KV is the subset of the Redis client the cache uses.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	kv      KV
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New builds a cache over kv. m may be nil.
func New(kv KV, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		kv:      kv,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("query-cache", resilience.BreakerConfig{}),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key derives the cache key. Term order and case do not matter.
func Key(terms []string, filterKey string) string {
	sorted := append([]string(nil), terms...)
	sort.Strings(sorted)
	raw := strings.Join(sorted, ",") + "|" + filterKey
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func (c *QueryCache) Get(ctx context.Context, key string) ([]catalog.RankedResult, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.kv.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil || data == nil {
		if err != nil {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var results []catalog.RankedResult
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return results, true
}

func (c *QueryCache) Set(ctx context.Context, key string, results []catalog.RankedResult) {
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.kv.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached results for key or computes and stores
// them. Concurrent misses on the same key share one computation, which
// runs on a context detached from the first caller's cancellation but
// keeping its deadline, so one disconnecting client does not fail the
// others.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func(ctx context.Context) ([]catalog.RankedResult, error),
) ([]catalog.RankedResult, bool, error) {
	if results, ok := c.Get(ctx, key); ok {
		return results, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		sharedCtx, cancel := detach(ctx)
		defer cancel()
		results, err := compute(sharedCtx)
		if err != nil {
			return nil, err
		}
		c.Set(sharedCtx, key, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]catalog.RankedResult), false, nil
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	shared := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(shared, deadline)
	}
	return context.WithCancel(shared)
}

// Invalidate drops every cached query.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.kv.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// InvalidationHandler flushes the cache for every index-complete event.
// Undecodable messages are logged and skipped.
func (c *QueryCache) InvalidationHandler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[catalog.IndexEvent](value)
		if err != nil {
			c.logger.Error("failed to decode index event", "key", string(key), "error", err)
			return nil
		}
		c.logger.Debug("index event received", "book_id", event.BookID)
		return c.Invalidate(ctx)
	}
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
