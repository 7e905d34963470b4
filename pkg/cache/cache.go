// Package cache stores match runs in Redis, keyed by config name and record fingerprint
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"

	"github.com/inspirehep/inspire-matcher/pkg/metrics"
	"github.com/inspirehep/inspire-matcher/pkg/models"
)

// Config holds Redis connection configuration
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Cache is a Redis backed match run cache
type Cache struct {
	rdb    *redis.Client
	logger ectologger.Logger
	prefix string
	ttl    time.Duration
}

// NewCache connects to Redis and checks the connection
func NewCache(ctx context.Context, cfg Config, logger ectologger.Logger) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	logger.Infof("Connected to Redis at %s", cfg.Addr)

	return &Cache{
		rdb:    rdb,
		logger: logger,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) key(configName, configFingerprint, recordFingerprint string) string {
	return fmt.Sprintf("%s:match:%s:%s:%s", c.prefix, configName, configFingerprint, recordFingerprint)
}

// Get returns the cached run, nil on a miss
func (c *Cache) Get(ctx context.Context, configName, configFingerprint, recordFingerprint string) (*models.MatchRun, error) {
	key := c.key(configName, configFingerprint, recordFingerprint)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, nil
	}
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	var run models.MatchRun
	if err := json.Unmarshal(raw, &run); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Dropping unreadable cached match run")
		_ = c.rdb.Del(ctx, key).Err()
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, nil
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	run.Cached = true
	return &run, nil
}

// Set stores a run for the configured TTL
func (c *Cache) Set(ctx context.Context, run *models.MatchRun) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(run.ConfigName, run.ConfigFingerprint, run.RecordFingerprint), raw, c.ttl).Err()
}

// Invalidate drops every cached run of a config
func (c *Cache) Invalidate(ctx context.Context, configName string) error {
	iter := c.rdb.Scan(ctx, 0, fmt.Sprintf("%s:match:%s:*", c.prefix, configName), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
