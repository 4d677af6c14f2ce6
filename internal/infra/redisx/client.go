// Package redisx wraps Redis access for the cache probe and the bounded
// per-user notification cache.
package redisx

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Client wraps Redis operations.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks reachability.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// HitRatio computes the keyspace hit ratio from INFO stats. Returns 0 when
// no lookups have happened yet.
func (c *Client) HitRatio(ctx context.Context) (float64, error) {
	info, err := c.rdb.Info(ctx, "stats").Result()
	if err != nil {
		return 0, fmt.Errorf("info stats: %w", err)
	}

	var hits, misses float64
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, "keyspace_hits:"); ok {
			hits, _ = strconv.ParseFloat(v, 64)
		}
		if v, ok := strings.CutPrefix(line, "keyspace_misses:"); ok {
			misses, _ = strconv.ParseFloat(v, 64)
		}
	}

	total := hits + misses
	if total == 0 {
		return 0, nil
	}
	return hits / total, nil
}
