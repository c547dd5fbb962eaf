package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis connection shared by the cache and the queue.
type Client struct {
	Redis *redis.Client
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed connecting to redis: %w", err)
	}

	return &Client{Redis: client}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.Redis.Close()
}

// Set sets a key-value pair with expiration.
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.Redis.Set(ctx, key, value, expiration).Err()
}

// Get gets a value by key. Missing keys return redis.Nil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.Redis.Get(ctx, key).Result()
}

// Delete deletes keys.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.Redis.Del(ctx, keys...).Err()
}

// DedupCache is a bounded TTL cache of processed webhook delivery ids.
// Entries expire on their own; capacity is whatever the Redis instance
// allows. It lives at the ingestion boundary, not in the core.
type DedupCache struct {
	client *Client
	ttl    time.Duration
	prefix string
}

// NewDedupCache creates a dedup cache with the given entry TTL.
func NewDedupCache(client *Client, ttl time.Duration) *DedupCache {
	return &DedupCache{client: client, ttl: ttl, prefix: "webhook:seen:"}
}

// MarkSeen records the id and reports whether it was already present.
func (d *DedupCache) MarkSeen(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.Redis.SetNX(ctx, d.prefix+id, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark webhook id seen: %w", err)
	}
	// SetNX returns false when the key already existed.
	return !ok, nil
}
