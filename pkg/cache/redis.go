package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is prepended to every key unless WithRedisPrefix is used.
const DefaultRedisPrefix = "lanegrid:cache:"

// RedisCache stores entries in Redis. Expiry is delegated to Redis TTLs.
// Connection failures are retried with backoff and surface as
// ErrUnavailable.
type RedisCache struct {
	client   *backend.Client
	prefix   string
	attempts int
	delay    time.Duration
	owned    bool
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisCache) { c.prefix = prefix }
}

// WithRedisRetry sets how often and how soon a failed command is retried.
func WithRedisRetry(attempts int, delay time.Duration) RedisOption {
	return func(c *RedisCache) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.delay = delay
	}
}

// NewRedisCache connects to the Redis server at addr.
func NewRedisCache(addr, password string, db int, opts ...RedisOption) *RedisCache {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	c := NewRedisCacheFromClient(client, opts...)
	c.owned = true
	return c
}

// NewRedisCacheFromClient wraps an existing client. Close leaves the client
// open.
func NewRedisCacheFromClient(client *backend.Client, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		client:   client,
		prefix:   DefaultRedisPrefix,
		attempts: 3,
		delay:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping checks that the server is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.do(ctx, func() error {
		return c.client.Ping(ctx).Err()
	})
}

// Get retrieves a value from the cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := c.do(ctx, func() error {
		var err error
		data, err = c.client.Get(ctx, c.prefix+key).Bytes()
		return err
	})
	if errors.Is(err, backend.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores a value in the cache.
func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.do(ctx, func() error {
		return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
	})
}

// Delete removes a value from the cache.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.do(ctx, func() error {
		return c.client.Del(ctx, c.prefix+key).Err()
	})
}

// Close closes the client if the cache created it.
func (c *RedisCache) Close() error {
	if c.owned {
		return c.client.Close()
	}
	return nil
}

func (c *RedisCache) do(ctx context.Context, fn func() error) error {
	err := RetryWithBackoff(ctx, c.attempts, c.delay, func() error {
		err := fn()
		if isConnError(err) {
			return Retryable(err)
		}
		return err
	})
	if IsRetryable(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, errors.Unwrap(err))
	}
	return err
}

func isConnError(err error) bool {
	if err == nil || errors.Is(err, backend.Nil) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, backend.ErrClosed)
}

var _ Cache = (*RedisCache)(nil)
