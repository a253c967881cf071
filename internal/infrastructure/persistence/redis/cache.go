// Package redis implements the Redis-backed report cache.
//
// Key components:
//   - Cache: JSON get/set with TTL management on top of go-redis
//   - StatsCache: report.StatsCache guarded by a circuit breaker
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the Redis server address in "host:port" form.
	Addr string

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MaxRetries is the maximum number of retries before giving up.
	MaxRetries int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheMiss is returned when the requested key is not found in cache.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when Redis connection fails.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when serialization/deserialization fails.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheInvalidTTL is returned when an invalid TTL is provided.
	ErrCacheInvalidTTL = errors.New("cache: invalid TTL")

	// ErrCacheKeyEmpty is returned when an empty key is provided.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")

	// ErrCacheNilValue is returned when attempting to cache a nil value.
	ErrCacheNilValue = errors.New("cache: value cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// PrefixEventStats namespaces cached per-event stats.
	PrefixEventStats = "stats:event:"

	// PrefixStudentStats namespaces cached per-student stats.
	PrefixStudentStats = "stats:student:"

	// PrefixEventGeneration and PrefixStudentGeneration namespace the
	// invalidation counters guarding stats writes.
	PrefixEventGeneration   = "stats:gen:event:"
	PrefixStudentGeneration = "stats:gen:student:"

	// TTLStats is the default lifetime of a cached stats entry.
	TTLStats = 5 * time.Minute

	// TTLGeneration keeps a generation counter alive well past any in-flight
	// read that may still hold its value.
	TTLGeneration = 24 * time.Hour
)

// EventStatsKey generates a cache key for event stats.
func EventStatsKey(eventID string) string {
	return PrefixEventStats + eventID
}

// StudentStatsKey generates a cache key for student stats.
func StudentStatsKey(studentID string) string {
	return PrefixStudentStats + studentID
}

// EventGenerationKey generates the generation key for event stats.
func EventGenerationKey(eventID string) string {
	return PrefixEventGeneration + eventID
}

// StudentGenerationKey generates the generation key for student stats.
func StudentGenerationKey(studentID string) string {
	return PrefixStudentGeneration + studentID
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache provides JSON caching on Redis.
type Cache struct {
	client *redis.Client
}

// NewCache connects using cfg and verifies the server is reachable.
func NewCache(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrCacheConnection, err)
	}

	return &Cache{client: client}, nil
}

// NewCacheFromClient wraps an existing client.
func NewCacheFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client exposes the underlying client for Pub/Sub.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// ══════════════════════════════════════════════════════════════════════════════
// BASIC OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Set stores value as JSON under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	if value == nil {
		return ErrCacheNilValue
	}
	if ttl < 0 {
		return ErrCacheInvalidTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheSerialization, err)
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Get retrieves and deserializes a value by key.
// Returns ErrCacheMiss if the key doesn't exist.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheSerialization, err)
	}

	return nil
}

// Delete removes keys from the cache.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return c.client.Del(ctx, keys...).Err()
}

// TTL returns the remaining TTL for a key.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	if key == "" {
		return 0, ErrCacheKeyEmpty
	}

	return c.client.TTL(ctx, key).Result()
}

// DeleteByPattern deletes all keys matching pattern in batches of 100.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) error {
	if pattern == "" {
		return ErrCacheKeyEmpty
	}

	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}

	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERATION-GUARDED OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// setIfGeneration writes KEYS[2] only while KEYS[1] still holds ARGV[1].
// A missing generation counts as 0.
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == false then
	current = '0'
end
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// GetWithGeneration reads key and its generation counter atomically.
// The generation is returned even on ErrCacheMiss.
func (c *Cache) GetWithGeneration(ctx context.Context, key, genKey string, dest any) (int64, error) {
	if key == "" || genKey == "" {
		return 0, ErrCacheKeyEmpty
	}

	var genCmd, valCmd *redis.StringCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		genCmd = pipe.Get(ctx, genKey)
		valCmd = pipe.Get(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}

	gen, err := genCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}

	data, err := valCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return gen, ErrCacheMiss
	}
	if err != nil {
		return gen, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return gen, fmt.Errorf("%w: %w", ErrCacheSerialization, err)
	}
	return gen, nil
}

// SetIfGeneration stores value under key only if genKey still holds gen.
// It reports whether the value was written.
func (c *Cache) SetIfGeneration(ctx context.Context, key, genKey string, gen int64, value any, ttl time.Duration) (bool, error) {
	if key == "" || genKey == "" {
		return false, ErrCacheKeyEmpty
	}
	if value == nil {
		return false, ErrCacheNilValue
	}
	if ttl < 0 {
		return false, ErrCacheInvalidTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrCacheSerialization, err)
	}

	written, err := setIfGeneration.Run(ctx, c.client, []string{genKey, key}, gen, data, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return written == 1, nil
}

// BumpGeneration advances genKey and drops key in one transaction, so any
// value computed against the previous generation can no longer be stored.
func (c *Cache) BumpGeneration(ctx context.Context, key, genKey string) error {
	if key == "" || genKey == "" {
		return ErrCacheKeyEmpty
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, TTLGeneration)
		pipe.Del(ctx, key)
		return nil
	})
	return err
}
