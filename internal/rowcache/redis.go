package rowcache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/perfline/resultdb/internal/core"
)

// redisDialTimeout bounds the connection probe at construction time.
const redisDialTimeout = 5 * time.Second

// RedisCache implements core.Cache using a single-node Redis server.
type RedisCache struct {
	client *redis.Client
	closed bool
}

// NewRedisCache connects to the first configured endpoint and verifies the
// connection with a PING before returning.
func NewRedisCache(endpoints []string, password string, db int) (*RedisCache, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	opts := &redis.Options{
		Addr:        endpoints[0],
		Password:    password,
		DB:          db,
		DialTimeout: redisDialTimeout,
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[REDIS] connected to %s (db %d)", endpoints[0], db)
	return &RedisCache{client: client}, nil
}

// Get retrieves the value stored under key, or core.ErrCacheMiss.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if r.closed {
		return nil, fmt.Errorf("cache is closed")
	}

	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, core.ErrCacheMiss
	}
	if err != nil {
		log.Printf("[REDIS] ERROR: failed to get key %s: %v", key, err)
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key with an optional TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.closed {
		return fmt.Errorf("cache is closed")
	}

	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("[REDIS] ERROR: failed to set key %s: %v", key, err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes key from the cache.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if r.closed {
		return fmt.Errorf("cache is closed")
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close closes the connection to the Redis server.
func (r *RedisCache) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

// redisFactory implements the Factory interface for Redis.
type redisFactory struct{}

// Type returns the type identifier for this factory.
func (f *redisFactory) Type() string {
	return "redis"
}

// Validate validates the Redis-specific configuration.
func (f *redisFactory) Validate(cfg core.CacheConfig) error {
	if cfg.Type != "redis" {
		return fmt.Errorf("invalid type for Redis factory: %s", cfg.Type)
	}
	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if cfg.DB < 0 || cfg.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", cfg.DB)
	}
	return nil
}

// Create creates a new Redis cache instance from the configuration.
func (f *redisFactory) Create(cfg core.CacheConfig) (core.Cache, error) {
	cache, err := NewRedisCache(cfg.Endpoints, cfg.Password, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis cache: %w", err)
	}
	return cache, nil
}

func init() {
	Register(&redisFactory{})
}
