package core

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the boundary to one lookup cache backend. Implementations must
// be safe for concurrent use. The query layer treats every cache error as
// a miss; backends log their own failures.
type Cache interface {
	// Get retrieves the value stored under key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero ttl stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key from the cache. Deleting an absent key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend connection.
	Close() error
}

// CacheConfig selects and configures a cache backend.
type CacheConfig struct {
	// Type selects the backend ("memory", "redis", "dynamodb").
	// Empty disables caching.
	Type string

	// Endpoints are the backend addresses (host:port) for server backends.
	Endpoints []string

	// Password authenticates server backends, when required.
	Password string

	// DB is the Redis logical database number.
	DB int

	// Namespace prefixes every key written by this process.
	Namespace string

	// TTL is the default entry lifetime. Zero means no expiry.
	TTL time.Duration

	// DynamoDB configures the DynamoDB backend.
	DynamoDB DynamoDBConfig
}

// DynamoDBConfig carries DynamoDB-specific cache settings.
type DynamoDBConfig struct {
	// Region is the AWS region.
	Region string

	// TableName is the cache table. It must have a string partition key
	// named "cache_key".
	TableName string

	// Endpoint overrides the service endpoint for local stacks.
	Endpoint string

	// AccessKeyID is a static credential for local/dev use. When empty
	// the default AWS credential chain applies.
	AccessKeyID string

	// SecretAccessKey pairs with AccessKeyID.
	SecretAccessKey string
}
