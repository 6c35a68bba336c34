package resultdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/perfline/resultdb/internal/core"
)

// Config is the root configuration for opening a result database.
type Config struct {
	// Database configures the relational engine.
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Cache configures the optional lookup cache.
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Recorder configures the buffered execution recorder.
	Recorder RecorderConfig `yaml:"recorder" json:"recorder"`

	// Migrations configures extra migration script locations applied
	// after the variant's own.
	Migrations MigrationsConfig `yaml:"migrations" json:"migrations"`
}

// DatabaseConfig configures the relational engine.
type DatabaseConfig struct {
	// Type specifies the engine type: "mysql", "postgres" or "sqlite".
	Type string `yaml:"type" json:"type"`

	// Host is the database host address.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port is the database port number.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// Database is the database name.
	Database string `yaml:"database,omitempty" json:"database,omitempty"`

	// Username is the database username.
	Username string `yaml:"username,omitempty" json:"username,omitempty"`

	// Password is the database password.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// Path is the database file path for SQLite.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Params holds extra driver connection parameters.
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`

	// ConnMaxLifetime is the maximum amount of time a connection may be
	// reused.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`

	// ConnMaxIdleTime is the maximum amount of time a connection may be
	// idle.
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time,omitempty" json:"conn_max_idle_time,omitempty"`

	// ConnectTimeout is the timeout for establishing connections.
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty"`
}

// CacheConfig configures the optional lookup cache.
type CacheConfig struct {
	// Type specifies the cache backend: "memory", "redis" or "dynamodb".
	// Empty disables caching.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Endpoints is a list of cache server endpoints.
	Endpoints []string `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`

	// Password is the authentication password for Redis.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// DB is the Redis database number (0-15).
	DB int `yaml:"db,omitempty" json:"db,omitempty"`

	// Namespace is an optional prefix for every cache key.
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`

	// TTL is the time-to-live for cached lookups.
	TTL time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`

	// DynamoDB contains DynamoDB-specific configuration.
	DynamoDB DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
}

// DynamoDBConfig contains DynamoDB-specific cache configuration.
type DynamoDBConfig struct {
	// Region is the AWS region.
	Region string `yaml:"region,omitempty" json:"region,omitempty"`

	// TableName is the cache table name.
	TableName string `yaml:"table_name,omitempty" json:"table_name,omitempty"`

	// Endpoint overrides the service endpoint (e.g. for LocalStack).
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// AccessKeyID is a static credential for local/dev use.
	AccessKeyID string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`

	// SecretAccessKey pairs with AccessKeyID.
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// RecorderConfig configures the buffered execution recorder.
type RecorderConfig struct {
	// QueueType specifies the queue implementation type.
	// Options: "memory", "kafka" (default: "memory").
	QueueType string `yaml:"queue_type,omitempty" json:"queue_type,omitempty"`

	// QueueBufferSize is the buffer size for the in-memory queue.
	QueueBufferSize int `yaml:"queue_buffer_size,omitempty" json:"queue_buffer_size,omitempty"`

	// DrainRate is the maximum number of rows per second written back.
	DrainRate int `yaml:"drain_rate,omitempty" json:"drain_rate,omitempty"`

	// BatchSize is the maximum number of rows dequeued per poll.
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`

	// PollInterval is how long the drainer sleeps when the queue is
	// empty.
	PollInterval time.Duration `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty"`

	// MaxRetries is the number of write attempts per row before it is
	// dropped.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	// Kafka contains Kafka-specific configuration.
	// Only used when QueueType is "kafka".
	Kafka KafkaConfig `yaml:"kafka,omitempty" json:"kafka,omitempty"`
}

// KafkaConfig contains configuration for the Kafka-journaled queue.
type KafkaConfig struct {
	// Brokers is a list of Kafka broker addresses.
	Brokers []string `yaml:"brokers,omitempty" json:"brokers,omitempty"`

	// Topic is the Kafka topic name for execution rows.
	Topic string `yaml:"topic,omitempty" json:"topic,omitempty"`

	// GroupID is the consumer group ID for the drainer.
	GroupID string `yaml:"group_id,omitempty" json:"group_id,omitempty"`

	// BatchTimeout is the producer batching timeout.
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty" json:"batch_timeout,omitempty"`

	// MinBytes is the minimum number of bytes to fetch.
	MinBytes int `yaml:"min_bytes,omitempty" json:"min_bytes,omitempty"`

	// MaxBytes is the maximum number of bytes to fetch.
	MaxBytes int `yaml:"max_bytes,omitempty" json:"max_bytes,omitempty"`

	// MaxWait is the maximum time the reader waits for data.
	MaxWait time.Duration `yaml:"max_wait,omitempty" json:"max_wait,omitempty"`
}

// MigrationsConfig carries extra migration script locations.
type MigrationsConfig struct {
	// Locations are applied after the variant's own locations, in order.
	Locations []string `yaml:"locations,omitempty" json:"locations,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults: a local
// SQLite file, caching disabled, and a memory-queued recorder.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type:            "sqlite",
			Path:            "resultdb.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
			ConnectTimeout:  10 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Recorder: RecorderConfig{
			QueueType:       "memory",
			QueueBufferSize: 4096,
			DrainRate:       100,
			BatchSize:       32,
			PollInterval:    100 * time.Millisecond,
			MaxRetries:      3,
			Kafka: KafkaConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "resultdb-executions",
				GroupID:      "resultdb-recorder",
				BatchTimeout: 10 * time.Millisecond,
				MinBytes:     1,
				MaxBytes:     10 * 1024 * 1024,
				MaxWait:      100 * time.Millisecond,
			},
		},
	}
}

// LoadConfigFile loads configuration from a YAML or JSON file over the
// defaults. The format is determined by the file extension (.yaml, .yml,
// or .json).
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}

	return cfg, nil
}

// ApplyEnv overrides configuration fields from environment variables.
// Variables follow the pattern RESULTDB_<SECTION>_<KEY>, for example:
//
//	RESULTDB_DATABASE_TYPE=postgres
//	RESULTDB_DATABASE_HOST=db.internal
//	RESULTDB_CACHE_ENDPOINTS=localhost:6379,localhost:6380
//	RESULTDB_MIGRATIONS_LOCATIONS=filesystem:/srv/migrations
func (c *Config) ApplyEnv() error {
	if val := os.Getenv("RESULTDB_DATABASE_TYPE"); val != "" {
		c.Database.Type = val
	}
	if val := os.Getenv("RESULTDB_DATABASE_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("RESULTDB_DATABASE_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid RESULTDB_DATABASE_PORT: %w", err)
		}
		c.Database.Port = port
	}
	if val := os.Getenv("RESULTDB_DATABASE_DATABASE"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("RESULTDB_DATABASE_USERNAME"); val != "" {
		c.Database.Username = val
	}
	if val := os.Getenv("RESULTDB_DATABASE_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("RESULTDB_DATABASE_PATH"); val != "" {
		c.Database.Path = val
	}
	if val := os.Getenv("RESULTDB_CACHE_TYPE"); val != "" {
		c.Cache.Type = val
	}
	if val := os.Getenv("RESULTDB_CACHE_ENDPOINTS"); val != "" {
		c.Cache.Endpoints = strings.Split(val, ",")
	}
	if val := os.Getenv("RESULTDB_CACHE_NAMESPACE"); val != "" {
		c.Cache.Namespace = val
	}
	if val := os.Getenv("RESULTDB_CACHE_TTL"); val != "" {
		ttl, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid RESULTDB_CACHE_TTL: %w", err)
		}
		c.Cache.TTL = ttl
	}
	if val := os.Getenv("RESULTDB_RECORDER_QUEUE_TYPE"); val != "" {
		c.Recorder.QueueType = val
	}
	if val := os.Getenv("RESULTDB_RECORDER_DRAIN_RATE"); val != "" {
		rate, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid RESULTDB_RECORDER_DRAIN_RATE: %w", err)
		}
		c.Recorder.DrainRate = rate
	}
	if val := os.Getenv("RESULTDB_MIGRATIONS_LOCATIONS"); val != "" {
		c.Migrations.Locations = strings.Split(val, ",")
	}
	return nil
}

// Validate checks the configuration for structural problems. Engine and
// cache factories validate their own backend-specific fields at create
// time.
func (c *Config) Validate() error {
	if c.Database.Type == "" {
		return fmt.Errorf("database type is required")
	}
	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	default:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required for %s", c.Database.Type)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required for %s", c.Database.Type)
		}
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("max_open_conns must be non-negative, got: %d", c.Database.MaxOpenConns)
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("max_idle_conns must be non-negative, got: %d", c.Database.MaxIdleConns)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must be non-negative, got: %v", c.Cache.TTL)
	}
	if c.Recorder.DrainRate < 0 {
		return fmt.Errorf("drain_rate must be non-negative, got: %d", c.Recorder.DrainRate)
	}
	if c.Recorder.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got: %d", c.Recorder.MaxRetries)
	}
	return nil
}

// engineConfig converts the database section to the engine layer's form.
func (d DatabaseConfig) engineConfig() core.EngineConfig {
	return core.EngineConfig{
		Type:            d.Type,
		Host:            d.Host,
		Port:            d.Port,
		Database:        d.Database,
		Username:        d.Username,
		Password:        d.Password,
		Path:            d.Path,
		Params:          d.Params,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
		ConnectTimeout:  d.ConnectTimeout,
	}
}

// cacheConfig converts the cache section to the cache layer's form.
func (c CacheConfig) cacheConfig() core.CacheConfig {
	return core.CacheConfig{
		Type:      c.Type,
		Endpoints: c.Endpoints,
		Password:  c.Password,
		DB:        c.DB,
		Namespace: c.Namespace,
		TTL:       c.TTL,
		DynamoDB: core.DynamoDBConfig{
			Region:          c.DynamoDB.Region,
			TableName:       c.DynamoDB.TableName,
			Endpoint:        c.DynamoDB.Endpoint,
			AccessKeyID:     c.DynamoDB.AccessKeyID,
			SecretAccessKey: c.DynamoDB.SecretAccessKey,
		},
	}
}
