package rowcache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/perfline/resultdb/internal/core"
)

// DynamoDB attribute names. The table's partition key must be cache_key.
const (
	dynamoKeyAttr     = "cache_key"
	dynamoPayloadAttr = "payload"
	dynamoExpiresAttr = "expires_at"
	dynamoCreatedAttr = "created_at"
)

// DynamoCache implements core.Cache using an AWS DynamoDB table. Expiry
// relies on the table's TTL setting for reclamation, with a read-side
// deadline check so stale items are never served in the window before
// DynamoDB sweeps them.
type DynamoCache struct {
	client    *dynamodb.Client
	tableName string
	closed    bool
}

// NewDynamoCache creates a DynamoDB-backed cache and verifies the table
// exists before returning.
func NewDynamoCache(cfg core.DynamoDBConfig) (*DynamoCache, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	clientOptions := []func(*dynamodb.Options){}
	if cfg.Endpoint != "" {
		// Custom endpoint for local stacks.
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	client := dynamodb.NewFromConfig(awsCfg, clientOptions...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(cfg.TableName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", cfg.TableName, err)
	}

	log.Printf("[DYNAMODB] connected to table %s in %s", cfg.TableName, cfg.Region)
	return &DynamoCache{client: client, tableName: cfg.TableName}, nil
}

// Get retrieves the value stored under key, or core.ErrCacheMiss when the
// item is absent or past its deadline.
func (d *DynamoCache) Get(ctx context.Context, key string) ([]byte, error) {
	if d.closed {
		return nil, fmt.Errorf("cache is closed")
	}

	input := &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			dynamoKeyAttr: &types.AttributeValueMemberS{Value: key},
		},
	}
	result, err := d.client.GetItem(ctx, input)
	if err != nil {
		log.Printf("[DYNAMODB] ERROR: failed to get key %s: %v", key, err)
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if result.Item == nil {
		return nil, core.ErrCacheMiss
	}

	if expired(result.Item) {
		return nil, core.ErrCacheMiss
	}

	payload, ok := result.Item[dynamoPayloadAttr].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("invalid payload format for key %s", key)
	}
	return payload.Value, nil
}

// Set stores value under key. A positive ttl is written as an epoch-second
// deadline in the expires_at attribute.
func (d *DynamoCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if d.closed {
		return fmt.Errorf("cache is closed")
	}

	item := map[string]types.AttributeValue{
		dynamoKeyAttr:     &types.AttributeValueMemberS{Value: key},
		dynamoPayloadAttr: &types.AttributeValueMemberB{Value: value},
		dynamoCreatedAttr: &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
	}
	if ttl > 0 {
		deadline := time.Now().Add(ttl).Unix()
		item[dynamoExpiresAttr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(deadline, 10)}
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	}
	if _, err := d.client.PutItem(ctx, input); err != nil {
		log.Printf("[DYNAMODB] ERROR: failed to set key %s: %v", key, err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes key from the cache.
func (d *DynamoCache) Delete(ctx context.Context, key string) error {
	if d.closed {
		return fmt.Errorf("cache is closed")
	}

	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			dynamoKeyAttr: &types.AttributeValueMemberS{Value: key},
		},
	}
	if _, err := d.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close marks the cache closed. The DynamoDB client holds no connection
// state that needs explicit release.
func (d *DynamoCache) Close() error {
	d.closed = true
	return nil
}

// expired reports whether an item carries an expires_at deadline in the
// past.
func expired(item map[string]types.AttributeValue) bool {
	attr, ok := item[dynamoExpiresAttr]
	if !ok {
		return false
	}
	member, ok := attr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	deadline, err := strconv.ParseInt(member.Value, 10, 64)
	if err != nil {
		return false
	}
	return time.Now().Unix() > deadline
}

// dynamoFactory implements the Factory interface for DynamoDB.
type dynamoFactory struct{}

// Type returns the type identifier for this factory.
func (f *dynamoFactory) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration.
func (f *dynamoFactory) Validate(cfg core.CacheConfig) error {
	if cfg.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB factory: %s", cfg.Type)
	}
	if cfg.DynamoDB.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if cfg.DynamoDB.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	return nil
}

// Create creates a new DynamoDB cache instance from the configuration.
func (f *dynamoFactory) Create(cfg core.CacheConfig) (core.Cache, error) {
	cache, err := NewDynamoCache(cfg.DynamoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB cache: %w", err)
	}
	return cache, nil
}

func init() {
	Register(&dynamoFactory{})
}
