package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pfrederiksen/mothership-events/internal/event"
)

const (
	// hashKey is the table's partition key
	hashKey = "Hash"
	// maxBatchWrite is the BatchWriteItem request limit
	maxBatchWrite = 25
	// unprocessedAttempts bounds resubmission of items DynamoDB hands back
	unprocessedAttempts = 5
)

// DynamoAPI is the subset of the DynamoDB client the store uses
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoConfig holds configuration for DynamoStore.
type DynamoConfig struct {
	Table    string
	Region   string
	Endpoint string // Optional custom endpoint (DynamoDB Local, LocalStack)
	Batch    bool   // Buffer puts and write them with BatchWriteItem on Flush
}

// DynamoStore implements Store on a DynamoDB table keyed by Hash
type DynamoStore struct {
	client  DynamoAPI
	table   string
	batch   bool
	now     func() time.Time
	backoff time.Duration

	pending []types.WriteRequest
	queued  map[string]bool
}

// NewDynamoStore creates a DynamoDB-backed dedup store.
func NewDynamoStore(ctx context.Context, cfg DynamoConfig) (*DynamoStore, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("table name is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewDynamoStoreWithClient(client, cfg.Table, cfg.Batch), nil
}

// NewDynamoStoreWithClient wraps an existing client
func NewDynamoStoreWithClient(client DynamoAPI, table string, batch bool) *DynamoStore {
	return &DynamoStore{
		client:  client,
		table:   table,
		batch:   batch,
		now:     time.Now,
		backoff: 100 * time.Millisecond,
		queued:  make(map[string]bool),
	}
}

func (s *DynamoStore) key(hash string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		hashKey: &types.AttributeValueMemberS{Value: hash},
	}
}

func (s *DynamoStore) Exists(ctx context.Context, hash string) (bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(s.table),
		Key:                      s.key(hash),
		ConsistentRead:           aws.Bool(true),
		ProjectionExpression:     aws.String("#h"),
		ExpressionAttributeNames: map[string]string{"#h": hashKey},
	})
	if err != nil {
		return false, classifyDynamo("get item", err)
	}
	return len(out.Item) > 0, nil
}

func (s *DynamoStore) Put(ctx context.Context, hash string, evt event.Event) error {
	item, err := attributevalue.MarshalMap(NewItem(hash, evt, s.now()))
	if err != nil {
		return fmt.Errorf("encoding item: %w", err)
	}

	if !s.batch {
		if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.table),
			Item:      item,
		}); err != nil {
			return classifyDynamo("put item", err)
		}
		return nil
	}

	// A batch may not name the same key twice
	if s.queued[hash] {
		return nil
	}
	s.queued[hash] = true
	s.pending = append(s.pending, types.WriteRequest{
		PutRequest: &types.PutRequest{Item: item},
	})

	if len(s.pending) >= maxBatchWrite {
		return s.Flush(ctx)
	}
	return nil
}

// Flush writes buffered puts in chunks of 25
func (s *DynamoStore) Flush(ctx context.Context) error {
	for len(s.pending) > 0 {
		n := min(len(s.pending), maxBatchWrite)
		if err := s.writeChunk(ctx, s.pending[:n]); err != nil {
			return err
		}
		s.pending = s.pending[n:]
	}
	s.pending = nil
	s.queued = make(map[string]bool)
	return nil
}

func (s *DynamoStore) writeChunk(ctx context.Context, requests []types.WriteRequest) error {
	delay := s.backoff
	for attempt := 1; ; attempt++ {
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.table: requests},
		})
		if err != nil {
			return classifyDynamo("batch write", err)
		}

		requests = out.UnprocessedItems[s.table]
		if len(requests) == 0 {
			return nil
		}
		if attempt == unprocessedAttempts {
			return fmt.Errorf("batch write: %d items still unprocessed after %d attempts", len(requests), attempt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// classifyDynamo keeps throttling errors transient; anything else means the
// table cannot be used.
func classifyDynamo(op string, err error) error {
	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
	)
	if errors.As(err, &throughput) || errors.As(err, &limit) || errors.As(err, &internal) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return unavailable(op, err)
}
