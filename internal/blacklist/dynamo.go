package blacklist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"mailroom/internal/types"
)

// DefaultTableName is the DynamoDB table holding blacklist entries.
const DefaultTableName = "Notification.BlackList"

// DynamoDBAPI defines the subset of the DynamoDB client used by DynamoStore.
// Extracted for testability — tests can provide a mock implementation.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// dynamoItem is the stored representation of an Entry. PK duplicates the
// lowercase email so the table key stays derivable from the item itself.
type dynamoItem struct {
	PK    string `dynamodbav:"PK"`
	Email string `dynamodbav:"Email"`
	Date  int64  `dynamodbav:"Date"`
}

// DynamoStoreConfig holds the configuration for creating a DynamoStore.
type DynamoStoreConfig struct {
	// TableName overrides the blacklist table name. Optional; defaults to
	// DefaultTableName.
	TableName string
	// Logger for store operations.
	Logger *slog.Logger
}

// DynamoStore implements Store using a DynamoDB table keyed by the lowercase
// email address. PutItem overwrite semantics make Create idempotent.
type DynamoStore struct {
	api       DynamoDBAPI
	tableName string
	logger    *slog.Logger
}

// NewDynamoStore creates a DynamoStore from an AWS config.
func NewDynamoStore(awsCfg aws.Config, cfg DynamoStoreConfig) *DynamoStore {
	return newDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg)
}

// NewDynamoStoreWithAPI creates a DynamoStore with a pre-configured
// DynamoDBAPI. Useful for testing with a mock interface.
func NewDynamoStoreWithAPI(api DynamoDBAPI, cfg DynamoStoreConfig) *DynamoStore {
	return newDynamoStore(api, cfg)
}

func newDynamoStore(api DynamoDBAPI, cfg DynamoStoreConfig) *DynamoStore {
	tableName := cfg.TableName
	if tableName == "" {
		tableName = DefaultTableName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DynamoStore{
		api:       api,
		tableName: tableName,
		logger:    logger,
	}
}

// Create inserts or overwrites the entry. Re-adding an already-present
// address overwrites the timestamp; no uniqueness violation is surfaced.
func (s *DynamoStore) Create(ctx context.Context, entry Entry) error {
	item, err := attributevalue.MarshalMap(dynamoItem{
		PK:    entry.Key(),
		Email: entry.Email,
		Date:  entry.Date,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeStoreUnavailable, "failed to marshal blacklist entry", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to write blacklist entry to %s", s.tableName), err)
	}

	return nil
}

// Read returns the entry keyed by the lowercase email, or (nil, nil) when the
// address is not present.
func (s *DynamoStore) Read(ctx context.Context, email string) (*Entry, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: email},
		},
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to read blacklist entry from %s", s.tableName), err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, types.NewAppError(types.ErrCodeStoreUnavailable, "failed to unmarshal blacklist entry", err)
	}

	return &Entry{Email: item.Email, Date: item.Date}, nil
}

// Delete removes the entry and reports whether it existed.
func (s *DynamoStore) Delete(ctx context.Context, email string) (bool, error) {
	out, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: email},
		},
		ReturnValues: ddbtypes.ReturnValueAllOld,
	})
	if err != nil {
		return false, types.NewAppError(types.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to delete blacklist entry from %s", s.tableName), err)
	}

	return len(out.Attributes) > 0, nil
}

// Ping verifies the table is reachable and described without error.
func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return fmt.Errorf("blacklist table %s unreachable: %w", s.tableName, err)
	}
	return nil
}

// Compile-time assertion that DynamoStore satisfies Store.
var _ Store = (*DynamoStore)(nil)
