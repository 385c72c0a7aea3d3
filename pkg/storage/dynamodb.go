package storage

import (
	"context"
	"log/slog"
	"sort"

	"github.com/DrSkyle/bridgestore/pkg/config"
	"github.com/DrSkyle/bridgestore/pkg/datastore"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Item attribute names.
const (
	dynamoKeyAttr   = "key"
	dynamoValueAttr = "value"
)

// DynamoStore keeps each object as one item: a string partition key and a
// binary payload.
type DynamoStore struct {
	client DynamoAPI
	table  string
	logger *slog.Logger
}

// NewDynamoStore builds the DynamoDB backend. It reports ok == false when
// credentials, region or table name are missing.
func NewDynamoStore(cfg config.AWS, opts ...Option) (*DynamoStore, bool) {
	if !cfg.DynamoDBConfigured() {
		return nil, false
	}
	o := buildOptions(opts)

	client := o.dynamoClient
	if client == nil {
		client = dynamodb.NewFromConfig(NewAWSConfig(cfg, o.verbose, o.logger))
	}

	return &DynamoStore{
		client: client,
		table:  cfg.DynamoDBTable,
		logger: o.logger.With("table", cfg.DynamoDBTable),
	}, true
}

var _ datastore.Backend = (*DynamoStore)(nil)

func (d *DynamoStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, normalizeAWSError(err)
	}
	if len(out.Item) == 0 {
		return nil, datastore.NewError(datastore.KindNotFound, "ItemNotFound", "", nil)
	}

	value, ok := out.Item[dynamoValueAttr].(*types.AttributeValueMemberB)
	if !ok {
		return nil, datastore.NewError(datastore.KindCorrupt, "InvalidItem", "item has no binary value attribute", nil)
	}
	if value.Value == nil {
		return []byte{}, nil
	}
	return value.Value, nil
}

func (d *DynamoStore) Put(ctx context.Context, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item: map[string]types.AttributeValue{
			dynamoKeyAttr:   &types.AttributeValueMemberS{Value: key},
			dynamoValueAttr: &types.AttributeValueMemberB{Value: data},
		},
	})
	if err != nil {
		return normalizeAWSError(err)
	}
	return nil
}

// List scans the table PageSize items at a time, keeping keys that start
// with prefix. Scan order is undefined, so the result is sorted.
func (d *DynamoStore) List(ctx context.Context, prefix string) ([]string, error) {
	input := &dynamodb.ScanInput{
		TableName:                aws.String(d.table),
		Limit:                    aws.Int32(datastore.PageSize),
		ProjectionExpression:     aws.String("#k"),
		ExpressionAttributeNames: map[string]string{"#k": dynamoKeyAttr},
	}
	if prefix != "" {
		input.FilterExpression = aws.String("begins_with(#k, :p)")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: prefix},
		}
	}

	keys := []string{}
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, normalizeAWSError(err)
		}
		for _, item := range page.Items {
			k, ok := item[dynamoKeyAttr].(*types.AttributeValueMemberS)
			if !ok {
				d.logger.Warn("Listing entry has no key, using placeholder", "prefix", prefix, "placeholder", datastore.PlaceholderKey)
				keys = append(keys, datastore.PlaceholderKey)
				continue
			}
			keys = append(keys, k.Value)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoKeyAttr: &types.AttributeValueMemberS{Value: key},
	}
}
