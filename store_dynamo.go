package tablecache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI captures the subset of DynamoDB client methods used by the store.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

const (
	defaultDynamoTable           = "tablecache"
	dynamoEnsureTableMaxAttempts = 20
	dynamoEnsureTableRetryDelay  = 150 * time.Millisecond
)

// DynamoConnector serves a DynamoDB-backed row store. All cache tables share
// one physical DynamoDB table; the partition key combines the resolved cache
// table name with the canonical record key.
type DynamoConnector struct {
	// Client is used as-is when set; otherwise a client is built from Region
	// and Endpoint (endpoint override supports local stacks).
	Client   DynamoAPI
	Table    string
	Region   string
	Endpoint string
}

func (c DynamoConnector) Connect(ctx context.Context) (Store, error) {
	client := c.Client
	if client == nil {
		built, err := newDynamoClient(ctx, c.Region, c.Endpoint)
		if err != nil {
			return nil, err
		}
		client = built
	}
	table := c.Table
	if table == "" {
		table = defaultDynamoTable
	}
	if err := ensureDynamoTable(ctx, client, table); err != nil {
		return nil, err
	}
	return &dynamoStore{client: client, table: table}, nil
}

func newDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")),
	)
	if err != nil {
		return nil, err
	}
	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: endpoint, HostnameImmutable: true}, nil
		})
		awsCfg.EndpointResolverWithOptions = resolver
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

func ensureDynamoTable(ctx context.Context, client DynamoAPI, table string) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return err
	}
	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("k"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("k"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return err
		}
	}
	for attempt := 0; attempt < dynamoEnsureTableMaxAttempts; attempt++ {
		out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
		if err == nil && out.Table != nil && out.Table.TableStatus == types.TableStatusActive {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dynamoEnsureTableRetryDelay):
		}
	}
	return errors.New("dynamodb table did not become active")
}

type dynamoStore struct {
	client DynamoAPI
	table  string
}

func (s *dynamoStore) Backend() Backend { return BackendDynamo }

func (s *dynamoStore) Ready(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	return err
}

func (s *dynamoStore) Close() error { return nil }

func (s *dynamoStore) storageKey(table, canonical string) string {
	return table + "#" + canonical
}

func (s *dynamoStore) group(ctx context.Context, table, canonical string) (rowGroup, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"k": &types.AttributeValueMemberS{Value: s.storageKey(table, canonical)},
		},
	})
	if err != nil {
		return rowGroup{}, false, err
	}
	if out.Item == nil {
		return rowGroup{}, false, nil
	}
	body, ok := out.Item["g"].(*types.AttributeValueMemberB)
	if !ok {
		return rowGroup{}, false, errors.New("dynamodb item missing binary row group")
	}
	var g rowGroup
	if err := json.Unmarshal(body.Value, &g); err != nil {
		return rowGroup{}, false, err
	}
	return g, true, nil
}

func (s *dynamoStore) Existing(ctx context.Context, table, _ string, keys []Value) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		c := k.canonical()
		_, ok, err := s.group(ctx, table, c)
		if err != nil {
			return nil, err
		}
		if ok {
			existing[c] = struct{}{}
		}
	}
	return existing, nil
}

func (s *dynamoStore) Read(ctx context.Context, table, _ string, keys []Value) (Result, error) {
	var docs []rowDoc
	for _, k := range keys {
		g, ok, err := s.group(ctx, table, k.canonical())
		if err != nil {
			return Result{}, err
		}
		if !ok {
			continue
		}
		decoded, err := g.decode()
		if err != nil {
			return Result{}, err
		}
		docs = append(docs, decoded...)
	}
	return resultFromDocs(docs), nil
}

func (s *dynamoStore) Write(ctx context.Context, table, keyColumn string, rows Result) error {
	if rows.Empty() {
		return nil
	}
	groups, err := groupByKey(rows, keyColumn)
	if err != nil {
		return err
	}
	for canonical, docs := range groups {
		g, _, err := s.group(ctx, table, canonical)
		if err != nil {
			return err
		}
		g.appendDocs(docs)
		body, err := json.Marshal(g)
		if err != nil {
			return err
		}
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.table),
			Item: map[string]types.AttributeValue{
				"k": &types.AttributeValueMemberS{Value: s.storageKey(table, canonical)},
				"g": &types.AttributeValueMemberB{Value: body},
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
