package tablecache

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynStub is an in-memory DynamoAPI used for unit tests. Tables spring into
// existence through CreateTable, mirroring the on-demand provisioning path.
type dynStub struct {
	items  map[string]map[string]types.AttributeValue
	tables map[string]bool

	getErr error
	putErr error
}

func newDynStub() *dynStub {
	return &dynStub{
		items:  map[string]map[string]types.AttributeValue{},
		tables: map[string]bool{},
	}
}

func (d *dynStub) itemKey(in map[string]types.AttributeValue) string {
	pk, _ := in["k"].(*types.AttributeValueMemberS)
	if pk == nil {
		return ""
	}
	return pk.Value
}

func (d *dynStub) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if d.getErr != nil {
		return nil, d.getErr
	}
	item, ok := d.items[d.itemKey(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (d *dynStub) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if d.putErr != nil {
		return nil, d.putErr
	}
	d.items[d.itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (d *dynStub) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	d.tables[aws.ToString(in.TableName)] = true
	return &dynamodb.CreateTableOutput{}, nil
}

func (d *dynStub) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if !d.tables[aws.ToString(in.TableName)] {
		return nil, &types.ResourceNotFoundException{}
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{TableStatus: types.TableStatusActive},
	}, nil
}

func newDynamoTestStore(t *testing.T) (Store, *dynStub) {
	t.Helper()
	stub := newDynStub()
	store, err := DynamoConnector{Client: stub}.Connect(context.Background())
	if err != nil {
		t.Fatalf("dynamo store create failed: %v", err)
	}
	return store, stub
}

func TestDynamoConnectorProvisionsTable(t *testing.T) {
	store, stub := newDynamoTestStore(t)
	if !stub.tables[defaultDynamoTable] {
		t.Fatalf("physical table was not created: %v", stub.tables)
	}
	if store.Backend() != BackendDynamo {
		t.Fatalf("backend = %s", store.Backend())
	}
	if err := store.Ready(context.Background()); err != nil {
		t.Fatalf("ready on a provisioned table failed: %v", err)
	}
}

func TestDynamoConnectorCustomTableName(t *testing.T) {
	stub := newDynStub()
	stub.tables["quotes"] = true
	if _, err := (DynamoConnector{Client: stub, Table: "quotes"}).Connect(context.Background()); err != nil {
		t.Fatalf("connect to an existing table failed: %v", err)
	}
	if stub.tables[defaultDynamoTable] {
		t.Fatalf("default table must not be created when a name is given")
	}
}

func TestDynamoStoreRoundTrip(t *testing.T) {
	store, stub := newDynamoTestStore(t)
	ctx := context.Background()

	rows := NewResult([]string{"id", "v"},
		[]any{int64(1), "a"},
		[]any{int64(2), "b"},
	)
	if err := store.Write(ctx, "fx_30", "id", rows); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, ok := stub.items["fx_30#i:1"]; !ok {
		t.Fatalf("item keys = %v", stub.items)
	}

	existing, err := store.Existing(ctx, "fx_30", "id", keyList(1, 2, 3))
	if err != nil {
		t.Fatalf("existing failed: %v", err)
	}
	if len(existing) != 2 {
		t.Fatalf("existing = %v", existing)
	}

	got, err := store.Read(ctx, "fx_30", "id", keyList(2))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Len() != 1 || got.Rows[0][0] != int64(2) || got.Rows[0][1] != "b" {
		t.Fatalf("rows = %+v", got.Rows)
	}
}

func TestDynamoStoreLogicalTablesIsolated(t *testing.T) {
	store, _ := newDynamoTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "fx_30", "id", NewResult([]string{"id"}, []any{int64(1)})); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	existing, err := store.Existing(ctx, "fx_60", "id", keyList(1))
	if err != nil || len(existing) != 0 {
		t.Fatalf("logical tables must not share rows: %v, err = %v", existing, err)
	}
}

func TestDynamoStoreAppendGrowsGroup(t *testing.T) {
	store, _ := newDynamoTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "t", "id", NewResult([]string{"id", "v"}, []any{int64(1), "a"})); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := store.Write(ctx, "t", "id", NewResult([]string{"id", "v"}, []any{int64(1), "b"})); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	got, err := store.Read(ctx, "t", "id", keyList(1))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("rows = %+v", got.Rows)
	}
}

func TestDynamoStoreErrorPaths(t *testing.T) {
	store, stub := newDynamoTestStore(t)
	ctx := context.Background()

	stub.getErr = errors.New("boom")
	if _, err := store.Existing(ctx, "t", "id", keyList(1)); err == nil {
		t.Fatalf("existing must surface client errors")
	}
	if _, err := store.Read(ctx, "t", "id", keyList(1)); err == nil {
		t.Fatalf("read must surface client errors")
	}
	stub.getErr = nil

	stub.putErr = errors.New("boom")
	if err := store.Write(ctx, "t", "id", NewResult([]string{"id"}, []any{int64(1)})); err == nil {
		t.Fatalf("write must surface client errors")
	}
}
