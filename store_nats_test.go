package tablecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

// stubKVEntry implements nats.KeyValueEntry for the in-memory bucket below.
type stubKVEntry struct {
	key   string
	value []byte
	op    nats.KeyValueOp
}

func (e stubKVEntry) Bucket() string             { return "tablecache" }
func (e stubKVEntry) Key() string                { return e.key }
func (e stubKVEntry) Value() []byte              { return e.value }
func (e stubKVEntry) Revision() uint64           { return 1 }
func (e stubKVEntry) Created() time.Time         { return time.Time{} }
func (e stubKVEntry) Delta() uint64              { return 0 }
func (e stubKVEntry) Operation() nats.KeyValueOp { return e.op }

// stubKeyValue is an in-memory NATSKeyValue used for unit tests.
type stubKeyValue struct {
	entries map[string]stubKVEntry

	getErr error
	putErr error
}

func newStubKeyValue() *stubKeyValue {
	return &stubKeyValue{entries: make(map[string]stubKVEntry)}
}

func (kv *stubKeyValue) Get(key string) (nats.KeyValueEntry, error) {
	if kv.getErr != nil {
		return nil, kv.getErr
	}
	entry, ok := kv.entries[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	return entry, nil
}

func (kv *stubKeyValue) Put(key string, value []byte) (uint64, error) {
	if kv.putErr != nil {
		return 0, kv.putErr
	}
	kv.entries[key] = stubKVEntry{key: key, value: value, op: nats.KeyValuePut}
	return 1, nil
}

func newNATSTestStore(t *testing.T) (Store, *stubKeyValue) {
	t.Helper()
	kv := newStubKeyValue()
	store, err := NATSConnector{KV: kv}.Connect(context.Background())
	if err != nil {
		t.Fatalf("nats store create failed: %v", err)
	}
	return store, kv
}

func TestNATSStoreRoundTrip(t *testing.T) {
	store, _ := newNATSTestStore(t)
	ctx := context.Background()

	rows := NewResult([]string{"id", "v"},
		[]any{int64(1), "a"},
		[]any{int64(2), "b"},
	)
	if err := store.Write(ctx, "fx_30", "id", rows); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	existing, err := store.Existing(ctx, "fx_30", "id", keyList(1, 2, 3))
	if err != nil {
		t.Fatalf("existing failed: %v", err)
	}
	if len(existing) != 2 {
		t.Fatalf("existing = %v", existing)
	}

	got, err := store.Read(ctx, "fx_30", "id", keyList(1))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Len() != 1 || got.Rows[0][0] != int64(1) || got.Rows[0][1] != "a" {
		t.Fatalf("rows = %+v", got.Rows)
	}
}

func TestNATSStoreAppendGrowsGroup(t *testing.T) {
	store, _ := newNATSTestStore(t)
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

func TestNATSStoreTextKeysTravelEncoded(t *testing.T) {
	store, kv := newNATSTestStore(t)
	ctx := context.Background()

	// "a b" is outside the NATS key alphabet: the storage key must not carry
	// it raw.
	if err := store.Write(ctx, "t", "name", NewResult([]string{"name"}, []any{"a b"})); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	for key := range kv.entries {
		for _, r := range key {
			if r == ' ' {
				t.Fatalf("raw space in storage key %q", key)
			}
		}
	}
	existing, err := store.Existing(ctx, "t", "name", []Value{Text("a b")})
	if err != nil || len(existing) != 1 {
		t.Fatalf("existing = %v, err = %v", existing, err)
	}
}

func TestNATSStoreDeletedEntryIsMiss(t *testing.T) {
	store, kv := newNATSTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "t", "id", NewResult([]string{"id"}, []any{int64(1)})); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	for key, entry := range kv.entries {
		entry.op = nats.KeyValueDelete
		kv.entries[key] = entry
	}
	existing, err := store.Existing(ctx, "t", "id", keyList(1))
	if err != nil || len(existing) != 0 {
		t.Fatalf("a delete marker must read as a miss: %v, err = %v", existing, err)
	}
}

func TestNATSStoreErrorPaths(t *testing.T) {
	store, kv := newNATSTestStore(t)
	ctx := context.Background()

	kv.getErr = errors.New("boom")
	if _, err := store.Existing(ctx, "t", "id", keyList(1)); err == nil {
		t.Fatalf("existing must surface bucket errors")
	}
	if _, err := store.Read(ctx, "t", "id", keyList(1)); err == nil {
		t.Fatalf("read must surface bucket errors")
	}
	kv.getErr = nil

	kv.putErr = errors.New("boom")
	if err := store.Write(ctx, "t", "id", NewResult([]string{"id"}, []any{int64(1)})); err == nil {
		t.Fatalf("write must surface bucket errors")
	}
}

func TestNATSConnectorRequiresBucket(t *testing.T) {
	if _, err := (NATSConnector{}).Connect(context.Background()); err == nil {
		t.Fatalf("connect without a bucket must fail")
	}
}
