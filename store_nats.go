package tablecache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"
)

// NATSKeyValue captures the subset of nats.KeyValue used by the store.
type NATSKeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
}

// NATSConnector serves a JetStream KV-backed row store: one entry per
// (table, key) holding the key's whole row group as JSON.
type NATSConnector struct {
	KV NATSKeyValue
}

func (c NATSConnector) Connect(context.Context) (Store, error) {
	if c.KV == nil {
		return nil, errors.New("nats connector requires a key-value bucket")
	}
	return &natsStore{kv: c.KV}, nil
}

type natsStore struct {
	kv NATSKeyValue
}

func (s *natsStore) Backend() Backend { return BackendNATS }

func (s *natsStore) Ready(context.Context) error { return nil }

func (s *natsStore) Close() error { return nil }

// storageKey keeps entries inside the NATS key alphabet; canonical key
// strings may hold arbitrary bytes, so they travel base64-encoded.
func (s *natsStore) storageKey(table, canonical string) string {
	return table + "." + base64.RawURLEncoding.EncodeToString([]byte(canonical))
}

func (s *natsStore) group(table, canonical string) (rowGroup, bool, error) {
	entry, err := s.kv.Get(s.storageKey(table, canonical))
	if isNATSMiss(err) {
		return rowGroup{}, false, nil
	}
	if err != nil {
		return rowGroup{}, false, err
	}
	if entry.Operation() == nats.KeyValueDelete || entry.Operation() == nats.KeyValuePurge {
		return rowGroup{}, false, nil
	}
	var g rowGroup
	if err := json.Unmarshal(entry.Value(), &g); err != nil {
		return rowGroup{}, false, err
	}
	return g, true, nil
}

func (s *natsStore) Existing(_ context.Context, table, _ string, keys []Value) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		c := k.canonical()
		_, ok, err := s.group(table, c)
		if err != nil {
			return nil, err
		}
		if ok {
			existing[c] = struct{}{}
		}
	}
	return existing, nil
}

func (s *natsStore) Read(_ context.Context, table, _ string, keys []Value) (Result, error) {
	var docs []rowDoc
	for _, k := range keys {
		g, ok, err := s.group(table, k.canonical())
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

func (s *natsStore) Write(_ context.Context, table, keyColumn string, rows Result) error {
	if rows.Empty() {
		return nil
	}
	groups, err := groupByKey(rows, keyColumn)
	if err != nil {
		return err
	}
	for canonical, docs := range groups {
		g, _, err := s.group(table, canonical)
		if err != nil {
			return err
		}
		g.appendDocs(docs)
		body, err := json.Marshal(g)
		if err != nil {
			return err
		}
		if _, err := s.kv.Put(s.storageKey(table, canonical), body); err != nil {
			return err
		}
	}
	return nil
}

func isNATSMiss(err error) bool {
	return errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
}
