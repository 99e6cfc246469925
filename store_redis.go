package tablecache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisClient captures the subset of redis.Client used by the store.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Close() error
}

// RedisConnector serves a Redis-backed row store. Rows live as JSON docs in
// a list per (table, key), so fan-out and appends come for free.
type RedisConnector struct {
	Client RedisClient
}

func (c RedisConnector) Connect(ctx context.Context) (Store, error) {
	if c.Client == nil {
		return nil, errors.New("redis connector requires a client")
	}
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &redisStore{client: c.Client}, nil
}

type redisStore struct {
	client RedisClient
}

func (s *redisStore) Backend() Backend { return BackendRedis }

func (s *redisStore) Ready(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *redisStore) Close() error { return s.client.Close() }

func (s *redisStore) storageKey(table string, v Value) string {
	return table + ":" + v.canonical()
}

func (s *redisStore) Existing(ctx context.Context, table, _ string, keys []Value) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		n, err := s.client.Exists(ctx, s.storageKey(table, k)).Result()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			existing[k.canonical()] = struct{}{}
		}
	}
	return existing, nil
}

func (s *redisStore) Read(ctx context.Context, table, _ string, keys []Value) (Result, error) {
	var docs []rowDoc
	for _, k := range keys {
		entries, err := s.client.LRange(ctx, s.storageKey(table, k), 0, -1).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return Result{}, err
		}
		for _, raw := range entries {
			doc, err := decodeRowDoc([]byte(raw))
			if err != nil {
				return Result{}, err
			}
			docs = append(docs, doc)
		}
	}
	return resultFromDocs(docs), nil
}

func (s *redisStore) Write(ctx context.Context, table, keyColumn string, rows Result) error {
	if rows.Empty() {
		return nil
	}
	groups, err := groupByKey(rows, keyColumn)
	if err != nil {
		return err
	}
	for canonical, docs := range groups {
		values := make([]interface{}, 0, len(docs))
		for _, d := range docs {
			values = append(values, d)
		}
		if err := s.client.RPush(ctx, table+":"+canonical, values...).Err(); err != nil {
			return err
		}
	}
	return nil
}
