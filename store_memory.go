package tablecache

import (
	"context"
	"fmt"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryConnector serves an in-process store, mainly for tests and local
// development. The store survives connection rebuilds: Connect hands out the
// same instance every time, so cached rows are not lost when the liveness
// cycle replaces the handle.
type MemoryConnector struct {
	mu    sync.Mutex
	store Store
}

func (c *MemoryConnector) Connect(context.Context) (Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = newMemoryStore()
	}
	return c.store, nil
}

type memoryStore struct {
	mu     sync.Mutex
	tables *gocache.Cache
}

type memTable struct {
	mu      sync.Mutex
	columns []string
	groups  map[string][][]any
}

func newMemoryStore() Store {
	// Cached records never expire (explicit force is the only refresh), so
	// the table cache runs without eviction.
	return &memoryStore{tables: gocache.New(gocache.NoExpiration, 0)}
}

func (s *memoryStore) Backend() Backend { return BackendMemory }

func (s *memoryStore) Ready(context.Context) error { return nil }

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) lookup(table string) (*memTable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.tables.Get(table)
	if !ok {
		return nil, false
	}
	return item.(*memTable), true
}

func (s *memoryStore) lookupOrCreate(table string, columns []string) *memTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.tables.Get(table); ok {
		return item.(*memTable)
	}
	fixed := make([]string, len(columns))
	copy(fixed, columns)
	mt := &memTable{columns: fixed, groups: make(map[string][][]any)}
	s.tables.Set(table, mt, gocache.NoExpiration)
	return mt
}

func (s *memoryStore) Existing(_ context.Context, table, _ string, keys []Value) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(keys))
	mt, ok := s.lookup(table)
	if !ok {
		return existing, nil
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	for _, k := range keys {
		c := k.canonical()
		if _, ok := mt.groups[c]; ok {
			existing[c] = struct{}{}
		}
	}
	return existing, nil
}

func (s *memoryStore) Read(_ context.Context, table, _ string, keys []Value) (Result, error) {
	mt, ok := s.lookup(table)
	if !ok || len(keys) == 0 {
		return Result{}, nil
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	out := Result{Columns: append([]string(nil), mt.columns...)}
	for _, k := range keys {
		for _, row := range mt.groups[k.canonical()] {
			out.Rows = append(out.Rows, append([]any(nil), row...))
		}
	}
	if len(out.Rows) == 0 {
		return Result{}, nil
	}
	return out, nil
}

func (s *memoryStore) Write(_ context.Context, table, keyColumn string, rows Result) error {
	if rows.Empty() {
		return nil
	}
	keyIdx := rows.ColumnIndex(keyColumn)
	if keyIdx < 0 {
		return fmt.Errorf("rows missing key column %q", keyColumn)
	}
	mt := s.lookupOrCreate(table, rows.Columns)
	mt.mu.Lock()
	defer mt.mu.Unlock()

	// Column set is fixed by the first write, matching the SQL backend.
	colIdx := make([]int, len(rows.Columns))
	for i, c := range rows.Columns {
		colIdx[i] = -1
		for j, fixed := range mt.columns {
			if fixed == c {
				colIdx[i] = j
				break
			}
		}
		if colIdx[i] < 0 {
			return fmt.Errorf("column %q not in table %s", c, table)
		}
	}
	for i := range rows.Rows {
		key, ok := rows.keyAt(i, keyIdx)
		if !ok {
			continue
		}
		aligned := make([]any, len(mt.columns))
		for j, idx := range colIdx {
			aligned[idx] = rows.Rows[i][j]
		}
		c := key.canonical()
		mt.groups[c] = append(mt.groups[c], aligned)
	}
	return nil
}
