package tablecache

import "context"

// Backend identifies a row store implementation.
type Backend string

const (
	BackendSQL    Backend = "sql"
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
	BackendNATS   Backend = "nats"
	BackendDynamo Backend = "dynamodb"
)

// Store is the row store contract. Every implementation tolerates a missing
// table as an empty read/probe and creates the table on first write.
type Store interface {
	Backend() Backend

	// Ready is the per-call liveness check. A non-nil error makes the cached
	// delegate rebuild the connection from its connector.
	Ready(ctx context.Context) error

	// Existing reports which of the given key values already have rows in
	// table, as a set of canonical key strings.
	Existing(ctx context.Context, table, keyColumn string, keys []Value) (map[string]struct{}, error)

	// Read fetches all rows of table whose key column matches one of keys.
	// Row order is unspecified.
	Read(ctx context.Context, table, keyColumn string, keys []Value) (Result, error)

	// Write appends rows to table, creating it if absent. The column set of
	// a table is fixed by its first write.
	Write(ctx context.Context, table, keyColumn string, rows Result) error

	Close() error
}

// Connector is the connection descriptor: it knows how to build a live Store.
// A cached delegate holds one Store at a time and calls Connect again
// whenever the liveness check fails.
type Connector interface {
	Connect(ctx context.Context) (Store, error)
}
