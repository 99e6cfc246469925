package tablecache

import (
	"context"
	"sync"
	"time"
)

// Cached is a delegate wrapped with record-level memoization. Build one with
// New; it is safe for concurrent use. Each instance owns a single store
// connection, rebuilt from the connector whenever the liveness check fails.
type Cached struct {
	delegate    Delegate
	prefix      string
	key         KeySpec
	params      []Param
	salt        []string
	connector   Connector
	force       bool
	writePolicy WritePolicy
	logger      Logger
	observer    Observer

	connMu sync.Mutex
	store  Store

	lockMu     sync.Mutex
	tableLocks map[string]*sync.Mutex
}

// New builds the cached callable. It performs no I/O: the connection is
// established lazily on the first call.
func New(delegate Delegate, opts Options) (*Cached, error) {
	if delegate == nil {
		return nil, configErrorf("delegate is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	params := make([]Param, len(opts.Params))
	copy(params, opts.Params)
	salt := make([]string, len(opts.Salt))
	copy(salt, opts.Salt)
	return &Cached{
		delegate:    delegate,
		prefix:      opts.Prefix,
		key:         opts.Key,
		params:      params,
		salt:        salt,
		connector:   opts.Connector,
		force:       opts.Force,
		writePolicy: opts.WritePolicy,
		logger:      logger,
		observer:    opts.Observer,
		tableLocks:  make(map[string]*sync.Mutex),
	}, nil
}

// Call invokes the cached delegate. Keys already present in the resolved
// table are read from storage, the delegate runs only for unseen keys, fresh
// rows are persisted before returning, and the merged result follows the
// requested key order.
func (c *Cached) Call(ctx context.Context, args Args) (Result, error) {
	start := time.Now()

	desc, err := c.bind(args)
	if err != nil {
		return Result{}, err
	}
	table := resolveTable(c.prefix, desc.salts)

	store, err := c.ensureStore(ctx)
	if err != nil {
		return Result{}, err
	}

	res, hits, misses, err := c.run(ctx, store, table, desc)
	c.observe(ctx, store, table, len(desc.keys), hits, misses, err, start)
	return res, err
}

// run executes partition → read/invoke → write → merge under the per-table
// lock, so concurrent identical calls through this instance invoke the
// delegate at most once per key.
func (c *Cached) run(ctx context.Context, store Store, table string, desc callDescriptor) (Result, int, int, error) {
	unlock := c.lockTable(table)
	defer unlock()

	keyColumn := c.key.column()
	cachedKeys, uncachedKeys, err := partitionKeys(ctx, store, table, keyColumn, desc.keys, c.force)
	if err != nil {
		return Result{}, 0, 0, err
	}
	hits, misses := len(cachedKeys), len(uncachedKeys)
	c.logger.Debug("partitioned keys", Fields{
		"table":    table,
		"cached":   hits,
		"uncached": misses,
	})

	cachedRows := Result{}
	if len(cachedKeys) > 0 {
		cachedRows, err = store.Read(ctx, table, keyColumn, cachedKeys)
		if err != nil {
			return Result{}, hits, misses, &QueryError{Op: "read from", Table: table, Err: err}
		}
	}

	fresh, err := c.invoke(ctx, desc, uncachedKeys)
	if err != nil {
		return Result{}, hits, misses, err
	}

	if !fresh.Empty() {
		if err := store.Write(ctx, table, keyColumn, fresh); err != nil {
			if c.writePolicy == WriteStrict {
				return Result{}, hits, misses, &QueryError{Op: "write to", Table: table, Err: err}
			}
			c.logger.Warn("returning uncached rows, store write failed", Fields{
				"table": table,
				"rows":  fresh.Len(),
				"error": err.Error(),
			})
		}
	}

	return mergeResults(cachedRows, fresh, desc.keys, keyColumn), hits, misses, nil
}

// invoke calls the delegate with the key parameter rebound to the uncached
// keys. A delegate is never invoked with zero keys; the whole call aborts on
// output that is not tabular, before anything is written.
func (c *Cached) invoke(ctx context.Context, desc callDescriptor, uncached []Value) (Result, error) {
	if len(uncached) == 0 {
		return Result{}, nil
	}
	args := make(map[string]any, len(desc.args))
	for k, v := range desc.args {
		args[k] = v
	}
	args[c.key.Param] = uncached
	out, err := c.delegate(ctx, Call{Keys: uncached, Args: args})
	if err != nil {
		return Result{}, err
	}
	if err := out.validate(c.key.column()); err != nil {
		return Result{}, &ValidationError{Reason: "delegate must return tabular output: " + err.Error()}
	}
	return out, nil
}

// ensureStore runs the liveness check on the held connection and rebuilds it
// from the connector when the check fails or no connection exists yet. The
// connection slot is private to this instance.
func (c *Cached) ensureStore(ctx context.Context) (Store, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.store != nil {
		if err := c.store.Ready(ctx); err == nil {
			return c.store, nil
		}
		c.logger.Info("store connection lost, rebuilding", Fields{"backend": string(c.store.Backend())})
		_ = c.store.Close()
		c.store = nil
	}
	store, err := c.connector.Connect(ctx)
	if err != nil {
		return nil, &ConnError{Err: err}
	}
	c.store = store
	return store, nil
}

func (c *Cached) lockTable(table string) func() {
	c.lockMu.Lock()
	mu, ok := c.tableLocks[table]
	if !ok {
		mu = &sync.Mutex{}
		c.tableLocks[table] = mu
	}
	c.lockMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (c *Cached) observe(ctx context.Context, store Store, table string, requested, hits, misses int, err error, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.OnCall(ctx, table, requested, hits, misses, err, time.Since(start), store.Backend())
}

// Close releases the held store connection, if any. Further calls reconnect.
func (c *Cached) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
