// Package tablecache memoizes tabular delegate functions at the record level.
//
// A delegate is any function that, given a sequence of key values, produces
// rows keyed by an output column. Wrapping it with tablecache.New yields a
// cached callable: keys that were computed before are served from a row store,
// only unseen keys reach the delegate, fresh rows are persisted, and the
// merged result comes back in the caller's requested order.
//
// Storage is partitioned into physical tables. Arguments declared as "salt"
// select the table, so delegate outputs whose shape depends on those
// arguments never mix:
//
//	cached, err := tablecache.New(fetchQuotes, tablecache.Options{
//		Prefix:    "quotes",
//		Key:       tablecache.KeySpec{Param: "symbol"},
//		Params:    []tablecache.Param{{Name: "window", Default: 30}},
//		Salt:      []string{"window"},
//		Connector: tablecache.SQLConnector{DriverName: "sqlite", DSN: "file:quotes.db"},
//	})
//	res, err := cached.Call(ctx, tablecache.Args{"symbol": []string{"ACME", "INIT"}})
//
// Backends: SQL (sqlite, postgres, mysql), in-process memory, Redis, NATS
// JetStream KV, and DynamoDB. All of them satisfy the same Store contract:
// a filtered read, a distinct-membership probe, and an append with
// create-if-absent semantics.
//
// Records are never expired or refreshed; Options.Force recomputes every
// requested key. Forced recomputation appends: earlier rows for the same key
// stay in the table and later non-forced reads return every generation.
package tablecache
