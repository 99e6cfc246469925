package tablecache

import "context"

// partitionKeys splits the requested keys into already-cached and
// not-yet-cached subsets. With force set, everything is recomputed and the
// requested sequence passes through untouched. Otherwise membership is a
// distinct probe against the store; a table that does not exist yet counts
// as an empty existing set. Both subsets are distinct values in original
// relative order; the merger restores duplicates.
func partitionKeys(ctx context.Context, store Store, table, keyColumn string, requested []Value, force bool) (cached, uncached []Value, err error) {
	if force {
		return nil, requested, nil
	}
	distinct := distinctValues(requested)
	existing, err := store.Existing(ctx, table, keyColumn, distinct)
	if err != nil {
		return nil, nil, &QueryError{Op: "partition read on", Table: table, Err: err}
	}
	for _, k := range distinct {
		if _, ok := existing[k.canonical()]; ok {
			cached = append(cached, k)
		} else {
			uncached = append(uncached, k)
		}
	}
	return cached, uncached, nil
}
