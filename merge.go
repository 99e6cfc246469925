package tablecache

// mergeResults unions cached and fresh rows and reorders them to match the
// requested key sequence. Missing columns on either side are null-filled.
// Rows are grouped by key at the key's first occurrence in the request;
// within a group cached rows precede fresh ones, each side in source order.
// Rows whose key matches no requested key are dropped, and requested keys
// without rows contribute nothing (no null padding).
func mergeResults(cached, fresh Result, requested []Value, keyColumn string) Result {
	if cached.Empty() && fresh.Empty() {
		return Result{}
	}

	columns := unionColumns(cached.Columns, fresh.Columns)
	groups := make(map[string][][]any)
	collect(groups, cached, columns, keyColumn)
	collect(groups, fresh, columns, keyColumn)

	out := Result{Columns: columns}
	seen := make(map[string]struct{}, len(requested))
	for _, k := range requested {
		c := k.canonical()
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out.Rows = append(out.Rows, groups[c]...)
	}
	return out
}

func unionColumns(a, b []string) []string {
	if len(a) == 0 {
		out := make([]string, len(b))
		copy(out, b)
		return out
	}
	out := make([]string, len(a), len(a)+len(b))
	copy(out, a)
	have := make(map[string]struct{}, len(a))
	for _, c := range a {
		have[c] = struct{}{}
	}
	for _, c := range b {
		if _, ok := have[c]; !ok {
			out = append(out, c)
			have[c] = struct{}{}
		}
	}
	return out
}

// collect widens src rows to the union column order and buckets them by
// canonical key. Rows without a usable key cell are skipped.
func collect(groups map[string][][]any, src Result, columns []string, keyColumn string) {
	if src.Empty() {
		return
	}
	keyIdx := src.ColumnIndex(keyColumn)
	if keyIdx < 0 {
		return
	}
	colIdx := make([]int, len(columns))
	for i, c := range columns {
		colIdx[i] = src.ColumnIndex(c)
	}
	for i := range src.Rows {
		key, ok := src.keyAt(i, keyIdx)
		if !ok {
			continue
		}
		widened := make([]any, len(columns))
		for j, idx := range colIdx {
			if idx >= 0 {
				widened[j] = src.Rows[i][idx]
			}
		}
		c := key.canonical()
		groups[c] = append(groups[c], widened)
	}
}
