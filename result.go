package tablecache

import "fmt"

// Result is a tabular value: ordered named columns plus rows aligned to them.
// The zero Result has no columns and no rows, which is what a skipped
// delegate invocation or an empty read yields.
type Result struct {
	Columns []string
	Rows    [][]any
}

// NewResult builds a Result from a column list and rows.
func NewResult(columns []string, rows ...[]any) Result {
	return Result{Columns: columns, Rows: rows}
}

// Empty reports whether the result carries no columns and no rows.
func (r Result) Empty() bool {
	return len(r.Columns) == 0 && len(r.Rows) == 0
}

// Len returns the number of rows.
func (r Result) Len() int { return len(r.Rows) }

// ColumnIndex returns the position of name in Columns, or -1.
func (r Result) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// validate checks tabular shape: non-empty results need the key column,
// unique column names, and every row as wide as the column list.
func (r Result) validate(keyColumn string) error {
	if r.Empty() {
		return nil
	}
	if len(r.Columns) == 0 {
		return fmt.Errorf("rows present but no columns declared")
	}
	seen := make(map[string]struct{}, len(r.Columns))
	for _, c := range r.Columns {
		if c == "" {
			return fmt.Errorf("empty column name")
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	if _, ok := seen[keyColumn]; !ok {
		return fmt.Errorf("missing key column %q", keyColumn)
	}
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(r.Columns))
		}
	}
	return nil
}

// keyAt extracts the key value of one row. Rows whose key cell cannot be
// represented as a Value (nil, composite types) report ok=false and are
// skipped by the merger.
func (r Result) keyAt(row, keyIdx int) (Value, bool) {
	cell := r.Rows[row][keyIdx]
	if cell == nil {
		return Value{}, false
	}
	v, err := NewValue(cell)
	if err != nil {
		return Value{}, false
	}
	return v, true
}
