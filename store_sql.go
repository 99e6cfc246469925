package tablecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// SQLConnector describes a database/sql connection. Registered drivers:
// "sqlite" (modernc.org/sqlite), "pgx"/"postgres" (jackc/pgx stdlib) and
// "mysql" (go-sql-driver).
type SQLConnector struct {
	DriverName string
	DSN        string

	// MaxOpenConns caps the pool; the cached delegate itself uses a single
	// logical connection, so 1 is a reasonable value for sqlite.
	MaxOpenConns int
}

// Connect opens and pings the database.
func (c SQLConnector) Connect(ctx context.Context) (Store, error) {
	if c.DriverName == "" || c.DSN == "" {
		return nil, errors.New("sql connector requires driver name and dsn")
	}
	db, err := sql.Open(c.DriverName, c.DSN)
	if err != nil {
		return nil, err
	}
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqlStore{db: db, driverName: c.DriverName}, nil
}

type sqlStore struct {
	db         *sql.DB
	driverName string
}

func (s *sqlStore) Backend() Backend { return BackendSQL }

func (s *sqlStore) Ready(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqlStore) Close() error { return s.db.Close() }

func (s *sqlStore) Existing(ctx context.Context, table, keyColumn string, keys []Value) (map[string]struct{}, error) {
	if err := checkIdents(table, keyColumn); err != nil {
		return nil, err
	}
	existing := make(map[string]struct{}, len(keys))
	if len(keys) == 0 {
		return existing, nil
	}
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IN (%s)",
		keyColumn, table, keyColumn, sqlLiteralList(keys))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		if isMissingTableErr(err) {
			return existing, nil
		}
		return nil, err
	}
	defer rows.Close()
	index := scanKeyIndex(keys)
	for rows.Next() {
		var cell any
		if err := rows.Scan(&cell); err != nil {
			return nil, err
		}
		v, err := NewValue(normalizeScan(cell))
		if err != nil {
			continue
		}
		if k, ok := index[v.canonical()]; ok {
			existing[k.canonical()] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *sqlStore) Read(ctx context.Context, table, keyColumn string, keys []Value) (Result, error) {
	if err := checkIdents(table, keyColumn); err != nil {
		return Result{}, err
	}
	if len(keys) == 0 {
		return Result{}, nil
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)", table, keyColumn, sqlLiteralList(keys))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		if isMissingTableErr(err) {
			return Result{}, nil
		}
		return Result{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}
	keyIdx := -1
	for i, c := range columns {
		if c == keyColumn {
			keyIdx = i
		}
	}
	index := scanKeyIndex(keys)
	out := Result{Columns: columns}
	for rows.Next() {
		cells := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range cells {
			targets[i] = &cells[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return Result{}, err
		}
		for i := range cells {
			cells[i] = normalizeScan(cells[i])
		}
		// Coerce the key cell back to the requested value's kind so the
		// merger can match it against the request.
		if keyIdx >= 0 && cells[keyIdx] != nil {
			if v, err := NewValue(cells[keyIdx]); err == nil {
				if k, ok := index[v.canonical()]; ok {
					cells[keyIdx] = k.Native()
				}
			}
		}
		out.Rows = append(out.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	return out, nil
}

func (s *sqlStore) Write(ctx context.Context, table, keyColumn string, rows Result) error {
	if rows.Empty() {
		return nil
	}
	if err := checkIdents(table, keyColumn); err != nil {
		return err
	}
	for _, col := range rows.Columns {
		if !validIdent(col) {
			return fmt.Errorf("invalid column name %q", col)
		}
	}
	if _, err := s.db.ExecContext(ctx, s.createTableSQL(table, rows)); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.insertSQL(table, rows.Columns))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, row := range rows.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// createTableSQL infers the schema from the batch being written: a table's
// column set is fixed by its first write, there is no migration.
func (s *sqlStore) createTableSQL(table string, rows Result) string {
	defs := make([]string, 0, len(rows.Columns))
	for i, col := range rows.Columns {
		defs = append(defs, col+" "+s.columnType(columnSample(rows, i)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
}

// columnSample finds the first non-nil cell of column i.
func columnSample(rows Result, i int) any {
	for _, row := range rows.Rows {
		if row[i] != nil {
			return row[i]
		}
	}
	return nil
}

func (s *sqlStore) columnType(sample any) string {
	switch sample.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		if s.driverName == "sqlite" {
			return "INTEGER"
		}
		return "BIGINT"
	case float32, float64:
		switch s.driverName {
		case "postgres", "pgx":
			return "DOUBLE PRECISION"
		case "mysql":
			return "DOUBLE"
		default:
			return "REAL"
		}
	case bool:
		switch s.driverName {
		case "postgres", "pgx":
			return "BOOLEAN"
		case "mysql":
			return "TINYINT(1)"
		default:
			return "INTEGER"
		}
	default:
		return "TEXT"
	}
}

func (s *sqlStore) insertSQL(table string, columns []string) string {
	placeholders := make([]string, 0, len(columns))
	for i := range columns {
		placeholders = append(placeholders, s.ph(i+1))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
}

func (s *sqlStore) ph(i int) string {
	if s.driverName == "postgres" || s.driverName == "pgx" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// scanKeyIndex maps every scan-form canonical of the requested keys back to
// the requested value itself. Exact-kind canonicals are registered first so a
// key is never shadowed by another key's driver alias.
func scanKeyIndex(keys []Value) map[string]Value {
	idx := make(map[string]Value, len(keys))
	for _, k := range keys {
		idx[k.canonical()] = k
	}
	for _, k := range keys {
		for _, alias := range k.scanAliases() {
			if _, ok := idx[alias]; !ok {
				idx[alias] = k
			}
		}
	}
	return idx
}

// isMissingTableErr matches the per-driver "unknown table" failures so reads
// against a table that was never written behave as empty, not as errors.
func isMissingTableErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such table") || // sqlite
		strings.Contains(msg, "does not exist") || // postgres
		strings.Contains(msg, "doesn't exist") // mysql
}

func checkIdents(table, keyColumn string) error {
	if !validIdent(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	if !validIdent(keyColumn) {
		return fmt.Errorf("invalid key column %q", keyColumn)
	}
	return nil
}

func normalizeScan(cell any) any {
	if b, ok := cell.([]byte); ok {
		return string(b)
	}
	return cell
}
