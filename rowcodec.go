package tablecache

import (
	"bytes"
	"encoding/json"
)

// rowGroup is the stored form of one key's rows in the entry-per-key
// backends (NATS KV, DynamoDB).
type rowGroup struct {
	Rows []json.RawMessage `json:"rows"`
}

func (g *rowGroup) appendDocs(docs [][]byte) {
	for _, d := range docs {
		g.Rows = append(g.Rows, json.RawMessage(d))
	}
}

func (g rowGroup) decode() ([]rowDoc, error) {
	out := make([]rowDoc, 0, len(g.Rows))
	for _, raw := range g.Rows {
		doc, err := decodeRowDoc(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// rowDoc is the wire form of one row in the key-value backends. Columns ride
// along with every row so order survives JSON and later writes may carry a
// different column set.
type rowDoc struct {
	C []string `json:"c"`
	V []any    `json:"v"`
}

func encodeRowDoc(columns []string, row []any) ([]byte, error) {
	return json.Marshal(rowDoc{C: columns, V: row})
}

func decodeRowDoc(data []byte) (rowDoc, error) {
	var doc rowDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return rowDoc{}, err
	}
	for i, cell := range doc.V {
		doc.V[i] = normalizeDecoded(cell)
	}
	return doc, nil
}

// normalizeDecoded maps json.Number cells back to int64 or float64 so keys
// read from a JSON backend compare equal to the ones requested.
func normalizeDecoded(cell any) any {
	n, ok := cell.(json.Number)
	if !ok {
		return cell
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// resultFromDocs assembles a Result from decoded row docs. Column order is
// first-seen across the docs; cells missing a column are nil.
func resultFromDocs(docs []rowDoc) Result {
	if len(docs) == 0 {
		return Result{}
	}
	var columns []string
	have := make(map[string]int)
	for _, d := range docs {
		for _, c := range d.C {
			if _, ok := have[c]; !ok {
				have[c] = len(columns)
				columns = append(columns, c)
			}
		}
	}
	out := Result{Columns: columns}
	for _, d := range docs {
		row := make([]any, len(columns))
		for i, c := range d.C {
			if i < len(d.V) {
				row[have[c]] = d.V[i]
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// groupByKey buckets a result's rows by canonical key as encoded docs,
// preserving source order. Rows without a usable key cell are dropped: they
// could never be read back by key.
func groupByKey(rows Result, keyColumn string) (map[string][][]byte, error) {
	keyIdx := rows.ColumnIndex(keyColumn)
	groups := make(map[string][][]byte)
	if keyIdx < 0 {
		return groups, nil
	}
	for i := range rows.Rows {
		key, ok := rows.keyAt(i, keyIdx)
		if !ok {
			continue
		}
		doc, err := encodeRowDoc(rows.Columns, rows.Rows[i])
		if err != nil {
			return nil, err
		}
		c := key.canonical()
		groups[c] = append(groups[c], doc)
	}
	return groups, nil
}
