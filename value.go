package tablecache

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type valueKind uint8

const (
	kindInt valueKind = iota
	kindFloat
	kindString
	kindBool
)

// Value is a tagged key value: numeric, text, or boolean. Each variant knows
// how to render itself as a safe SQL literal and as a canonical string used
// for set membership and merge ordering. Integral floats collapse to the
// integer variant so a key read back from a JSON-speaking backend compares
// equal to the one that was requested.
type Value struct {
	kind valueKind
	i    int64
	f    float64
	s    string
	b    bool
}

// Int builds an integer key value.
func Int(v int64) Value { return Value{kind: kindInt, i: v} }

// Float builds a floating-point key value. Exact integers collapse to Int.
func Float(v float64) Value {
	if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1<<53 {
		return Int(int64(v))
	}
	return Value{kind: kindFloat, f: v}
}

// Text builds a text key value.
func Text(v string) Value { return Value{kind: kindString, s: v} }

// Bool builds a boolean key value.
func Bool(v bool) Value { return Value{kind: kindBool, b: v} }

// NewValue converts a native Go scalar into a Value. Supported inputs are
// the integer and float types, string, []byte, bool, json.Number, and Value
// itself. Anything else is not usable as a key or salt.
func NewValue(v any) (Value, error) {
	switch t := v.(type) {
	case Value:
		return t, nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(int64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return Text(t), nil
	case []byte:
		return Text(string(t)), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("unparseable numeric value %q", t.String())
		}
		return Float(f), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// Native returns the Go representation stored in the variant.
func (v Value) Native() any {
	switch v.kind {
	case kindInt:
		return v.i
	case kindFloat:
		return v.f
	case kindBool:
		return v.b
	default:
		return v.s
	}
}

// canonical is the identity used for partition membership and merge lookup.
// Kind-prefixed so text "1" never collides with integer 1.
func (v Value) canonical() string {
	switch v.kind {
	case kindInt:
		return "i:" + strconv.FormatInt(v.i, 10)
	case kindFloat:
		return "f:" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case kindBool:
		return "b:" + strconv.FormatBool(v.b)
	default:
		return "s:" + v.s
	}
}

// format renders the bare value, used for salt tokens in table names.
func (v Value) format() string {
	switch v.kind {
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	case kindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// sqlLiteral renders the value for inlining into an IN list. Numerics are
// inlined as-is; text is quoted with embedded quotes doubled.
func (v Value) sqlLiteral() string {
	switch v.kind {
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	case kindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case kindBool:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	default:
		return "'" + strings.ReplaceAll(v.s, "'", "''") + "'"
	}
}

// scanAliases lists every canonical form a database driver may hand back for
// this value. Drivers do not preserve the written Go type: sqlite stores
// booleans as integers, and mysql's text protocol returns every column as
// bytes. Membership probes match scanned cells against any alias.
func (v Value) scanAliases() []string {
	switch v.kind {
	case kindInt:
		n := strconv.FormatInt(v.i, 10)
		return []string{"i:" + n, "s:" + n}
	case kindFloat:
		n := strconv.FormatFloat(v.f, 'g', -1, 64)
		return []string{"f:" + n, "s:" + n}
	case kindBool:
		num, word := "0", "false"
		if v.b {
			num, word = "1", "true"
		}
		return []string{"b:" + word, "i:" + num, "s:" + num, "s:" + word}
	default:
		return []string{"s:" + v.s}
	}
}

// sqlLiteralList joins key literals for the read query shape
// SELECT * FROM t WHERE col IN (...).
func sqlLiteralList(keys []Value) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k.sqlLiteral())
	}
	return strings.Join(parts, ", ")
}

// distinctValues keeps the first occurrence of every canonical value,
// preserving order.
func distinctValues(keys []Value) []Value {
	seen := make(map[string]struct{}, len(keys))
	out := make([]Value, 0, len(keys))
	for _, k := range keys {
		c := k.canonical()
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, k)
	}
	return out
}
