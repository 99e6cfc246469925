package tablecache

import (
	"encoding/json"
	"testing"
)

func TestNewValueConversions(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{42, "i:42"},
		{int64(-7), "i:-7"},
		{uint8(3), "i:3"},
		{float64(2), "i:2"}, // integral floats collapse
		{1.5, "f:1.5"},
		{"abc", "s:abc"},
		{[]byte("xyz"), "s:xyz"},
		{true, "b:true"},
		{json.Number("12"), "i:12"},
		{json.Number("0.25"), "f:0.25"},
	}
	for _, tc := range cases {
		v, err := NewValue(tc.in)
		if err != nil {
			t.Fatalf("NewValue(%v) failed: %v", tc.in, err)
		}
		if got := v.canonical(); got != tc.want {
			t.Fatalf("canonical(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewValueRejectsComposites(t *testing.T) {
	if _, err := NewValue([]int{1}); err == nil {
		t.Fatalf("expected error for slice value")
	}
	if _, err := NewValue(map[string]int{}); err == nil {
		t.Fatalf("expected error for map value")
	}
	if _, err := NewValue(nil); err == nil {
		t.Fatalf("expected error for nil value")
	}
}

func TestTextCanonicalNeverCollidesWithInt(t *testing.T) {
	n, _ := NewValue(1)
	s, _ := NewValue("1")
	if n.canonical() == s.canonical() {
		t.Fatalf("integer 1 and text %q must not share identity", "1")
	}
}

func TestSQLLiteralEscapesQuotes(t *testing.T) {
	v := Text("O'Brien; DROP TABLE x")
	if got, want := v.sqlLiteral(), "'O''Brien; DROP TABLE x'"; got != want {
		t.Fatalf("literal = %q, want %q", got, want)
	}
	if got := Int(42).sqlLiteral(); got != "42" {
		t.Fatalf("int literal = %q", got)
	}
	if got := Float(2.5).sqlLiteral(); got != "2.5" {
		t.Fatalf("float literal = %q", got)
	}
	if got := Bool(true).sqlLiteral(); got != "TRUE" {
		t.Fatalf("bool literal = %q", got)
	}
}

func TestSQLLiteralList(t *testing.T) {
	got := sqlLiteralList([]Value{Int(1), Text("a"), Int(3)})
	if got != "1, 'a', 3" {
		t.Fatalf("literal list = %q", got)
	}
}

func TestDistinctValuesPreservesOrder(t *testing.T) {
	keys := []Value{Int(3), Int(1), Int(3), Int(2), Int(1)}
	got := distinctValues(keys)
	want := []string{"i:3", "i:1", "i:2"}
	if len(got) != len(want) {
		t.Fatalf("distinct len = %d, want %d", len(got), len(want))
	}
	for i, v := range got {
		if v.canonical() != want[i] {
			t.Fatalf("distinct[%d] = %s, want %s", i, v.canonical(), want[i])
		}
	}
}
