package tablecache

import (
	"context"
	"fmt"
)

// Args carries the caller's arguments for one invocation, keyed by declared
// parameter name.
type Args map[string]any

// Call is what the delegate receives: the key sequence it must produce rows
// for (already narrowed to uncached keys) plus every bound argument,
// defaults included. Args[key parameter] mirrors Keys.
type Call struct {
	Keys []Value
	Args map[string]any
}

// Delegate is the wrapped function. It returns a tabular result containing
// the output key column, with zero or more rows per requested key.
type Delegate func(ctx context.Context, call Call) (Result, error)

// callDescriptor binds one invocation: requested keys in caller order
// (duplicates allowed), all bound arguments, and the ordered salt values.
type callDescriptor struct {
	keys  []Value
	args  map[string]any
	salts []Value
}

// bind resolves args against the declared parameter list: unknown names are
// rejected, defaults fill omitted parameters, the key argument must be a
// finite sequence, and salt values must be scalar. No store access here.
func (c *Cached) bind(args Args) (callDescriptor, error) {
	for name := range args {
		if name == c.key.Param {
			continue
		}
		if !c.declared(name) {
			return callDescriptor{}, configErrorf("unknown argument %q", name)
		}
	}

	raw, ok := args[c.key.Param]
	if !ok {
		return callDescriptor{}, configErrorf("missing key argument %q", c.key.Param)
	}
	keys, err := keySequence(raw)
	if err != nil {
		return callDescriptor{}, &ValidationError{Reason: "key argument " + c.key.Param + ": " + err.Error()}
	}

	bound := make(map[string]any, len(c.params)+1)
	bound[c.key.Param] = keys
	for _, p := range c.params {
		if v, ok := args[p.Name]; ok {
			bound[p.Name] = v
			continue
		}
		if p.Default == nil {
			return callDescriptor{}, configErrorf("missing argument %q", p.Name)
		}
		bound[p.Name] = p.Default
	}

	salts := make([]Value, 0, len(c.salt))
	for _, name := range c.salt {
		v, err := NewValue(bound[name])
		if err != nil {
			return callDescriptor{}, configErrorf("salt %q: %v", name, err)
		}
		salts = append(salts, v)
	}

	return callDescriptor{keys: keys, args: bound, salts: salts}, nil
}

func (c *Cached) declared(name string) bool {
	for _, p := range c.params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// keySequence converts the key argument into an ordered Value slice.
// Duplicates are preserved; partitioning and merging handle them.
func keySequence(raw any) ([]Value, error) {
	switch t := raw.(type) {
	case []Value:
		out := make([]Value, len(t))
		copy(out, t)
		return out, nil
	case []any:
		return convertKeys(len(t), func(i int) any { return t[i] })
	case []int:
		return convertKeys(len(t), func(i int) any { return t[i] })
	case []int64:
		return convertKeys(len(t), func(i int) any { return t[i] })
	case []float64:
		return convertKeys(len(t), func(i int) any { return t[i] })
	case []string:
		return convertKeys(len(t), func(i int) any { return t[i] })
	case []bool:
		return convertKeys(len(t), func(i int) any { return t[i] })
	default:
		return nil, fmt.Errorf("value of type %T is not a key sequence", raw)
	}
}

func convertKeys(n int, at func(int) any) ([]Value, error) {
	out := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		v, err := NewValue(at(i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
