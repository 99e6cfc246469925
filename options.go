package tablecache

// KeySpec pairs the delegate parameter that carries the requested keys with
// the output column holding them. Column defaults to Param (identity).
type KeySpec struct {
	Param  string
	Column string
}

func (k KeySpec) column() string {
	if k.Column != "" {
		return k.Column
	}
	return k.Param
}

// Param declares one non-key delegate parameter. A nil Default makes the
// parameter required at call time; otherwise the default is used when the
// caller omits the argument.
type Param struct {
	Name    string
	Default any
}

// WritePolicy decides what happens when persisting freshly computed rows
// fails after a successful delegate invocation.
type WritePolicy int

const (
	// WriteStrict surfaces the store failure as a QueryError; the computed
	// rows are discarded.
	WriteStrict WritePolicy = iota

	// WriteBestEffort logs the store failure and returns the computed rows
	// anyway. Durability is then not guaranteed: the next identical call may
	// invoke the delegate for the same keys again.
	WriteBestEffort
)

// Options configures one cached delegate. Immutable after New.
type Options struct {
	// Prefix is the static namespace token scoping this delegate's tables.
	// Must be a single identifier-safe token.
	Prefix string

	// Key names the key parameter and its output column.
	Key KeySpec

	// Params declares the delegate's non-key parameters.
	Params []Param

	// Salt lists parameter names whose values select the physical table,
	// in table-name order. Every name must appear in Params.
	Salt []string

	// Connector builds and rebuilds the store connection.
	Connector Connector

	// Force sends every requested key to the delegate regardless of prior
	// caching; recomputed rows are appended to the table. Earlier rows for
	// the same key are not removed, so a later non-forced read returns every
	// generation. Point forced recomputation at a fresh salt tuple when the
	// old rows must not resurface.
	Force bool

	// WritePolicy defaults to WriteStrict.
	WritePolicy WritePolicy

	Logger   Logger
	Observer Observer
}

func (o Options) validate() error {
	if o.Key.Param == "" {
		return configErrorf("key spec is empty")
	}
	if o.Prefix == "" || !validIdent(o.Prefix) {
		return configErrorf("prefix %q is not a single identifier token", o.Prefix)
	}
	if o.Connector == nil {
		return configErrorf("connector is required")
	}
	names := make(map[string]struct{}, len(o.Params)+1)
	names[o.Key.Param] = struct{}{}
	for _, p := range o.Params {
		if p.Name == "" {
			return configErrorf("parameter with empty name")
		}
		if _, dup := names[p.Name]; dup {
			return configErrorf("duplicate parameter %q", p.Name)
		}
		names[p.Name] = struct{}{}
	}
	for _, s := range o.Salt {
		if s == o.Key.Param {
			return configErrorf("salt %q is the key parameter", s)
		}
		if _, ok := names[s]; !ok {
			return configErrorf("salt %q is not a declared parameter", s)
		}
	}
	return nil
}
