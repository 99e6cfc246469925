package tablecache

import "fmt"

// ConfigError reports an invalid wrapper configuration or an argument set
// that cannot be bound to the declared parameter list.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "tablecache: invalid configuration: " + e.Reason
}

// ConnError reports that the store connection could not be established or
// re-established. The call aborts before any read or write.
type ConnError struct {
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("tablecache: store connection failed: %v", e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// ValidationError reports delegate output that is not usable as a table.
// The call aborts before any write, so no partial caching occurs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "tablecache: " + e.Reason
}

// QueryError reports a failed read or write against the store. Store
// operations are attempted exactly once per call; failures propagate uncaught.
type QueryError struct {
	Op    string
	Table string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("tablecache: %s %q: %v", e.Op, e.Table, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}
