package tablecache

import (
	"context"
	"time"
)

// Observer receives one event per completed call against a cached delegate.
// hits and misses count distinct keys served from storage vs. sent to the
// delegate; err is whatever the call returned.
type Observer interface {
	OnCall(ctx context.Context, table string, requested, hits, misses int, err error, dur time.Duration, backend Backend)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, table string, requested, hits, misses int, err error, dur time.Duration, backend Backend)

// OnCall implements Observer.
func (f ObserverFunc) OnCall(ctx context.Context, table string, requested, hits, misses int, err error, dur time.Duration, backend Backend) {
	if f == nil {
		return
	}
	f(ctx, table, requested, hits, misses, err, dur, backend)
}
