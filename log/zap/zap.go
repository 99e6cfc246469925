package zap

import (
	"github.com/goforj/tablecache"
	"go.uber.org/zap"
)

// Logger adapts a zap.Logger to the tablecache.Logger interface.
type Logger struct{ L *zap.Logger }

var _ tablecache.Logger = Logger{}

func (z Logger) Debug(msg string, f tablecache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z Logger) Info(msg string, f tablecache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f tablecache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f tablecache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f tablecache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}
