package logrus

import (
	"github.com/goforj/tablecache"
	"github.com/sirupsen/logrus"
)

// Logger adapts a logrus.Entry to the tablecache.Logger interface.
type Logger struct{ E *logrus.Entry }

var _ tablecache.Logger = Logger{}

func (l Logger) Debug(msg string, f tablecache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}

func (l Logger) Info(msg string, f tablecache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Info(msg)
}

func (l Logger) Warn(msg string, f tablecache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Warn(msg)
}

func (l Logger) Error(msg string, f tablecache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
