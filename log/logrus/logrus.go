// Package logrus adapts a logrus entry to remotecache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/remotecache"
)

var _ remotecache.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New tags every entry with component=remotecache.
func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: l.WithField("component", "remotecache")}
}

func (l LogrusLogger) with(f remotecache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	return l.E.WithFields(logrus.Fields(f))
}

func (l LogrusLogger) Debug(msg string, f remotecache.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f remotecache.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f remotecache.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f remotecache.Fields) { l.with(f).Error(msg) }
