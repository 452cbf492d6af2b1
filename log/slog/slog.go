// Package slog adapts a log/slog logger to remotecache.Logger.
package slog

import (
	"context"
	stdslog "log/slog"

	"github.com/unkn0wn-root/remotecache"
)

var _ remotecache.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

// New groups every record's fields under "remotecache".
func New(l *stdslog.Logger) Logger { return Logger{L: l.WithGroup("remotecache")} }

func (s Logger) log(level stdslog.Level, msg string, f remotecache.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, level) {
		return
	}
	s.L.LogAttrs(ctx, level, msg, attrs(f)...)
}

func (s Logger) Debug(msg string, f remotecache.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f remotecache.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f remotecache.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f remotecache.Fields) { s.log(stdslog.LevelError, msg, f) }

func attrs(f remotecache.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	for k, v := range f {
		out = append(out, stdslog.Any(k, v))
	}
	return out
}
