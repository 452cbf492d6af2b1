// Package zap adapts a zap.Logger to remotecache.Logger.
package zap

import (
	"go.uber.org/zap"

	"github.com/unkn0wn-root/remotecache"
)

var _ remotecache.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New names the logger "remotecache".
func New(l *zap.Logger) ZapLogger { return ZapLogger{L: l.Named("remotecache")} }

func (z ZapLogger) Debug(msg string, f remotecache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f remotecache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f remotecache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f remotecache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f remotecache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
