// Package sloghooks reports remotecache hook events through log/slog, with
// optional sampling for the noisy ones and redacted keys.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/remotecache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	PayloadMissingEvery   uint64
	OperationFailedEvery  uint64
	AllocationFailedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	missingCtr atomic.Uint64
	opCtr      atomic.Uint64
	allocCtr   atomic.Uint64
}

var _ remotecache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) PayloadMissing(key string) {
	if h.l == nil || !sample(h.opts.PayloadMissingEvery, &h.missingCtr) {
		return
	}
	h.l.Warn("remotecache.payload_missing",
		"key", h.redact(key))
}

func (h *Hooks) DecodeFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("remotecache.decode_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) AllocationFailed(key string, size int) {
	if h.l == nil || !sample(h.opts.AllocationFailedEvery, &h.allocCtr) {
		return
	}
	h.l.Warn("remotecache.allocation_failed",
		"key", h.redact(key),
		"bytes", size)
}

func (h *Hooks) OperationFailed(op string, keys int, err error) {
	if h.l == nil || !sample(h.opts.OperationFailedEvery, &h.opCtr) {
		return
	}
	h.l.Error("remotecache.operation_failed",
		"op", op,
		"keys", keys,
		"err", err)
}

func (h *Hooks) MetadataRepaired(key string) {
	if h.l == nil {
		return
	}
	h.l.Info("remotecache.metadata_repaired",
		"key", h.redact(key))
}
