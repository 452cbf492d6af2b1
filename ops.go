package remotecache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/remotecache/envelope"
	"github.com/unkn0wn-root/remotecache/internal/batch"
)

// fetched is the raw multi-get result for one pair.
type fetched struct {
	meta       []byte
	payload    string
	found      bool // metadata present
	hasPayload bool
}

// fetch reads metadata and payload for pairs[idx...] in one MGET.
func (c *connector) fetch(ctx context.Context, pairs []KeyPair, idx []int) ([]fetched, error) {
	args := make([]string, 0, 2*len(idx))
	for _, i := range idx {
		args = append(args, pairs[i].Metadata, pairs[i].Payload)
	}

	var vals []any
	err := c.gate.Do(ctx, func() error {
		var err error
		vals, err = c.topo.reader().MGet(ctx, args...).Result()
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(vals) != len(args) {
		return nil, fmt.Errorf("mget returned %d values for %d keys", len(vals), len(args))
	}

	out := make([]fetched, len(idx))
	for j := range out {
		if s, ok := vals[2*j].(string); ok {
			out[j].meta = []byte(s)
			out[j].found = true
		}
		if s, ok := vals[2*j+1].(string); ok {
			out[j].payload = s
			out[j].hasPayload = true
		}
	}
	return out, nil
}

// materialize turns one fetched pair into an allocated object. Every
// failure is a miss; the object is released on any path that does not
// return it.
func (c *connector) materialize(ctx context.Context, key string, pair KeyPair, f fetched) (MemoryObject, bool) {
	if !f.found {
		return nil, false
	}

	md, err := c.codec.Decode(f.meta)
	if err == nil {
		err = md.Validate()
	}
	if err != nil {
		c.decodeFailed(key, err)
		return nil, false
	}

	if f.hasPayload && len(f.payload) != md.Length {
		c.decodeFailed(key, fmt.Errorf("payload is %d bytes, metadata says %d", len(f.payload), md.Length))
		return nil, false
	}

	obj := c.alloc.Allocate(md.Shape, md.DType, md.Format)
	if obj == nil {
		c.log.Warn("remote cache allocation failed", Fields{"key": key, "bytes": md.Length, "err": ErrAllocation})
		c.hooks.AllocationFailed(key, md.Length)
		return nil, false
	}

	if !f.hasPayload {
		obj.Release()
		c.log.Warn("remote cache payload missing", Fields{"key": key, "err": ErrPayloadMissing})
		c.hooks.PayloadMissing(key)
		c.repair(ctx, key, pair)
		return nil, false
	}

	dst := obj.Bytes()
	if len(dst) < md.Length {
		obj.Release()
		c.decodeFailed(key, fmt.Errorf("allocated %d bytes for a %d-byte payload", len(dst), md.Length))
		return nil, false
	}
	copy(dst, f.payload)
	return obj, true
}

// repair drops a metadata key whose payload is gone, when enabled.
func (c *connector) repair(ctx context.Context, key string, pair KeyPair) {
	if !c.cfg.RepairOnRead {
		return
	}
	err := c.gate.Do(ctx, func() error {
		return c.topo.writer().Del(ctx, pair.Metadata).Err()
	})
	if err != nil {
		c.opFailed("repair", 1, err)
		return
	}
	c.log.Info("remote cache metadata repaired", Fields{"key": key})
	c.hooks.MetadataRepaired(key)
}

func (c *connector) exists(ctx context.Context, key string) bool {
	pair := c.topo.pair(key)
	var n int64
	err := c.gate.Do(ctx, func() error {
		var err error
		n, err = c.topo.reader().Exists(ctx, pair.Metadata).Result()
		return err
	})
	if err != nil {
		c.opFailed("exists", 1, err)
		return false
	}
	return n > 0
}

func (c *connector) get(ctx context.Context, key string) (MemoryObject, bool) {
	pairs := []KeyPair{c.topo.pair(key)}
	raw, err := c.fetch(ctx, pairs, []int{0})
	if err != nil {
		c.opFailed("get", 1, err)
		return nil, false
	}
	return c.materialize(ctx, key, pairs[0], raw[0])
}

func (c *connector) put(ctx context.Context, key string, obj MemoryObject) error {
	pairs := []KeyPair{c.topo.pair(key)}
	if err := c.writePairs(ctx, []string{key}, pairs, []MemoryObject{obj}, []int{0}); err != nil {
		c.opFailed("put", 1, err)
		return &OperationError{Op: "put", Keys: 1, Err: err}
	}
	return nil
}

// writePairs pipelines payload then metadata for every index. Objects whose
// metadata cannot be encoded are skipped and reported in the result.
func (c *connector) writePairs(ctx context.Context, keys []string, pairs []KeyPair, objs []MemoryObject, idx []int) error {
	type entry struct {
		pair    KeyPair
		meta    []byte
		payload []byte
	}
	entries := make([]entry, 0, len(idx))
	var errs []error
	for _, i := range idx {
		payload := objs[i].Bytes()
		meta, err := c.codec.Encode(metadataOf(objs[i], len(payload)))
		if err != nil {
			errs = append(errs, fmt.Errorf("encode metadata for %q: %w", keys[i], err))
			continue
		}
		entries = append(entries, entry{pairs[i], meta, payload})
	}
	if len(entries) == 0 {
		return errors.Join(errs...)
	}

	err := c.gate.Do(ctx, func() error {
		_, err := c.topo.writer().Pipelined(ctx, func(p redis.Pipeliner) error {
			for _, e := range entries {
				p.Set(ctx, e.pair.Payload, e.payload, c.cfg.TTL)
				p.Set(ctx, e.pair.Metadata, e.meta, c.cfg.TTL)
			}
			return nil
		})
		return err
	})
	return errors.Join(append(errs, err)...)
}

func (c *connector) batchedPut(ctx context.Context, keys []string, objs []MemoryObject) error {
	pairs := c.pairs(keys)
	// one pipeline per shard group, or a single pipeline for the whole batch
	groups, parallel := c.topo.plan(pairs, len(pairs))
	errs := batch.Run(groups, parallel, func(_ int, g batch.Group) error {
		return c.writePairs(ctx, keys, pairs, objs, g.Indices)
	})

	var failed []error
	for i, err := range errs {
		if err != nil {
			c.opFailed("batched_put", len(groups[i].Indices), err)
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return &BatchError{Op: "batched_put", Failed: failed}
	}
	return nil
}

func (c *connector) batchedContains(ctx context.Context, lookupID string, keys []string) int {
	pairs := c.pairs(keys)
	groups, parallel := c.topo.plan(pairs, c.cfg.ChunkSize)
	counts := make([]int64, len(groups))
	errs := batch.Run(groups, parallel, func(gi int, g batch.Group) error {
		meta := make([]string, len(g.Indices))
		for j, i := range g.Indices {
			meta[j] = pairs[i].Metadata
		}
		return c.gate.Do(ctx, func() error {
			n, err := c.topo.reader().Exists(ctx, meta...).Result()
			counts[gi] = n
			return err
		})
	})

	var total int64
	for i, err := range errs {
		if err != nil {
			c.opFailed("batched_contains", len(groups[i].Indices), err)
			continue
		}
		total += counts[i]
	}
	c.log.Debug("remote cache batched contains", Fields{"lookup_id": lookupID, "keys": len(keys), "hits": total})
	return int(total)
}

func (c *connector) batchedGet(ctx context.Context, lookupID string, keys []string) []MemoryObject {
	pairs := c.pairs(keys)
	groups, parallel := c.topo.plan(pairs, c.cfg.ChunkSize)
	objs := make([]MemoryObject, len(keys))
	ok := make([]bool, len(keys))

	// Sequential groups materialize as soon as they land. Parallel groups
	// only fetch; allocation stays on this goroutine, in input order.
	var raw []fetched
	var have []bool
	if parallel {
		raw = make([]fetched, len(keys))
		have = make([]bool, len(keys))
	}
	errs := batch.Run(groups, parallel, func(_ int, g batch.Group) error {
		res, err := c.fetch(ctx, pairs, g.Indices)
		if err != nil {
			return err
		}
		for j, i := range g.Indices {
			if parallel {
				raw[i], have[i] = res[j], true
				continue
			}
			objs[i], ok[i] = c.materialize(ctx, keys[i], pairs[i], res[j])
		}
		return nil
	})
	for i, err := range errs {
		if err != nil {
			c.opFailed("batched_get", len(groups[i].Indices), err)
		}
	}
	if parallel {
		for i := range keys {
			if have[i] {
				objs[i], ok[i] = c.materialize(ctx, keys[i], pairs[i], raw[i])
			}
		}
	}

	out := batch.Survivors(objs, ok)
	c.log.Debug("remote cache batched get", Fields{"lookup_id": lookupID, "keys": len(keys), "hits": len(out)})
	return out
}

func (c *connector) pairs(keys []string) []KeyPair {
	out := make([]KeyPair, len(keys))
	for i, k := range keys {
		out[i] = c.topo.pair(k)
	}
	return out
}

func (c *connector) opFailed(op string, keys int, err error) {
	c.log.Error("remote cache operation failed", Fields{"op": op, "keys": keys, "mode": c.cfg.Mode, "err": err})
	c.hooks.OperationFailed(op, keys, err)
}

func (c *connector) decodeFailed(key string, err error) {
	err = &DecodeError{Key: key, Err: err}
	c.log.Error("remote cache metadata decode failed", Fields{"key": key, "err": err})
	c.hooks.DecodeFailed(key, err)
}

func metadataOf(obj MemoryObject, length int) envelope.Metadata {
	return envelope.Metadata{Length: length, Shape: obj.Shape(), DType: obj.DType(), Format: obj.Format()}
}
