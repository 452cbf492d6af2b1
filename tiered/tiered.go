// Package tiered puts an in-process provider.Provider in front of a
// remotecache.Connector.
//
// Local entries are self-describing frames (metadata envelope + payload),
// so a local hit needs no remote round trip. Writes go to the remote tier
// first, then to local; a failed local write is logged and ignored.
package tiered

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/remotecache"
	"github.com/unkn0wn-root/remotecache/envelope"
	"github.com/unkn0wn-root/remotecache/internal/util"
	"github.com/unkn0wn-root/remotecache/internal/wire"
	"github.com/unkn0wn-root/remotecache/provider"
)

type Options struct {
	Local     provider.Provider     // required
	Remote    remotecache.Connector // required
	Allocator remotecache.Allocator // required; local hits are copied into it
	LocalTTL  time.Duration         // 0 => provider default
	Logger    remotecache.Logger    // nil => NopLogger
}

type Cache struct {
	local  provider.Provider
	remote remotecache.Connector
	alloc  remotecache.Allocator
	ttl    time.Duration
	log    remotecache.Logger
	codec  envelope.Binary
}

func New(opts Options) (*Cache, error) {
	if opts.Local == nil || opts.Remote == nil || opts.Allocator == nil {
		return nil, errors.New("tiered: Local, Remote and Allocator are required")
	}
	c := &Cache{local: opts.Local, remote: opts.Remote, alloc: opts.Allocator, ttl: opts.LocalTTL, log: opts.Logger}
	if c.log == nil {
		c.log = remotecache.NopLogger{}
	}
	return c, nil
}

// Get serves from local when possible, otherwise from the remote tier,
// filling local on a remote hit.
func (c *Cache) Get(ctx context.Context, key remotecache.CacheKey) (remotecache.MemoryObject, bool, error) {
	if obj, ok := c.getLocal(ctx, key.String()); ok {
		return obj, true, nil
	}
	obj, ok, err := c.remote.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	c.fill(ctx, key.String(), obj)
	return obj, true, nil
}

// Put writes through: remote first, then local.
func (c *Cache) Put(ctx context.Context, key remotecache.CacheKey, obj remotecache.MemoryObject) error {
	if err := c.remote.Put(ctx, key, obj); err != nil {
		return err
	}
	c.fill(ctx, key.String(), obj)
	return nil
}

func (c *Cache) Exists(ctx context.Context, key remotecache.CacheKey) (bool, error) {
	if _, ok, err := c.local.Get(ctx, key.String()); err == nil && ok {
		return true, nil
	}
	return c.remote.Exists(ctx, key)
}

// Contains counts keys held by either tier. Only local misses reach the
// remote tier, in one batched call.
func (c *Cache) Contains(ctx context.Context, keys []remotecache.CacheKey) (int, error) {
	var hits int
	var misses []remotecache.CacheKey
	var names []string
	for _, k := range keys {
		if _, ok, err := c.local.Get(ctx, k.String()); err == nil && ok {
			hits++
			continue
		}
		misses = append(misses, k)
		names = append(names, k.String())
	}
	if len(misses) == 0 {
		return hits, nil
	}
	n, err := c.remote.BatchedContains(ctx, util.LookupID("tiered", names), misses, false)
	return hits + n, err
}

// Invalidate drops key from the local tier only; remote entries expire by TTL.
func (c *Cache) Invalidate(ctx context.Context, key remotecache.CacheKey) error {
	return c.local.Del(ctx, key.String())
}

// Close closes both tiers.
func (c *Cache) Close(ctx context.Context) error {
	return errors.Join(c.remote.Close(ctx), c.local.Close(ctx))
}

func (c *Cache) getLocal(ctx context.Context, key string) (remotecache.MemoryObject, bool) {
	b, ok, err := c.local.Get(ctx, key)
	if err != nil {
		c.log.Warn("tiered local get failed", remotecache.Fields{"key": key, "err": err})
		return nil, false
	}
	if !ok {
		return nil, false
	}

	metaRaw, payload, err := wire.DecodeFrame(b)
	var md envelope.Metadata
	if err == nil {
		md, err = c.codec.Decode(metaRaw)
	}
	if err == nil && md.Length != len(payload) {
		err = wire.ErrCorrupt
	}
	if err != nil {
		c.log.Warn("tiered local entry corrupt, dropping", remotecache.Fields{"key": key, "err": err})
		_ = c.local.Del(ctx, key)
		return nil, false
	}

	obj := c.alloc.Allocate(md.Shape, md.DType, md.Format)
	if obj == nil {
		return nil, false
	}
	dst := obj.Bytes()
	if len(dst) < len(payload) {
		obj.Release()
		return nil, false
	}
	copy(dst, payload)
	return obj, true
}

func (c *Cache) fill(ctx context.Context, key string, obj remotecache.MemoryObject) {
	payload := obj.Bytes()
	meta, err := c.codec.Encode(envelope.Metadata{
		Length: len(payload),
		Shape:  obj.Shape(),
		DType:  obj.DType(),
		Format: obj.Format(),
	})
	if err != nil {
		c.log.Warn("tiered local encode failed", remotecache.Fields{"key": key, "err": err})
		return
	}
	ok, err := c.local.Set(ctx, key, wire.EncodeFrame(meta, payload), c.ttl)
	if err != nil || !ok {
		c.log.Debug("tiered local set rejected", remotecache.Fields{"key": key, "err": err})
	}
}
