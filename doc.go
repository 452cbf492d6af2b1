// Package remotecache is the remote tier of a two-level object cache: a
// connector that stores large binary payloads and their small metadata
// envelopes in Redis, deployed as a single node, a primary/replica pair
// (or sentinel group) or a cluster.
//
// Components:
//   - Connector: get/put/exists plus batched variants. All calls run on one
//     executor goroutine, ordered by priority (peek > prefetch > get > put).
//   - Allocator / MemoryObject: caller-owned buffers fetched payloads are
//     copied into (see memobj for a budgeted implementation).
//   - envelope.Codec: serializes {length, shape, dtype, format}.
//
// Keys:
//
//	<key>:metadata    <key>:kv_bytes       standalone, replicated
//	{<key>}:metadata  {<key>}:kv_bytes     sharded (hash tag co-locates the pair)
//
// A put pipelines the payload ahead of the metadata, so visible metadata
// never precedes its payload. The reverse (metadata without payload, after
// an eviction or on a lagging replica) reads as a miss.
//
// Usage:
//
//	rc, err := remotecache.New(ctx, remotecache.Options{
//		Config:    remotecache.Config{Mode: remotecache.ModeSharded, Endpoints: seeds},
//		Allocator: memobj.NewAllocator(1 << 30),
//	})
//	...
//	obj, ok, err := rc.Get(ctx, key)
//	if ok {
//		defer obj.Release()
//	}
package remotecache
