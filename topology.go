package remotecache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/remotecache/internal/batch"
	"github.com/unkn0wn-root/remotecache/internal/slot"
)

// ClusterSlotsFunc supplies a static shard layout instead of CLUSTER SLOTS
// discovery (proxies, fixed deployments, tests).
type ClusterSlotsFunc func(context.Context) ([]redis.ClusterSlot, error)

// topology is what differs between deployments: how to connect, which
// client serves reads and writes, how keys are named and how a batch is cut.
type topology interface {
	mode() Mode
	connect(ctx context.Context) error
	reader() redis.Cmdable
	writer() redis.Cmdable
	pair(key string) KeyPair
	// plan groups pairs for one batched call. parallel reports whether the
	// groups may be issued concurrently.
	plan(pairs []KeyPair, chunk int) (groups []batch.Group, parallel bool)
	close() error
}

func newTopology(cfg Config, slots ClusterSlotsFunc) topology {
	switch cfg.Mode {
	case ModeReplicated:
		return newReplicated(cfg)
	case ModeSharded:
		return newSharded(cfg, slots)
	default:
		return newStandalone(cfg)
	}
}

func clientOptions(cfg Config, addr string) *redis.Options {
	return &redis.Options{
		Addr:      addr,
		Username:  cfg.Username,
		Password:  cfg.Password,
		DB:        cfg.Database,
		PoolSize:  cfg.MaxConnections,
		TLSConfig: cfg.tlsConfig(),
	}
}

func closeClient(c interface{ Close() error }) error {
	if err := c.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}

// standalone: one node serves everything.
type standalone struct {
	rdb *redis.Client
}

func newStandalone(cfg Config) *standalone {
	return &standalone{rdb: redis.NewClient(clientOptions(cfg, cfg.Endpoints[0]))}
}

func (t *standalone) mode() Mode                        { return ModeStandalone }
func (t *standalone) connect(ctx context.Context) error { return t.rdb.Ping(ctx).Err() }
func (t *standalone) reader() redis.Cmdable             { return t.rdb }
func (t *standalone) writer() redis.Cmdable             { return t.rdb }
func (t *standalone) pair(key string) KeyPair           { return PairFor(key, false) }
func (t *standalone) close() error                      { return closeClient(t.rdb) }
func (t *standalone) plan(p []KeyPair, chunk int) ([]batch.Group, bool) {
	return batch.Chunks(len(p), chunk), false
}

// replicated: writes go to the primary, reads to a replica. Without a
// replica endpoint the primary serves reads too.
type replicated struct {
	primary *redis.Client
	replica *redis.Client
}

func newReplicated(cfg Config) *replicated {
	if cfg.SentinelMaster != "" {
		fo := func(replicaOnly bool) *redis.FailoverOptions {
			return &redis.FailoverOptions{
				MasterName:    cfg.SentinelMaster,
				SentinelAddrs: cfg.Endpoints,
				Username:      cfg.Username,
				Password:      cfg.Password,
				DB:            cfg.Database,
				PoolSize:      cfg.MaxConnections,
				TLSConfig:     cfg.tlsConfig(),
				ReplicaOnly:   replicaOnly,
			}
		}
		return &replicated{
			primary: redis.NewFailoverClient(fo(false)),
			replica: redis.NewFailoverClient(fo(true)),
		}
	}
	t := &replicated{primary: redis.NewClient(clientOptions(cfg, cfg.Endpoints[0]))}
	if len(cfg.Endpoints) > 1 {
		t.replica = redis.NewClient(clientOptions(cfg, cfg.Endpoints[1]))
	}
	return t
}

func (t *replicated) mode() Mode { return ModeReplicated }

func (t *replicated) connect(ctx context.Context) error {
	if err := t.primary.Ping(ctx).Err(); err != nil {
		return err
	}
	if t.replica != nil {
		return t.replica.Ping(ctx).Err()
	}
	return nil
}

func (t *replicated) reader() redis.Cmdable {
	if t.replica != nil {
		return t.replica
	}
	return t.primary
}

func (t *replicated) writer() redis.Cmdable   { return t.primary }
func (t *replicated) pair(key string) KeyPair { return PairFor(key, false) }
func (t *replicated) plan(p []KeyPair, chunk int) ([]batch.Group, bool) {
	return batch.Chunks(len(p), chunk), false
}

func (t *replicated) close() error {
	var err error
	if t.replica != nil {
		err = closeClient(t.replica)
	}
	return errors.Join(err, closeClient(t.primary))
}

// sharded: Redis Cluster. Keys carry a hash tag so a pair shares a slot,
// and batches are split per slot and issued concurrently.
type sharded struct {
	rdb *redis.ClusterClient
}

func newSharded(cfg Config, slots ClusterSlotsFunc) *sharded {
	return &sharded{rdb: redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        cfg.Endpoints,
		ClusterSlots: slots,
		Username:     cfg.Username,
		Password:     cfg.Password,
		PoolSize:     cfg.MaxConnections,
		TLSConfig:    cfg.tlsConfig(),
	})}
}

func (t *sharded) mode() Mode { return ModeSharded }

// connect loads the slot map and pings every shard primary.
func (t *sharded) connect(ctx context.Context) error {
	return t.rdb.ForEachShard(ctx, func(ctx context.Context, shard *redis.Client) error {
		return shard.Ping(ctx).Err()
	})
}

func (t *sharded) reader() redis.Cmdable   { return t.rdb }
func (t *sharded) writer() redis.Cmdable   { return t.rdb }
func (t *sharded) pair(key string) KeyPair { return PairFor(key, true) }
func (t *sharded) close() error            { return closeClient(t.rdb) }

// plan ignores chunk: the shard count already bounds a group.
func (t *sharded) plan(p []KeyPair, _ int) ([]batch.Group, bool) {
	return batch.BySlot(len(p), func(i int) int { return slot.Of(p[i].Metadata) }), true
}
