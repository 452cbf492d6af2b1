package remotecache

import (
	"context"

	"github.com/unkn0wn-root/remotecache/envelope"
)

// Connector is the remote tier API. Every call is queued on one executor
// goroutine by priority and the caller waits for its result; ctx bounds the
// wait, not the operation.
type Connector interface {
	// Exists reports whether key's metadata is present.
	Exists(ctx context.Context, key CacheKey) (bool, error)

	// Get fetches metadata and payload in one round trip and copies the
	// payload into a freshly allocated object. Misses, evicted payloads and
	// store failures all return ok=false with a nil error.
	Get(ctx context.Context, key CacheKey) (obj MemoryObject, ok bool, err error)

	// Put writes the payload, then the metadata, in one pipeline.
	// obj stays owned by the caller.
	Put(ctx context.Context, key CacheKey, obj MemoryObject) error

	// BatchedPut is best-effort: a failing shard group is reported in a
	// *BatchError and the rest are still written.
	BatchedPut(ctx context.Context, keys []CacheKey, objs []MemoryObject) error

	// BatchedContains counts keys whose metadata exists. pin is accepted
	// for interface parity; the remote tier does not pin.
	BatchedContains(ctx context.Context, lookupID string, keys []CacheKey, pin bool) (int, error)

	// BatchedGet returns the objects that could be fetched, in input order;
	// missing keys are skipped.
	BatchedGet(ctx context.Context, lookupID string, keys []CacheKey) ([]MemoryObject, error)

	// Close drains queued operations and releases the connections.
	// Safe to call multiple times.
	Close(ctx context.Context) error

	State() State
}

// Options configure a Connector.
// Only Endpoints and Allocator are required; others have sensible defaults.
type Options struct {
	Config

	Allocator Allocator      // required
	Codec     envelope.Codec // nil => envelope.Binary{}
	Logger    Logger         // nil => NopLogger
	Hooks     Hooks          // nil => NopHooks

	// ClusterSlots pins the shard layout in sharded mode; nil => discovery.
	ClusterSlots ClusterSlotsFunc
}

// New connects to the store and returns a ready Connector. Connection setup
// is bounded by Config.ConnectTimeout; failure is a *ConnectionSetupError.
func New(ctx context.Context, opts Options) (Connector, error) {
	return newConnector(ctx, opts)
}
