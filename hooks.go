package remotecache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The connector calls them from its executor goroutine.
type Hooks interface {
	// Metadata was found without its payload (eviction, replica lag).
	PayloadMissing(key string)

	// A metadata envelope failed to decode or did not fit its payload.
	DecodeFailed(key string, err error)

	// The Allocator returned nil; size is the payload length in bytes.
	AllocationFailed(key string, size int)

	// A store round trip failed. keys is the number of logical keys involved.
	OperationFailed(op string, keys int, err error)

	// RepairOnRead deleted a metadata key whose payload was gone.
	MetadataRepaired(key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) PayloadMissing(string)              {}
func (NopHooks) DecodeFailed(string, error)         {}
func (NopHooks) AllocationFailed(string, int)       {}
func (NopHooks) OperationFailed(string, int, error) {}
func (NopHooks) MetadataRepaired(string)            {}
