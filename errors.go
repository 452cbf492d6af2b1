package remotecache

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotReady       = errors.New("remotecache: connector not ready")
	ErrClosed         = errors.New("remotecache: connector closed")
	ErrLengthMismatch = errors.New("remotecache: keys and objects differ in length")

	// ErrPayloadMissing marks metadata found without its payload, e.g. after
	// an eviction or on a lagging replica. Reads report it as a miss.
	ErrPayloadMissing = errors.New("remotecache: metadata present but payload missing")

	// ErrAllocation is reported when the Allocator returned nil.
	ErrAllocation = errors.New("remotecache: local allocation failed")
)

// ConnectionSetupError is returned by New when the store could not be
// reached within Config.ConnectTimeout. It is never retried internally.
type ConnectionSetupError struct {
	Mode      Mode
	Endpoints []string
	Err       error
}

func (e *ConnectionSetupError) Error() string {
	return fmt.Sprintf("remotecache: connect %s [%s]: %v", e.Mode, strings.Join(e.Endpoints, ","), e.Err)
}

func (e *ConnectionSetupError) Unwrap() error { return e.Err }

// DecodeError reports a metadata envelope that could not be decoded or
// that disagrees with its payload.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("remotecache: decode metadata for %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// OperationError reports a failed store round trip.
type OperationError struct {
	Op   string
	Keys int
	Err  error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("remotecache: %s (%d keys): %v", e.Op, e.Keys, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// BatchError collects the groups or items of a batched call that failed.
// The rest of the batch was applied.
type BatchError struct {
	Op     string
	Failed []error
}

func (e *BatchError) Error() string {
	switch len(e.Failed) {
	case 0:
		return fmt.Sprintf("remotecache: %s: unknown error", e.Op)
	case 1:
		return fmt.Sprintf("remotecache: %s: %v", e.Op, e.Failed[0])
	default:
		return fmt.Sprintf("remotecache: %s: %d failures, first: %v", e.Op, len(e.Failed), e.Failed[0])
	}
}

func (e *BatchError) Unwrap() []error { return e.Failed }
