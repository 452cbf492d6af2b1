// Package batch plans multi-key operations: it splits a key list into
// groups, runs them sequentially or fanned out, and restores input order.
package batch

import "golang.org/x/sync/errgroup"

// DefaultChunk bounds the keys per multi-get when the store is not sharded.
const DefaultChunk = 256

// Group is a set of positions into the caller's key list. Slot is -1 for
// plain chunks.
type Group struct {
	Slot    int
	Indices []int
}

// Chunks splits [0,n) into contiguous groups of at most size.
func Chunks(n, size int) []Group {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultChunk
	}
	out := make([]Group, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		idx := make([]int, hi-lo)
		for i := range idx {
			idx[i] = lo + i
		}
		out = append(out, Group{Slot: -1, Indices: idx})
	}
	return out
}

// BySlot groups [0,n) by slotOf(i). Groups come out in order of first
// appearance and indices stay ascending inside a group.
func BySlot(n int, slotOf func(i int) int) []Group {
	if n <= 0 {
		return nil
	}
	pos := make(map[int]int)
	var out []Group
	for i := 0; i < n; i++ {
		s := slotOf(i)
		gi, ok := pos[s]
		if !ok {
			gi = len(out)
			pos[s] = gi
			out = append(out, Group{Slot: s})
		}
		out[gi].Indices = append(out[gi].Indices, i)
	}
	return out
}

// Run calls fn(i, groups[i]) for every group, one after another or all at
// once, and returns the per-group errors. A failing group never stops the
// others.
func Run(groups []Group, parallel bool, fn func(i int, g Group) error) []error {
	errs := make([]error, len(groups))
	if !parallel || len(groups) < 2 {
		for i, g := range groups {
			errs[i] = fn(i, g)
		}
		return errs
	}
	var eg errgroup.Group
	for i, g := range groups {
		i, g := i, g
		eg.Go(func() error {
			errs[i] = fn(i, g)
			return nil
		})
	}
	_ = eg.Wait()
	return errs
}

// Survivors returns vals[i] for every ok[i], preserving order.
func Survivors[T any](vals []T, ok []bool) []T {
	out := make([]T, 0, len(vals))
	for i, v := range vals {
		if ok[i] {
			out = append(out, v)
		}
	}
	return out
}
