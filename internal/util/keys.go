package util

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// LookupID returns a deterministic id for a set of keys: prefix plus the
// first 16 hex chars of a hash over the sorted members.
func LookupID(prefix string, keys []string) string {
	s := make([]string, len(keys))
	copy(s, keys)
	sort.Strings(s)
	sum := sha256.Sum256([]byte(strings.Join(s, "\x00")))
	return fmt.Sprintf("%s:%x", prefix, sum[:8])
}
