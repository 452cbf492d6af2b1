package remotecache

// CacheKey is the logical, content-addressed key of one cached object.
// String must be canonical: equal keys produce equal strings.
type CacheKey interface {
	String() string
}

// StringKey is a CacheKey that is already in canonical form.
type StringKey string

func (k StringKey) String() string { return string(k) }

const (
	metadataSuffix = ":metadata"
	payloadSuffix  = ":kv_bytes"
)

// KeyPair holds the two storage keys backing one logical key.
type KeyPair struct {
	Metadata string
	Payload  string
}

// PairFor derives the storage keys for key. With tagged=true the key is
// wrapped in a {hash tag}, so a cluster places both entries on one shard
// and a single multi-get fetches the pair.
func PairFor(key string, tagged bool) KeyPair {
	if tagged {
		key = "{" + key + "}"
	}
	return KeyPair{Metadata: key + metadataSuffix, Payload: key + payloadSuffix}
}
