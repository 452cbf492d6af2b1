package envelope

import "fmt"

// Limit wraps another codec to enforce a maximum encoded envelope size at
// Decode time. Encode is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Envelopes are tiny; anything large under a metadata key was written by
// someone else and is rejected before Inner parses it.
type Limit struct {
	Inner     Codec
	MaxDecode int
}

func (c Limit) Encode(m Metadata) ([]byte, error) { return c.Inner.Encode(m) }
func (c Limit) Decode(b []byte) (Metadata, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		return Metadata{}, fmt.Errorf("envelope too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
