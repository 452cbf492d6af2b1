package envelope

// Codec encodes/decodes envelopes to []byte for storage.
// Decode must return an error for input it did not produce.
type Codec interface {
	Encode(Metadata) ([]byte, error)
	Decode([]byte) (Metadata, error)
}
