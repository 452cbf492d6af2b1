package envelope

import "encoding/json"

// JSON is the human-readable codec; useful when other tooling inspects keys.
type JSON struct{}

func (JSON) Encode(m Metadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (JSON) Decode(b []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return Metadata{}, err
	}
	return m, m.Validate()
}
