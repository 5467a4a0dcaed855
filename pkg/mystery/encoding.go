package mystery

import (
	"bytes"
	"encoding/gob"
)

// stored has Mystery's fields without its methods, so gob encodes the
// plain struct instead of calling back into MarshalBinary.
type stored Mystery

// MarshalBinary encodes the mystery with gob while holding its lock.
func (m *Mystery) MarshalBinary() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode((*stored)(m)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a mystery written by MarshalBinary.
func (m *Mystery) UnmarshalBinary(data []byte) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode((*stored)(m)); err != nil {
		return err
	}
	m.init()
	return nil
}
