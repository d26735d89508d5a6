package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

func encodeJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return b, nil
}

func decodeJSON(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// be64 encodes v big-endian so numeric order equals byte order.
func be64(v uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], v)
	return k[:]
}

func readBE64(b []byte) (uint64, error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("short uint64 field: %d bytes", len(b))
	}
	return binary.BigEndian.Uint64(b[:8]), nil
}
