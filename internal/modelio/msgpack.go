package modelio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// IsMsgpack reports whether path names a msgpack model file.
func IsMsgpack(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".msgpack" || ext == ".mpk"
}

// MarshalPair encodes p as msgpack.
func MarshalPair(p Pair) ([]byte, error) {
	data, err := msgpack.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize model: %w", err)
	}
	return data, nil
}

// UnmarshalPair decodes a msgpack pair. The models are not validated until
// Pair.Models is called.
func UnmarshalPair(data []byte) (Pair, error) {
	var p Pair
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return Pair{}, fmt.Errorf("failed to parse model: %w", err)
	}
	return p, nil
}
