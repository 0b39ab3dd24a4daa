// Package sqlite provides the SQLite checkpoint store
package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"
)

// float64ToBytes encodes a float64 slice as little-endian bytes
func float64ToBytes(f []float64) []byte {
	if len(f) == 0 {
		return nil
	}
	b := make([]byte, len(f)*8)
	for i, v := range f {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

// bytesToFloat64 decodes little-endian bytes into a fresh float64 slice
func bytesToFloat64(b []byte) ([]float64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("invalid blob length %d for float64 array", len(b))
	}
	f := make([]float64, len(b)/8)
	for i := range f {
		f[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return f, nil
}
