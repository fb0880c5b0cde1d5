package model

import (
	"encoding/binary"
	"math"
)

func bitsToFloat64(bits uint64) float64 {
	return math.Float64frombits(bits)
}

// EncodeFloat64Record writes values as consecutive little-endian float64
// fields into a fresh byte slice, matching the layout Float64Schema
// expects. Used by the reference producer and by tests that need to
// fabricate point bytes.
func EncodeFloat64Record(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], math.Float64bits(v))
	}
	return buf
}
