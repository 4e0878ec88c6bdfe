package common

import (
	"fmt"
	"strconv"

	"github.com/consensys/gnark/std/math/uints"
)

// BytesToU8Array converts bytes to []uints.U8, zero padded to size
func BytesToU8Array(b []byte, size int) []uints.U8 {
	result := make([]uints.U8, size)
	for i := range result {
		if i < len(b) {
			result[i] = uints.NewU8(b[i])
		} else {
			result[i] = uints.NewU8(0)
		}
	}
	return result
}

// DecimalBytes parses decimal byte strings as found in witness records
func DecimalBytes(values []string) ([]byte, error) {
	out := make([]byte, len(values))
	for i, v := range values {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = byte(n)
	}
	return out, nil
}
