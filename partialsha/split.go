// Package partialsha splits a SHA-256 computation in two: every block before a selector is
// compressed off-circuit into an intermediate state, and only the bounded remainder is left
// to the circuit. Resuming compression from the state over the remainder reproduces the
// digest of the whole message, so the circuit cost only depends on the remainder capacity.
package partialsha

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// DefaultCapacity is the default remainder capacity in bytes (24 blocks)
const DefaultCapacity = 512 * 3

var (
	// ErrSelectorNotFound is returned when the selector does not occur in the padded message
	ErrSelectorNotFound = errors.New("partialsha: selector not found")

	// ErrCapacityExceeded is returned when the data from the selector block onward does not
	// fit into the remainder capacity
	ErrCapacityExceeded = errors.New("partialsha: remainder exceeds capacity")
)

// Result of a precompute/remainder split
type Result struct {
	// State after compressing every block before the selector block
	State [8]uint32
	// Remainder starts at the block holding the selector; zero filled up to the capacity
	Remainder []byte
	// RemainderLength is the number of padded message bytes in Remainder
	RemainderLength int
	// SelectorIndex is the selector offset inside Remainder
	SelectorIndex int
	// PrecomputedLength is the number of bytes folded into State
	PrecomputedLength int
}

// PaddedLength is the smallest multiple of BlockSize holding msgLen bytes plus padding
func PaddedLength(msgLen int) int {
	return (msgLen + 9 + BlockSize - 1) / BlockSize * BlockSize
}

// Pad appends the SHA-256 padding to msg (0x80, zeros, 64-bit big-endian bit length) and
// zero fills the result up to size. It returns the buffer and the padded message length.
func Pad(msg []byte, size int) ([]byte, int, error) {
	paddedLen := PaddedLength(len(msg))
	if size < paddedLen {
		return nil, 0, fmt.Errorf("partialsha: padded message of %d bytes does not fit %d bytes", paddedLen, size)
	}

	out := make([]byte, size)
	copy(out, msg)
	out[len(msg)] = 0x80
	binary.BigEndian.PutUint64(out[paddedLen-8:paddedLen], uint64(len(msg))*8)

	return out, paddedLen, nil
}

// Split cuts a padded message at the block holding the first occurrence of selector.
// An empty selector splits at offset 0.
func Split(padded []byte, paddedLength int, selector []byte, capacity int) (*Result, error) {
	if capacity <= 0 || capacity%BlockSize != 0 {
		return nil, fmt.Errorf("partialsha: capacity %d is not a positive multiple of %d", capacity, BlockSize)
	}
	if paddedLength <= 0 || paddedLength%BlockSize != 0 || paddedLength > len(padded) {
		return nil, fmt.Errorf("partialsha: invalid padded length %d", paddedLength)
	}

	selectorIndex := 0
	if len(selector) > 0 {
		selectorIndex = bytes.Index(padded[:paddedLength], selector)
		if selectorIndex < 0 {
			return nil, fmt.Errorf("%w: %q", ErrSelectorNotFound, selector)
		}
	}

	cut := selectorIndex / BlockSize * BlockSize
	remainderLength := paddedLength - cut
	if remainderLength > capacity {
		return nil, fmt.Errorf("%w: %d bytes from offset %d, capacity %d",
			ErrCapacityExceeded, remainderLength, cut, capacity)
	}

	state, err := Resume(IV, padded[:cut])
	if err != nil {
		return nil, err
	}

	remainder := make([]byte, capacity)
	copy(remainder, padded[cut:paddedLength])

	return &Result{
		State:             state,
		Remainder:         remainder,
		RemainderLength:   remainderLength,
		SelectorIndex:     selectorIndex - cut,
		PrecomputedLength: cut,
	}, nil
}

// Precompute pads payload into max(capacity, PaddedLength(len(payload))) bytes and splits it
// at selector.
func Precompute(payload, selector []byte, capacity int) (*Result, error) {
	size := max(capacity, PaddedLength(len(payload)))

	padded, paddedLength, err := Pad(payload, size)
	if err != nil {
		return nil, err
	}

	return Split(padded, paddedLength, selector, capacity)
}
