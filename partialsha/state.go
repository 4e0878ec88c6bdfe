package partialsha

import (
	"crypto/sha256"
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
)

// BlockSize of SHA-256 in bytes
const BlockSize = 64

// layout of the standard library SHA-256 state snapshot:
// magic || h[0..7] (big-endian) || buffered block || processed length (big-endian)
const (
	stateMagic = "sha\x03"
	stateSize  = len(stateMagic) + 8*4 + BlockSize + 8
)

// IV is the SHA-256 initial hash state
var IV = [8]uint32{
	0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
	0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
}

// Resume runs the SHA-256 compression function over blocks, starting from state.
// blocks must already be padded; its length must be a multiple of BlockSize.
func Resume(state [8]uint32, blocks []byte) ([8]uint32, error) {
	if len(blocks)%BlockSize != 0 {
		return state, fmt.Errorf("partialsha: %d bytes is not a whole number of blocks", len(blocks))
	}

	h := sha256.New()
	u, ok := h.(encoding.BinaryUnmarshaler)
	if !ok {
		return state, errors.New("partialsha: sha256 state cannot be restored")
	}
	if err := u.UnmarshalBinary(encodeState(state)); err != nil {
		return state, fmt.Errorf("partialsha: restore state: %w", err)
	}

	// whole blocks only: the digest never buffers, every block goes through compression
	h.Write(blocks)

	return currentState(h)
}

// StateBytes serializes the state big-endian, word by word (32 bytes)
func StateBytes(state [8]uint32) []byte {
	out := make([]byte, 0, 32)
	for _, w := range state {
		out = binary.BigEndian.AppendUint32(out, w)
	}
	return out
}

// Digest returns the final digest carried by a state that absorbed the whole padded message
func Digest(state [8]uint32) [sha256.Size]byte {
	var d [sha256.Size]byte
	copy(d[:], StateBytes(state))
	return d
}

func encodeState(state [8]uint32) []byte {
	b := make([]byte, 0, stateSize)
	b = append(b, stateMagic...)
	for _, w := range state {
		b = binary.BigEndian.AppendUint32(b, w)
	}
	b = append(b, make([]byte, BlockSize)...)
	// processed length 0 keeps the buffer empty
	b = binary.BigEndian.AppendUint64(b, 0)
	return b
}

func currentState(h any) ([8]uint32, error) {
	var state [8]uint32

	m, ok := h.(encoding.BinaryMarshaler)
	if !ok {
		return state, errors.New("partialsha: sha256 state cannot be exported")
	}
	b, err := m.MarshalBinary()
	if err != nil {
		return state, fmt.Errorf("partialsha: export state: %w", err)
	}
	if len(b) != stateSize || string(b[:len(stateMagic)]) != stateMagic {
		return state, errors.New("partialsha: unexpected sha256 state layout")
	}

	b = b[len(stateMagic):]
	for i := range state {
		state[i] = binary.BigEndian.Uint32(b[4*i:])
	}
	return state, nil
}
