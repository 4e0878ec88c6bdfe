// Package signal binds an application value to a proof: the value is hashed with keccak-256
// and shifted so it always fits the BN254 scalar field.
package signal

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Default is the signal used when the caller provides none
const Default = 1

var (
	// ErrValueOutOfRange is returned for values that do not fit a 256-bit word
	ErrValueOutOfRange = errors.New("signal: value out of range")

	two256    = new(big.Int).Lsh(big.NewInt(1), 256)
	minSigned = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
)

// Hash returns keccak256(word(v)) >> 3, where word is the 32-byte big-endian two's
// complement of v. Accepted values are -2^255 <= v < 2^256.
func Hash(v *big.Int) (*big.Int, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil value", ErrValueOutOfRange)
	}
	if v.Cmp(minSigned) < 0 || v.Cmp(two256) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrValueOutOfRange, v)
	}

	word := new(big.Int).Set(v)
	if word.Sign() < 0 {
		word.Add(word, two256)
	}

	return digest(word.FillBytes(make([]byte, 32))), nil
}

// HashBytes hashes b left padded with zeros to 32 bytes
func HashBytes(b []byte) (*big.Int, error) {
	if len(b) > 32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrValueOutOfRange, len(b))
	}
	word := make([]byte, 32)
	copy(word[32-len(b):], b)
	return digest(word), nil
}

// Parse reads a decimal or 0x prefixed hexadecimal integer, optionally negative
func Parse(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")

	base := 10
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		base = 16
		digits = digits[2:]
	}

	v, ok := new(big.Int).SetString(digits, base)
	if !ok || digits == "" || strings.HasPrefix(digits, "+") || strings.HasPrefix(digits, "-") {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrValueOutOfRange, s)
	}
	if neg {
		v.Neg(v)
	}
	return v, nil
}

// HashString parses s and hashes it; an empty string hashes Default
func HashString(s string) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return Hash(big.NewInt(Default))
	}
	v, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return Hash(v)
}

func digest(word []byte) *big.Int {
	h := new(big.Int).SetBytes(crypto.Keccak256(word))
	return h.Rsh(h, 3)
}
