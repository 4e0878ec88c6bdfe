package cwb

import (
	"math/bits"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/uints"
)

const (
	// DigestB64Length is the length of a base64 SHA-256 digest
	DigestB64Length = 44
	// MaxRevealLength of the disclosed window in bytes
	MaxRevealLength = 31
)

// Circuit checks that a witness record has the shape a BN254 credential circuit consumes.
// Signature validity itself is proven by the credential circuit, not here.
type Circuit struct {
	// ===== PRIVATE INPUTS =====
	DataPadded               []uints.U8          `gnark:",secret"`
	DataPaddedLength         frontend.Variable   `gnark:",secret"`
	SignedInfo               []uints.U8          `gnark:",secret"`
	SignedInfoLength         frontend.Variable   `gnark:",secret"`
	PrecomputedSHA           []uints.U8          `gnark:",secret"`
	DataHashIndex            frontend.Variable   `gnark:",secret"`
	CertificateDataNodeIndex frontend.Variable   `gnark:",secret"`
	DocumentTypeLength       frontend.Variable   `gnark:",secret"`
	Signature                []frontend.Variable `gnark:",secret"`
	RevealStartIndex         frontend.Variable   `gnark:",secret"`
	RevealEndIndex           frontend.Variable   `gnark:",secret"`

	// ===== PUBLIC INPUTS =====
	PubKey          []frontend.Variable `gnark:",public"`
	NullifierSeed   frontend.Variable   `gnark:",public"`
	SignalHash      frontend.Variable   `gnark:",public"`
	IsRevealEnabled frontend.Variable   `gnark:",public"`

	// circuit shape, not part of the witness
	Selector []byte `gnark:"-"`
	LimbBits int    `gnark:"-"`
}

// New returns a circuit template with the given buffer sizes and limb layout
func New(capacity, signedInfoCapacity, limbBits, limbCount int, selector string) *Circuit {
	return &Circuit{
		DataPadded:     make([]uints.U8, capacity),
		SignedInfo:     make([]uints.U8, signedInfoCapacity),
		PrecomputedSHA: make([]uints.U8, 32),
		Signature:      make([]frontend.Variable, limbCount),
		PubKey:         make([]frontend.Variable, limbCount),
		Selector:       []byte(selector),
		LimbBits:       limbBits,
	}
}

func (c *Circuit) Define(api frontend.API) error {
	assertBytes(api, c.DataPadded)
	assertBytes(api, c.SignedInfo)
	assertBytes(api, c.PrecomputedSHA)

	for i := range c.PubKey {
		api.ToBinary(c.PubKey[i], c.LimbBits)
		api.ToBinary(c.Signature[i], c.LimbBits)
	}

	c.checkDataLength(api)
	c.checkSelector(api)

	// base64 digest inside the signed info
	api.AssertIsLessOrEqual(c.SignedInfoLength, len(c.SignedInfo))
	api.AssertIsLessOrEqual(api.Add(c.DataHashIndex, DigestB64Length), c.SignedInfoLength)

	// '<' + document type + terminator stay inside the data
	api.AssertIsDifferent(c.DocumentTypeLength, 0)
	typeEnd := api.Add(c.CertificateDataNodeIndex, len(c.Selector)+1, c.DocumentTypeLength)
	api.AssertIsLessOrEqual(api.Add(typeEnd, 1), c.DataPaddedLength)

	c.checkReveal(api)

	// seed is a canonical field element, the hash fits 253 bits
	api.ToBinary(c.NullifierSeed)
	api.ToBinary(c.SignalHash, 253)

	return nil
}

// checkDataLength asserts 64 <= length <= capacity, length a multiple of 64 and zero bytes
// after length
func (c *Circuit) checkDataLength(api frontend.API) {
	capacity := len(c.DataPadded)
	lenBits := api.ToBinary(c.DataPaddedLength, bits.Len(uint(capacity)))
	for i := 0; i < 6; i++ {
		api.AssertIsEqual(lenBits[i], 0)
	}
	api.AssertIsDifferent(c.DataPaddedLength, 0)
	api.AssertIsLessOrEqual(c.DataPaddedLength, capacity)

	blocks := api.FromBinary(lenBits[6:]...)
	passed := frontend.Variable(0)
	for j := 0; j*64 < capacity; j++ {
		// passed turns 1 at the first block past the data and stays 1
		atEnd := api.IsZero(api.Sub(blocks, j))
		passed = api.Add(passed, api.Mul(api.Sub(1, passed), atEnd))
		for i := j * 64; i < (j+1)*64 && i < capacity; i++ {
			api.AssertIsEqual(api.Mul(passed, c.DataPadded[i].Val), 0)
		}
	}
}

// checkSelector asserts the selector sits at CertificateDataNodeIndex, inside the first block
func (c *Circuit) checkSelector(api frontend.API) {
	api.AssertIsLessOrEqual(c.CertificateDataNodeIndex, 63)

	window := min(64+len(c.Selector), len(c.DataPadded))
	for k, want := range c.Selector {
		got := readByteAt(api, c.DataPadded[:window], api.Add(c.CertificateDataNodeIndex, k))
		api.AssertIsEqual(got, int(want))
	}
}

// checkReveal asserts a boolean flag, 0 <= start < end, end - start + 1 <= 31 when enabled
// and zero offsets when disabled
func (c *Circuit) checkReveal(api frontend.API) {
	api.AssertIsBoolean(c.IsRevealEnabled)
	disabled := api.Sub(1, c.IsRevealEnabled)

	api.AssertIsEqual(api.Mul(disabled, c.RevealStartIndex), 0)
	api.AssertIsEqual(api.Mul(disabled, c.RevealEndIndex), 0)

	gap := api.Mul(c.IsRevealEnabled, api.Sub(c.RevealEndIndex, c.RevealStartIndex, 1))
	api.AssertIsLessOrEqual(gap, MaxRevealLength-2)
	api.AssertIsLessOrEqual(c.RevealStartIndex, len(c.DataPadded))

	end := api.Add(c.CertificateDataNodeIndex, c.RevealEndIndex, 1)
	api.AssertIsLessOrEqual(api.Mul(c.IsRevealEnabled, end), c.DataPaddedLength)
}

func assertBytes(api frontend.API, data []uints.U8) {
	for i := range data {
		api.ToBinary(data[i].Val, 8)
	}
}

// readByteAt selects data[index] for a variable index
func readByteAt(api frontend.API, data []uints.U8, index frontend.Variable) frontend.Variable {
	result := frontend.Variable(0)
	for i := range data {
		isMatch := api.IsZero(api.Sub(index, i))
		result = api.Select(isMatch, data[i].Val, result)
	}
	return result
}
