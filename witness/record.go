// Package witness assembles the fixed-shape circuit input of a signed XML credential.
package witness

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/mynextid/zk-xmldsig/partialsha"
	"github.com/mynextid/zk-xmldsig/reveal"
	"github.com/mynextid/zk-xmldsig/signal"
	"github.com/mynextid/zk-xmldsig/verifier"
	"github.com/mynextid/zk-xmldsig/xmldsig"
)

// Record is the circuit input; every value is a decimal string
type Record struct {
	DataPadded               []string `json:"dataPadded"`
	DataPaddedLength         string   `json:"dataPaddedLength"`
	SignedInfo               []string `json:"signedInfo"`
	PrecomputedSHA           []string `json:"precomputedSHA"`
	DataHashIndex            string   `json:"dataHashIndex"`
	CertificateDataNodeIndex string   `json:"certificateDataNodeIndex"`
	DocumentTypeLength       string   `json:"documentTypeLength"`
	Signature                []string `json:"signature"`
	PubKey                   []string `json:"pubKey"`
	IsRevealEnabled          string   `json:"isRevealEnabled"`
	RevealStartIndex         string   `json:"revealStartIndex"`
	RevealEndIndex           string   `json:"revealEndIndex"`
	NullifierSeed            string   `json:"nullifierSeed"`
	SignalHash               string   `json:"signalHash"`
}

// Inputs are the outputs of the pipeline stages
type Inputs struct {
	Info         *xmldsig.SignatureInfo
	Verification *verifier.Result
	Precompute   *partialsha.Result
	Window       reveal.Window
	DocumentType []byte
	SignalHash   *big.Int
}

// Assemble lays the stage outputs out as a Record
func Assemble(in Inputs, params Params) (*Record, error) {
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return nil, err
	}
	if in.Info == nil || in.Verification == nil || in.Precompute == nil || in.SignalHash == nil {
		return nil, fmt.Errorf("witness: incomplete inputs")
	}

	signature, err := Limbs(in.Info.SignatureValue, params.LimbBits, params.LimbCount)
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	pubKey, err := Limbs(in.Info.Modulus, params.LimbBits, params.LimbCount)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}

	revealEnabled := "0"
	if in.Window.Enabled {
		revealEnabled = "1"
	}

	return &Record{
		DataPadded:               byteStrings(in.Precompute.Remainder),
		DataPaddedLength:         strconv.Itoa(in.Precompute.RemainderLength),
		SignedInfo:               byteStrings(in.Info.SignedInfo),
		PrecomputedSHA:           byteStrings(partialsha.StateBytes(in.Precompute.State)),
		DataHashIndex:            strconv.Itoa(in.Verification.DigestIndex),
		CertificateDataNodeIndex: strconv.Itoa(in.Precompute.SelectorIndex),
		DocumentTypeLength:       strconv.Itoa(len(in.DocumentType)),
		Signature:                decimalStrings(signature),
		PubKey:                   decimalStrings(pubKey),
		IsRevealEnabled:          revealEnabled,
		RevealStartIndex:         strconv.Itoa(in.Window.Start),
		RevealEndIndex:           strconv.Itoa(in.Window.End),
		NullifierSeed:            params.NullifierSeed.String(),
		SignalHash:               in.SignalHash.String(),
	}, nil
}

// Limbs splits v into count limbs of width bits, least significant first
func Limbs(v *big.Int, width, count int) ([]*big.Int, error) {
	if width <= 0 || count <= 0 {
		return nil, fmt.Errorf("witness: invalid limb layout %dx%d", width, count)
	}
	if v == nil || v.Sign() < 0 || v.BitLen() > width*count {
		return nil, fmt.Errorf("%w: value does not fit %d limbs of %d bits", signal.ErrValueOutOfRange, count, width)
	}

	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(width)), big.NewInt(1))
	rest := new(big.Int).Set(v)
	limbs := make([]*big.Int, count)
	for i := range limbs {
		limbs[i] = new(big.Int).And(rest, mask)
		rest.Rsh(rest, uint(width))
	}
	return limbs, nil
}

// FromLimbs recombines least significant first limbs of width bits
func FromLimbs(limbs []*big.Int, width int) *big.Int {
	v := new(big.Int)
	for i := len(limbs) - 1; i >= 0; i-- {
		v.Lsh(v, uint(width))
		v.Add(v, limbs[i])
	}
	return v
}

func byteStrings(b []byte) []string {
	out := make([]string, len(b))
	for i, c := range b {
		out[i] = strconv.Itoa(int(c))
	}
	return out
}

func decimalStrings(vs []*big.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}
