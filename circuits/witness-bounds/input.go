package cwb

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/uints"

	"github.com/mynextid/zk-xmldsig/common"
	"github.com/mynextid/zk-xmldsig/witness"
)

// PublicInput is the public part of a witness record
type PublicInput struct {
	PubKey          []string `json:"pubKey"`
	NullifierSeed   string   `json:"nullifierSeed"`
	SignalHash      string   `json:"signalHash"`
	IsRevealEnabled string   `json:"isRevealEnabled"`
}

// Public extracts the public input of a record
func Public(rec *witness.Record) PublicInput {
	return PublicInput{
		PubKey:          rec.PubKey,
		NullifierSeed:   rec.NullifierSeed,
		SignalHash:      rec.SignalHash,
		IsRevealEnabled: rec.IsRevealEnabled,
	}
}

// InputParser builds assignments from a public input JSON and a witness record JSON
type InputParser struct {
	Capacity           int
	SignedInfoCapacity int
	LimbCount          int
}

// Parse returns an assignment; an empty private input "{}" yields a public-only assignment
func (p *InputParser) Parse(publicInput, privateInput []byte) (frontend.Circuit, error) {
	var pub PublicInput
	if err := json.Unmarshal(publicInput, &pub); err != nil {
		return nil, fmt.Errorf("public input: %w", err)
	}
	var rec witness.Record
	if err := json.Unmarshal(privateInput, &rec); err != nil {
		return nil, fmt.Errorf("private input: %w", err)
	}

	if len(pub.PubKey) != p.LimbCount {
		return nil, fmt.Errorf("pubKey has %d limbs, expected %d", len(pub.PubKey), p.LimbCount)
	}

	a := &Circuit{
		PubKey:          decimals(pub.PubKey),
		NullifierSeed:   decimal(pub.NullifierSeed),
		SignalHash:      decimal(pub.SignalHash),
		IsRevealEnabled: decimal(pub.IsRevealEnabled),

		DataPadded:               common.BytesToU8Array(nil, p.Capacity),
		SignedInfo:               common.BytesToU8Array(nil, p.SignedInfoCapacity),
		PrecomputedSHA:           common.BytesToU8Array(nil, 32),
		Signature:                make([]frontend.Variable, p.LimbCount),
		DataPaddedLength:         0,
		SignedInfoLength:         0,
		DataHashIndex:            0,
		CertificateDataNodeIndex: 0,
		DocumentTypeLength:       0,
		RevealStartIndex:         0,
		RevealEndIndex:           0,
	}
	for i := range a.Signature {
		a.Signature[i] = 0
	}

	// public only
	if rec.DataPadded == nil {
		return a, nil
	}

	if len(rec.DataPadded) != p.Capacity {
		return nil, fmt.Errorf("dataPadded has %d bytes, expected %d", len(rec.DataPadded), p.Capacity)
	}
	if len(rec.SignedInfo) > p.SignedInfoCapacity {
		return nil, fmt.Errorf("signedInfo has %d bytes, capacity %d", len(rec.SignedInfo), p.SignedInfoCapacity)
	}
	if len(rec.Signature) != p.LimbCount || len(rec.PrecomputedSHA) != 32 {
		return nil, fmt.Errorf("unexpected signature or precomputed state size")
	}

	var err error
	if a.DataPadded, err = byteArray(rec.DataPadded, p.Capacity); err != nil {
		return nil, fmt.Errorf("dataPadded: %w", err)
	}
	if a.SignedInfo, err = byteArray(rec.SignedInfo, p.SignedInfoCapacity); err != nil {
		return nil, fmt.Errorf("signedInfo: %w", err)
	}
	if a.PrecomputedSHA, err = byteArray(rec.PrecomputedSHA, 32); err != nil {
		return nil, fmt.Errorf("precomputedSHA: %w", err)
	}

	a.Signature = decimals(rec.Signature)
	a.DataPaddedLength = decimal(rec.DataPaddedLength)
	a.SignedInfoLength = len(rec.SignedInfo)
	a.DataHashIndex = decimal(rec.DataHashIndex)
	a.CertificateDataNodeIndex = decimal(rec.CertificateDataNodeIndex)
	a.DocumentTypeLength = decimal(rec.DocumentTypeLength)
	a.RevealStartIndex = decimal(rec.RevealStartIndex)
	a.RevealEndIndex = decimal(rec.RevealEndIndex)

	return a, nil
}

// ParseRecord builds the full assignment of a record and returns it with the record's
// public input JSON
func (p *InputParser) ParseRecord(rec *witness.Record) (frontend.Circuit, []byte, error) {
	pub, err := json.Marshal(Public(rec))
	if err != nil {
		return nil, nil, err
	}
	priv, err := json.Marshal(rec)
	if err != nil {
		return nil, nil, err
	}

	a, err := p.Parse(pub, priv)
	if err != nil {
		return nil, nil, err
	}
	return a, pub, nil
}

// Assignment builds a full assignment straight from a record
func Assignment(rec *witness.Record, capacity, signedInfoCapacity, limbCount int) (*Circuit, error) {
	p := &InputParser{Capacity: capacity, SignedInfoCapacity: signedInfoCapacity, LimbCount: limbCount}
	a, _, err := p.ParseRecord(rec)
	if err != nil {
		return nil, err
	}
	return a.(*Circuit), nil
}

// byteArray converts decimal byte strings, zero padded to size
func byteArray(values []string, size int) ([]uints.U8, error) {
	b, err := common.DecimalBytes(values)
	if err != nil {
		return nil, err
	}
	return common.BytesToU8Array(b, size), nil
}

// decimal keeps values as big integers, invalid strings surface at witness creation
func decimal(s string) frontend.Variable {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return s
	}
	return v
}

func decimals(values []string) []frontend.Variable {
	out := make([]frontend.Variable, len(values))
	for i, s := range values {
		out[i] = decimal(s)
	}
	return out
}
