// Package verifier checks an extracted XML signature outside the circuit, with the same
// arithmetic the circuit performs: PKCS#1 v1.5 message rebuild and sig^e mod n.
package verifier

import (
	"bytes"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"github.com/mynextid/zk-xmldsig/xmldsig"
)

var (
	// ErrSignatureVerification is returned when the RSA signature does not verify
	ErrSignatureVerification = errors.New("verifier: signature verification failed")

	// ErrReferenceDigestNotFound is returned when the payload digest is absent from SignedInfo
	ErrReferenceDigestNotFound = errors.New("verifier: reference digest not found in signed info")
)

// Result of a successful verification
type Result struct {
	// DigestIndex is the offset of base64(digest(payload)) in the canonical SignedInfo
	DigestIndex int
	// Digest of the payload under the reference digest method
	Digest []byte
}

// Verifier checks signatures with the digests its provider resolves
type Verifier struct {
	Digests DigestProvider
}

// New returns a verifier over the default digest set
func New() *Verifier {
	return &Verifier{Digests: DefaultDigests()}
}

// Verify checks the RSA signature over info.SignedInfo first, then binds the payload digest
// to SignedInfo.
func (v *Verifier) Verify(info *xmldsig.SignatureInfo, payload []byte) (*Result, error) {
	if err := v.verifySignature(info); err != nil {
		return nil, err
	}

	digestHash, err := v.Digests.Digest(info.DigestMethod)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReferenceDigestNotFound, err)
	}
	digest := sum(digestHash, payload)

	encoded := base64.StdEncoding.EncodeToString(digest)
	idx := bytes.Index(info.SignedInfo, []byte(encoded))
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrReferenceDigestNotFound, encoded)
	}

	return &Result{DigestIndex: idx, Digest: digest}, nil
}

func (v *Verifier) verifySignature(info *xmldsig.SignatureInfo) error {
	h, err := v.Digests.Signature(info.SignatureMethod)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}

	if info.Modulus == nil || info.Exponent == nil || info.SignatureValue == nil ||
		info.Modulus.Sign() <= 0 || info.Exponent.Sign() <= 0 {
		return fmt.Errorf("%w: incomplete public key", ErrSignatureVerification)
	}
	if info.SignatureValue.Sign() < 0 || info.SignatureValue.Cmp(info.Modulus) >= 0 {
		return fmt.Errorf("%w: signature out of range", ErrSignatureVerification)
	}

	expected, err := EncodePKCS1v15(h, sum(h, info.SignedInfo), info.ModulusSize())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}

	// sig^e mod n
	m := new(big.Int).Exp(info.SignatureValue, info.Exponent, info.Modulus)
	if m.Cmp(new(big.Int).SetBytes(expected)) != 0 {
		return ErrSignatureVerification
	}
	return nil
}

func sum(h crypto.Hash, data []byte) []byte {
	d := h.New()
	d.Write(data)
	return d.Sum(nil)
}
