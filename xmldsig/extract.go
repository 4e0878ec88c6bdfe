// Package xmldsig isolates the parts of an enveloped XML signature a circuit needs: the
// canonical signed payload, the canonical SignedInfo, the signature value and the signer's
// RSA public key.
package xmldsig

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/russellhaering/goxmldsig/etreeutils"
	"github.com/russellhaering/goxmldsig/types"
)

var (
	// ErrMalformedDocument is returned when the document or its signature cannot be parsed
	ErrMalformedDocument = errors.New("xmldsig: malformed document")

	// ErrReferenceCount is returned when SignedInfo does not hold exactly one Reference
	ErrReferenceCount = errors.New("xmldsig: signed info must hold exactly one reference")
)

// SignatureInfo holds the values extracted from a ds:Signature element
type SignatureInfo struct {
	// SignedInfo is the canonical form of ds:SignedInfo, the bytes the signature covers
	SignedInfo []byte

	SignatureValue *big.Int
	Modulus        *big.Int
	Exponent       *big.Int

	// Algorithm URIs
	SignatureMethod string
	DigestMethod    string

	// ReferenceURI of the single ds:Reference
	ReferenceURI string
	// DigestValue is the decoded ds:DigestValue of the reference
	DigestValue []byte
}

// ModulusSize returns the modulus length in bytes
func (s *SignatureInfo) ModulusSize() int {
	return (s.Modulus.BitLen() + 7) / 8
}

// Extract parses a signed XML document and returns its signature values and the canonical
// payload covered by the single reference. doc is never modified.
func Extract(doc []byte) (*SignatureInfo, []byte, error) {
	d := etree.NewDocument()
	if err := d.ReadFromBytes(doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if d.Root() == nil {
		return nil, nil, fmt.Errorf("%w: no document element", ErrMalformedDocument)
	}

	// work on a detached copy, transforms mutate the tree
	root := d.Root().Copy()

	sigEl, err := etreeutils.NSFindOne(root, dsig.Namespace, dsig.SignatureTag)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if sigEl == nil {
		return nil, nil, fmt.Errorf("%w: signature not found", ErrMalformedDocument)
	}

	sigCtx, err := signatureContext(sigEl)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	sig := &types.Signature{}
	if err := etreeutils.NSUnmarshalElement(sigCtx, sigEl, sig); err != nil {
		return nil, nil, fmt.Errorf("%w: signature: %v", ErrMalformedDocument, err)
	}
	if sig.SignedInfo == nil {
		return nil, nil, fmt.Errorf("%w: missing SignedInfo", ErrMalformedDocument)
	}
	if sig.SignatureValue == nil {
		return nil, nil, fmt.Errorf("%w: missing SignatureValue", ErrMalformedDocument)
	}

	// checked before anything is canonicalized or hashed
	if n := len(sig.SignedInfo.References); n != 1 {
		return nil, nil, fmt.Errorf("%w: found %d", ErrReferenceCount, n)
	}
	ref := sig.SignedInfo.References[0]

	signedInfo, err := canonicalSignedInfo(sigCtx, sigEl)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: signed info: %v", ErrMalformedDocument, err)
	}

	modulus, exponent, err := publicKey(sigCtx, sigEl)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: key info: %v", ErrMalformedDocument, err)
	}

	sigBytes, err := decodeBase64(sig.SignatureValue.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: signature value: %v", ErrMalformedDocument, err)
	}
	// range against the modulus is a verification failure, checked by the verifier
	sigValue := new(big.Int).SetBytes(sigBytes)

	digestValue, err := decodeBase64(ref.DigestValue)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: digest value: %v", ErrMalformedDocument, err)
	}

	payload, err := applyTransforms(root, sigEl, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	info := &SignatureInfo{
		SignedInfo:      signedInfo,
		SignatureValue:  sigValue,
		Modulus:         modulus,
		Exponent:        exponent,
		SignatureMethod: sig.SignedInfo.SignatureMethod.Algorithm,
		DigestMethod:    ref.DigestAlgo.Algorithm,
		ReferenceURI:    ref.URI,
		DigestValue:     digestValue,
	}

	return info, payload, nil
}

// signatureContext returns the namespace context in scope inside the signature element
func signatureContext(sigEl *etree.Element) (etreeutils.NSContext, error) {
	parent, err := etreeutils.NSBuildParentContext(sigEl)
	if err != nil {
		return parent, err
	}
	return parent.SubContext(sigEl)
}

// canonicalSignedInfo detaches ds:SignedInfo with every namespace in scope and serializes it
// with its CanonicalizationMethod
func canonicalSignedInfo(sigCtx etreeutils.NSContext, sigEl *etree.Element) ([]byte, error) {
	signedInfo, err := etreeutils.NSFindOneChildCtx(sigCtx, sigEl, dsig.Namespace, dsig.SignedInfoTag)
	if err != nil {
		return nil, err
	}
	if signedInfo == nil {
		return nil, errors.New("missing SignedInfo")
	}

	detached, err := etreeutils.NSDetatch(sigCtx, signedInfo)
	if err != nil {
		return nil, err
	}

	method, err := etreeutils.NSFindOneChildCtx(sigCtx, detached, dsig.Namespace, dsig.CanonicalizationMethodTag)
	if err != nil {
		return nil, err
	}
	if method == nil {
		return nil, errors.New("missing CanonicalizationMethod")
	}

	prefixList := ""
	if incl := method.FindElement("./" + dsig.InclusiveNamespacesTag); incl != nil {
		prefixList = incl.SelectAttrValue(dsig.PrefixListAttr, "")
	}

	c, err := canonicalizer(method.SelectAttrValue(dsig.AlgorithmAttr, ""), prefixList)
	if err != nil {
		return nil, err
	}

	return c.Canonicalize(detached)
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
}
