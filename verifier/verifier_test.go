package verifier_test

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"testing"

	dsig "github.com/russellhaering/goxmldsig"

	"github.com/mynextid/zk-xmldsig/common"
	"github.com/mynextid/zk-xmldsig/verifier"
	"github.com/mynextid/zk-xmldsig/xmldsig"
)

const sha256URI = "http://www.w3.org/2001/04/xmlenc#sha256"

var methods = map[crypto.Hash]string{
	crypto.SHA1:   dsig.RSASHA1SignatureMethod,
	crypto.SHA256: dsig.RSASHA256SignatureMethod,
}

// signatureInfo signs signedInfo directly, bypassing the XML layer
func signatureInfo(t *testing.T, key *rsa.PrivateKey, h crypto.Hash, signedInfo []byte) *xmldsig.SignatureInfo {
	t.Helper()
	d := h.New()
	d.Write(signedInfo)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, h, d.Sum(nil))
	if err != nil {
		t.Fatal(err)
	}
	return &xmldsig.SignatureInfo{
		SignedInfo:      signedInfo,
		SignatureValue:  new(big.Int).SetBytes(sig),
		Modulus:         key.N,
		Exponent:        big.NewInt(int64(key.E)),
		SignatureMethod: methods[h],
		DigestMethod:    sha256URI,
	}
}

// acceptance must match the standard library verifier, valid and tampered
func TestVerifyMatchesStandardLibrary(t *testing.T) {
	key, err := common.SigningKey()
	if err != nil {
		t.Fatal(err)
	}
	v := verifier.New()

	payload := []byte("<CertificateData><PAN num=\"AAAAA0000A\"></PAN></CertificateData>")
	d := sha256.Sum256(payload)
	signedInfo := []byte("<ds:SignedInfo><ds:DigestValue>" + base64.StdEncoding.EncodeToString(d[:]) + "</ds:DigestValue></ds:SignedInfo>")

	for h := range methods {
		t.Run(h.String(), func(t *testing.T) {
			info := signatureInfo(t, key, h, signedInfo)

			for i := 0; i < 16; i++ {
				candidate := *info
				if i > 0 {
					// flip one bit of the signature
					sig := new(big.Int).Set(info.SignatureValue)
					candidate.SignatureValue = sig.SetBit(sig, i*97, sig.Bit(i*97)^1)
				}

				sig := candidate.SignatureValue.FillBytes(make([]byte, key.Size()))
				digest := h.New()
				digest.Write(signedInfo)
				stdErr := rsa.VerifyPKCS1v15(&key.PublicKey, h, digest.Sum(nil), sig)

				_, err := v.Verify(&candidate, payload)
				if (stdErr == nil) != (err == nil) {
					t.Fatalf("bit %d: standard library says %v, verifier says %v", i*97, stdErr, err)
				}
				if err != nil && !errors.Is(err, verifier.ErrSignatureVerification) {
					t.Fatalf("expected ErrSignatureVerification, got %v", err)
				}
			}
		})
	}
}

func TestVerifySignedDocument(t *testing.T) {
	for _, method := range []string{dsig.RSASHA1SignatureMethod, dsig.RSASHA256SignatureMethod} {
		t.Run(method, func(t *testing.T) {
			signed, err := common.SignXML(common.SampleCredential("PAN", "AAAAA0000A"), common.SignOptions{SignatureMethod: method})
			if err != nil {
				t.Fatal(err)
			}
			info, payload, err := xmldsig.Extract(signed.Document)
			if err != nil {
				t.Fatal(err)
			}

			res, err := verifier.New().Verify(info, payload)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}

			encoded := base64.StdEncoding.EncodeToString(res.Digest)
			if !bytes.Equal(info.SignedInfo[res.DigestIndex:res.DigestIndex+len(encoded)], []byte(encoded)) {
				t.Fatal("DigestIndex does not point to the encoded digest")
			}
		})
	}
}

func TestVerifyReferenceDigest(t *testing.T) {
	key, err := common.SigningKey()
	if err != nil {
		t.Fatal(err)
	}
	info := signatureInfo(t, key, crypto.SHA256, []byte("<ds:SignedInfo>no digest here</ds:SignedInfo>"))

	_, err = verifier.New().Verify(info, []byte("payload"))
	if !errors.Is(err, verifier.ErrReferenceDigestNotFound) {
		t.Fatalf("expected ErrReferenceDigestNotFound, got %v", err)
	}
}

// a bad signature is reported even when the digest binding would fail too
func TestVerifySignatureCheckedFirst(t *testing.T) {
	key, err := common.SigningKey()
	if err != nil {
		t.Fatal(err)
	}
	info := signatureInfo(t, key, crypto.SHA256, []byte("<ds:SignedInfo></ds:SignedInfo>"))
	info.SignatureValue = new(big.Int).Add(info.SignatureValue, big.NewInt(1))

	_, err = verifier.New().Verify(info, []byte("payload"))
	if !errors.Is(err, verifier.ErrSignatureVerification) {
		t.Fatalf("expected ErrSignatureVerification, got %v", err)
	}
}

func TestVerifyUnsupportedMethod(t *testing.T) {
	key, err := common.SigningKey()
	if err != nil {
		t.Fatal(err)
	}
	info := signatureInfo(t, key, crypto.SHA256, []byte("<ds:SignedInfo></ds:SignedInfo>"))
	info.SignatureMethod = dsig.ECDSASHA256SignatureMethod

	_, err = verifier.New().Verify(info, []byte("payload"))
	if !errors.Is(err, verifier.ErrSignatureVerification) {
		t.Fatalf("expected ErrSignatureVerification, got %v", err)
	}
}

func TestEncodePKCS1v15(t *testing.T) {
	key, err := common.SigningKey()
	if err != nil {
		t.Fatal(err)
	}
	digest := sha256.Sum256([]byte("message"))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatal(err)
	}

	em, err := verifier.EncodePKCS1v15(crypto.SHA256, digest[:], key.Size())
	if err != nil {
		t.Fatal(err)
	}
	m := new(big.Int).Exp(new(big.Int).SetBytes(sig), big.NewInt(int64(key.E)), key.N)
	if !bytes.Equal(m.FillBytes(make([]byte, key.Size())), em) {
		t.Fatal("encoded message differs from sig^e mod n")
	}

	if _, err := verifier.EncodePKCS1v15(crypto.SHA256, digest[:], 40); err == nil {
		t.Fatal("expected an error for a short modulus")
	}
}
