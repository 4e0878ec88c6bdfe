package xmldsig_test

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"strings"
	"testing"

	dsig "github.com/russellhaering/goxmldsig"

	"github.com/mynextid/zk-xmldsig/common"
	"github.com/mynextid/zk-xmldsig/xmldsig"
)

func signSample(t *testing.T, opts common.SignOptions) *common.SignedXML {
	t.Helper()
	signed, err := common.SignXML(common.SampleCredential("PAN", "AAAAA0000A"), opts)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestExtract(t *testing.T) {
	cases := []struct {
		name   string
		opts   common.SignOptions
		hash   crypto.Hash
		digest func([]byte) []byte
	}{
		{
			name:   "rsa-sha256 exclusive c14n",
			opts:   common.SignOptions{},
			hash:   crypto.SHA256,
			digest: func(b []byte) []byte { d := sha256.Sum256(b); return d[:] },
		},
		{
			name:   "rsa-sha1 exclusive c14n",
			opts:   common.SignOptions{SignatureMethod: dsig.RSASHA1SignatureMethod},
			hash:   crypto.SHA1,
			digest: func(b []byte) []byte { d := sha1.Sum(b); return d[:] },
		},
		{
			name:   "rsa-sha256 c14n 1.1",
			opts:   common.SignOptions{Canonicalizer: dsig.MakeC14N11Canonicalizer()},
			hash:   crypto.SHA256,
			digest: func(b []byte) []byte { d := sha256.Sum256(b); return d[:] },
		},
		{
			name:   "rsa key value",
			opts:   common.SignOptions{KeyValue: true},
			hash:   crypto.SHA256,
			digest: func(b []byte) []byte { d := sha256.Sum256(b); return d[:] },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			signed := signSample(t, tc.opts)
			original := bytes.Clone(signed.Document)

			info, payload, err := xmldsig.Extract(signed.Document)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}

			if !bytes.Equal(original, signed.Document) {
				t.Fatal("input document was modified")
			}

			if info.Modulus.Cmp(signed.Key.N) != 0 {
				t.Fatal("modulus does not match the signing key")
			}
			if info.Exponent.Int64() != int64(signed.Key.E) {
				t.Fatalf("exponent %s", info.Exponent)
			}
			if info.ModulusSize() != signed.Key.Size() {
				t.Fatalf("modulus size %d", info.ModulusSize())
			}

			// the canonical SignedInfo is what the key signed
			h := tc.hash.New()
			h.Write(info.SignedInfo)
			sig := info.SignatureValue.FillBytes(make([]byte, signed.Key.Size()))
			if err := rsa.VerifyPKCS1v15(&signed.Key.PublicKey, tc.hash, h.Sum(nil), sig); err != nil {
				t.Fatalf("signed info does not verify: %v", err)
			}

			// the canonical payload is what the reference digests
			if !bytes.Equal(tc.digest(payload), info.DigestValue) {
				t.Fatal("payload digest does not match DigestValue")
			}

			if !bytes.Contains(payload, []byte("<CertificateData>")) {
				t.Fatal("payload misses the disclosure subtree")
			}
			if bytes.Contains(payload, []byte("SignatureValue")) {
				t.Fatal("enveloped signature was not removed from the payload")
			}
		})
	}
}

func TestExtractAgreesWithValidator(t *testing.T) {
	signed := signSample(t, common.SignOptions{})

	if err := common.ValidateXML(signed.Document, signed.Certificate); err != nil {
		t.Fatalf("fixture does not validate: %v", err)
	}
	if _, _, err := xmldsig.Extract(signed.Document); err != nil {
		t.Fatalf("extract: %v", err)
	}
}

func TestExtractReferenceByID(t *testing.T) {
	doc := []byte(`<Certificate ID="cert-1" type="PANCR"><CertificateData><PAN num="AAAAA0000A"/></CertificateData></Certificate>`)
	signed, err := common.SignXML(doc, common.SignOptions{})
	if err != nil {
		t.Fatal(err)
	}

	info, payload, err := xmldsig.Extract(signed.Document)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if info.ReferenceURI != "#cert-1" {
		t.Fatalf("reference URI %q", info.ReferenceURI)
	}
	d := sha256.Sum256(payload)
	if !bytes.Equal(d[:], info.DigestValue) {
		t.Fatal("payload digest does not match DigestValue")
	}
}

func TestExtractReferenceCount(t *testing.T) {
	signed := signSample(t, common.SignOptions{})
	doc := string(signed.Document)

	start := strings.Index(doc, "<ds:Reference")
	end := strings.Index(doc, "</ds:Reference>")
	if start < 0 || end < 0 {
		t.Fatal("fixture has no reference")
	}
	end += len("</ds:Reference>")
	twoRefs := doc[:end] + doc[start:end] + doc[end:]

	_, _, err := xmldsig.Extract([]byte(twoRefs))
	if !errors.Is(err, xmldsig.ErrReferenceCount) {
		t.Fatalf("expected ErrReferenceCount, got %v", err)
	}

	noRefs := doc[:start] + doc[end:]
	_, _, err = xmldsig.Extract([]byte(noRefs))
	if !errors.Is(err, xmldsig.ErrReferenceCount) {
		t.Fatalf("expected ErrReferenceCount, got %v", err)
	}
}

func TestExtractMalformed(t *testing.T) {
	signed := signSample(t, common.SignOptions{})
	doc := string(signed.Document)

	cut := func(open, close string) string {
		s := strings.Index(doc, open)
		e := strings.Index(doc, close)
		if s < 0 || e < 0 {
			t.Fatalf("fixture misses %s", open)
		}
		return doc[:s] + doc[e+len(close):]
	}

	cases := map[string]string{
		"not xml":           "<Certificate><CertificateData>",
		"empty":             "",
		"unsigned":          string(common.SampleCredential("PAN", "AAAAA0000A")),
		"no key info":       cut("<ds:KeyInfo>", "</ds:KeyInfo>"),
		"no signature":      cut("<ds:SignatureValue>", "</ds:SignatureValue>"),
		"bad base64":        strings.Replace(doc, "<ds:SignatureValue>", "<ds:SignatureValue>!!", 1),
		"unknown transform": strings.Replace(doc, string(dsig.CanonicalXML10ExclusiveAlgorithmId)+`"/></ds:Transforms>`, `urn:unknown"/></ds:Transforms>`, 1),
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := xmldsig.Extract([]byte(input))
			if !errors.Is(err, xmldsig.ErrMalformedDocument) {
				t.Fatalf("expected ErrMalformedDocument, got %v", err)
			}
		})
	}
}

func TestExtractKeepsOversizedSignature(t *testing.T) {
	doc := string(signSample(t, common.SignOptions{}).Document)
	open := strings.Index(doc, "<ds:SignatureValue>") + len("<ds:SignatureValue>")
	c := "/"
	if doc[open] == '/' {
		c = "9"
	}

	info, _, err := xmldsig.Extract([]byte(doc[:open] + c + doc[open+1:]))
	if err != nil {
		t.Fatalf("a corrupted signature value must still extract: %v", err)
	}
	if info.SignatureValue.Sign() <= 0 {
		t.Fatal("signature value not decoded")
	}
}
