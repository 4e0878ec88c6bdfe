package verifier

import (
	"crypto"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/hex"
	"fmt"

	dsig "github.com/russellhaering/goxmldsig"
)

// DigestProvider resolves XML signature algorithm URIs to hash functions
type DigestProvider interface {
	// Signature resolves a SignatureMethod algorithm
	Signature(uri string) (crypto.Hash, error)
	// Digest resolves a reference DigestMethod algorithm
	Digest(uri string) (crypto.Hash, error)
}

// Digests is a DigestProvider backed by lookup tables
type Digests struct {
	SignatureMethods map[string]crypto.Hash
	DigestMethods    map[string]crypto.Hash
}

// DefaultDigests covers RSA with SHA-1, SHA-256, SHA-384 and SHA-512
func DefaultDigests() *Digests {
	return &Digests{
		SignatureMethods: map[string]crypto.Hash{
			dsig.RSASHA1SignatureMethod:   crypto.SHA1,
			dsig.RSASHA256SignatureMethod: crypto.SHA256,
			dsig.RSASHA384SignatureMethod: crypto.SHA384,
			dsig.RSASHA512SignatureMethod: crypto.SHA512,
		},
		DigestMethods: map[string]crypto.Hash{
			"http://www.w3.org/2000/09/xmldsig#sha1":        crypto.SHA1,
			"http://www.w3.org/2001/04/xmlenc#sha256":       crypto.SHA256,
			"http://www.w3.org/2001/04/xmldsig-more#sha384": crypto.SHA384,
			"http://www.w3.org/2001/04/xmlenc#sha512":       crypto.SHA512,
		},
	}
}

func (d *Digests) Signature(uri string) (crypto.Hash, error) {
	return lookup(d.SignatureMethods, uri, "signature method")
}

func (d *Digests) Digest(uri string) (crypto.Hash, error) {
	return lookup(d.DigestMethods, uri, "digest method")
}

func lookup(table map[string]crypto.Hash, uri, kind string) (crypto.Hash, error) {
	h, ok := table[uri]
	if !ok || !h.Available() {
		return 0, fmt.Errorf("unsupported %s %q", kind, uri)
	}
	return h, nil
}

// ASN.1 DigestInfo headers preceding the digest in a PKCS#1 v1.5 signature
var digestInfoPrefix = map[crypto.Hash][]byte{
	crypto.SHA1:   mustHex("3021300906052b0e03021a05000414"),
	crypto.SHA256: mustHex("3031300d060960864801650304020105000420"),
	crypto.SHA384: mustHex("3041300d060960864801650304020205000430"),
	crypto.SHA512: mustHex("3051300d060960864801650304020305000440"),
}

// EncodePKCS1v15 builds 0x00 0x01 FF..FF 0x00 || DigestInfo || digest, k bytes long
func EncodePKCS1v15(h crypto.Hash, digest []byte, k int) ([]byte, error) {
	prefix, ok := digestInfoPrefix[h]
	if !ok {
		return nil, fmt.Errorf("no DigestInfo for %s", h)
	}
	if len(digest) != h.Size() {
		return nil, fmt.Errorf("digest has %d bytes, %s needs %d", len(digest), h, h.Size())
	}

	tLen := len(prefix) + len(digest)
	// at least 8 bytes of 0xFF
	if k < tLen+11 {
		return nil, fmt.Errorf("modulus of %d bytes is too short", k)
	}

	em := make([]byte, k)
	em[1] = 0x01
	for i := 2; i < k-tLen-1; i++ {
		em[i] = 0xff
	}
	copy(em[k-tLen:], prefix)
	copy(em[k-len(digest):], digest)
	return em, nil
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
