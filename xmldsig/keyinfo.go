package xmldsig

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/russellhaering/goxmldsig/etreeutils"
)

const (
	rsaKeyValueTag = "RSAKeyValue"
	modulusTag     = "Modulus"
	exponentTag    = "Exponent"
)

// publicKey reads the RSA key from ds:KeyInfo: KeyValue/RSAKeyValue when present, otherwise
// the first X509Data/X509Certificate.
func publicKey(sigCtx etreeutils.NSContext, sigEl *etree.Element) (*big.Int, *big.Int, error) {
	keyInfo, err := etreeutils.NSFindOneChildCtx(sigCtx, sigEl, dsig.Namespace, dsig.KeyInfoTag)
	if err != nil {
		return nil, nil, err
	}
	if keyInfo == nil {
		return nil, nil, errors.New("missing KeyInfo")
	}

	rsaValue, err := etreeutils.NSFindOneCtx(sigCtx, keyInfo, dsig.Namespace, rsaKeyValueTag)
	if err != nil {
		return nil, nil, err
	}
	if rsaValue != nil {
		return rsaKeyValue(sigCtx, rsaValue)
	}

	certEl, err := etreeutils.NSFindOneCtx(sigCtx, keyInfo, dsig.Namespace, dsig.X509CertificateTag)
	if err != nil {
		return nil, nil, err
	}
	if certEl == nil {
		return nil, nil, errors.New("no RSAKeyValue or X509Certificate")
	}

	return certificateKey(certEl.Text())
}

func rsaKeyValue(ctx etreeutils.NSContext, el *etree.Element) (*big.Int, *big.Int, error) {
	read := func(tag string) (*big.Int, error) {
		child, err := etreeutils.NSFindOneChildCtx(ctx, el, dsig.Namespace, tag)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, fmt.Errorf("missing %s", tag)
		}
		b, err := decodeBase64(child.Text())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		v := new(big.Int).SetBytes(b)
		if v.Sign() == 0 {
			return nil, fmt.Errorf("%s is zero", tag)
		}
		return v, nil
	}

	n, err := read(modulusTag)
	if err != nil {
		return nil, nil, err
	}
	e, err := read(exponentTag)
	if err != nil {
		return nil, nil, err
	}
	return n, e, nil
}

func certificateKey(data string) (*big.Int, *big.Int, error) {
	der, err := decodeBase64(data)
	if err != nil {
		return nil, nil, fmt.Errorf("certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("certificate: %w", err)
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("certificate key is %s, not RSA", cert.PublicKeyAlgorithm)
	}
	return new(big.Int).Set(pub.N), big.NewInt(int64(pub.E)), nil
}
