package common

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/russellhaering/goxmldsig/etreeutils"
)

// SignOptions configures SignXML
type SignOptions struct {
	// Key signs the document; a shared 2048-bit key when nil
	Key *rsa.PrivateKey
	// SignatureMethod defaults to rsa-sha256
	SignatureMethod string
	// Canonicalizer for the payload and SignedInfo, exclusive c14n when nil
	Canonicalizer dsig.Canonicalizer
	// KeyValue replaces the X509Data in KeyInfo with KeyValue/RSAKeyValue
	KeyValue bool
}

// SignedXML is an enveloped-signed document with the material that signed it
type SignedXML struct {
	Document    []byte
	Key         *rsa.PrivateKey
	Certificate *x509.Certificate
}

var (
	sharedKey     *rsa.PrivateKey
	sharedKeyErr  error
	sharedKeyOnce sync.Once
)

// SigningKey returns a process wide 2048-bit RSA key, generated on first use
func SigningKey() (*rsa.PrivateKey, error) {
	sharedKeyOnce.Do(func() {
		sharedKey, sharedKeyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	return sharedKey, sharedKeyErr
}

// SignXML adds an enveloped ds:Signature to the document element of doc
func SignXML(doc []byte, opts SignOptions) (*SignedXML, error) {
	key := opts.Key
	if key == nil {
		var err error
		if key, err = SigningKey(); err != nil {
			return nil, fmt.Errorf("signing key: %w", err)
		}
	}

	cert, err := selfSignedCertificate(key)
	if err != nil {
		return nil, err
	}

	d := etree.NewDocument()
	if err := d.ReadFromBytes(doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if d.Root() == nil {
		return nil, fmt.Errorf("document has no root element")
	}

	ctx, err := dsig.NewSigningContext(key, [][]byte{cert.Raw})
	if err != nil {
		return nil, err
	}
	method := opts.SignatureMethod
	if method == "" {
		method = dsig.RSASHA256SignatureMethod
	}
	if err := ctx.SetSignatureMethod(method); err != nil {
		return nil, err
	}
	ctx.Canonicalizer = opts.Canonicalizer
	if ctx.Canonicalizer == nil {
		ctx.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	}

	signed, err := ctx.SignEnveloped(d.Root())
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	if opts.KeyValue {
		if err := replaceKeyInfo(signed, &key.PublicKey); err != nil {
			return nil, err
		}
	}

	out := etree.NewDocument()
	out.SetRoot(signed)
	b, err := out.WriteToBytes()
	if err != nil {
		return nil, err
	}

	return &SignedXML{Document: b, Key: key, Certificate: cert}, nil
}

// ValidateXML checks an enveloped signature with the goxmldsig validator against cert
func ValidateXML(doc []byte, cert *x509.Certificate) error {
	d := etree.NewDocument()
	if err := d.ReadFromBytes(doc); err != nil {
		return err
	}

	ctx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	})
	_, err := ctx.Validate(d.Root())
	return err
}

// KeyInfo sits outside SignedInfo, rewriting it keeps the signature valid
func replaceKeyInfo(signed *etree.Element, pub *rsa.PublicKey) error {
	keyInfo, err := etreeutils.NSFindOne(signed, dsig.Namespace, dsig.KeyInfoTag)
	if err != nil {
		return err
	}
	if keyInfo == nil {
		return fmt.Errorf("signature has no KeyInfo")
	}

	for _, child := range keyInfo.ChildElements() {
		keyInfo.RemoveChild(child)
	}

	prefix := keyInfo.Space
	keyValue := keyInfo.CreateElement("KeyValue")
	keyValue.Space = prefix
	rsaValue := keyValue.CreateElement("RSAKeyValue")
	rsaValue.Space = prefix

	modulus := rsaValue.CreateElement("Modulus")
	modulus.Space = prefix
	modulus.SetText(base64.StdEncoding.EncodeToString(pub.N.Bytes()))

	exponent := rsaValue.CreateElement("Exponent")
	exponent.Space = prefix
	exponent.SetText(base64.StdEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()))

	return nil
}

func selfSignedCertificate(key *rsa.PrivateKey) (*x509.Certificate, error) {
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "zk-xmldsig test issuer"},
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	return x509.ParseCertificate(der)
}

// SampleCredential returns an unsigned credential in the issuer layout: a Certificate
// element holding the disclosure subtree under CertificateData
func SampleCredential(docType, num string) []byte {
	return []byte(fmt.Sprintf(`<Certificate language="99" name="%[1]s" type="PANCR" number="%[2]s" issuedAt="MyNextID" issueDate="18-10-2026" status="A">`+
		`<IssuedBy><Organization name="Income Tax Department" code="ITD" tin="" uid="" type="CG"><Address type="" line1="" line2="" house="" landmark="" locality="" vtc="" district="" pin="" state="" country="IN"/></Organization></IssuedBy>`+
		`<IssuedTo><Person uid="" title="" name="JOHN DOE" dob="01-01-1990" swd="" swdIndicator="" gender="M" maritalStatus="" relationWithHolder="" religion="" phone="" email=""><Photo format="jpeg"></Photo></Person></IssuedTo>`+
		`<CertificateData><%[1]s num="%[2]s" verifiedOn="18-10-2026" status="Active"/></CertificateData>`+
		`</Certificate>`, docType, num))
}
