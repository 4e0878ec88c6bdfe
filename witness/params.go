package witness

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"

	"github.com/mynextid/zk-xmldsig/partialsha"
	"github.com/mynextid/zk-xmldsig/verifier"
)

const (
	// DefaultLimbBits and DefaultLimbCount decompose a 2048-bit RSA value
	DefaultLimbBits  = 121
	DefaultLimbCount = 17

	// DefaultSelector opens the disclosure subtree of the credential
	DefaultSelector = "<CertificateData>"

	// DefaultNullifierSeed is used when no seed is configured
	DefaultNullifierSeed = 123456789
)

// ErrSeedOutOfField is returned when the nullifier seed is not a BN254 scalar
var ErrSeedOutOfField = errors.New("witness: nullifier seed out of field")

// Params configures witness generation. Zero values take the defaults.
type Params struct {
	NullifierSeed *big.Int

	// RevealStart and RevealEnd delimit the disclosed window; disabled when either is empty
	RevealStart string
	RevealEnd   string

	// Signal bound to the proof, 1 when nil
	Signal *big.Int

	// MaxInputLength is the remainder capacity in bytes
	MaxInputLength int
	LimbBits       int
	LimbCount      int
	Selector       string

	// Digests resolves signature and digest algorithms, verifier.DefaultDigests when nil
	Digests verifier.DigestProvider
}

// DefaultParams returns the defaults with the given seed
func DefaultParams(seed *big.Int) Params {
	return Params{NullifierSeed: seed}.withDefaults()
}

func (p Params) withDefaults() Params {
	if p.NullifierSeed == nil {
		p.NullifierSeed = big.NewInt(DefaultNullifierSeed)
	}
	if p.MaxInputLength == 0 {
		p.MaxInputLength = partialsha.DefaultCapacity
	}
	if p.LimbBits == 0 {
		p.LimbBits = DefaultLimbBits
	}
	if p.LimbCount == 0 {
		p.LimbCount = DefaultLimbCount
	}
	if p.Selector == "" {
		p.Selector = DefaultSelector
	}
	if p.Digests == nil {
		p.Digests = verifier.DefaultDigests()
	}
	return p
}

func (p Params) validate() error {
	if err := CheckSeed(p.NullifierSeed); err != nil {
		return err
	}
	if p.MaxInputLength <= 0 || p.MaxInputLength%partialsha.BlockSize != 0 {
		return fmt.Errorf("witness: max input length %d is not a positive multiple of %d", p.MaxInputLength, partialsha.BlockSize)
	}
	// a limb must stay below the scalar field modulus
	if p.LimbBits <= 0 || p.LimbBits >= ecc.BN254.ScalarField().BitLen() {
		return fmt.Errorf("witness: invalid limb width %d", p.LimbBits)
	}
	if p.LimbCount <= 0 {
		return fmt.Errorf("witness: invalid limb count %d", p.LimbCount)
	}
	return nil
}

// CheckSeed accepts 0 <= seed < r, r the BN254 scalar field modulus
func CheckSeed(seed *big.Int) error {
	if seed == nil {
		return fmt.Errorf("%w: missing", ErrSeedOutOfField)
	}
	if seed.Sign() < 0 || seed.Cmp(ecc.BN254.ScalarField()) >= 0 {
		return fmt.Errorf("%w: %s", ErrSeedOutOfField, seed)
	}
	return nil
}
