// Package field implements BN254 scalar/base field arithmetic and Grumpkin
// curve point operations, built on gnark-crypto's BN254 field element
// implementations.
package field

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ErrScalarOverflow is returned when a caller supplies more than 32 bytes to
// a function expecting a canonical scalar encoding.
var ErrScalarOverflow = errors.New("scalar encoding exceeds 32 bytes")

// Scalar is an element of Fr, the BN254 scalar field with modulus
//
//	r = 21888242871839275222246405745257275088548364400416034343698204186575808495617
//
// It is also the base field Grumpkin is defined over, which is what makes
// the BN254/Grumpkin curve cycle useful inside a BN254 SNARK.
type Scalar struct {
	e fr.Element
}

// Zero returns the additive identity.
func Zero() Scalar { return Scalar{} }

// One returns the multiplicative identity.
func One() Scalar {
	var s Scalar
	s.e.SetOne()
	return s
}

// ScalarFromUint64 lifts a uint64 into Fr.
func ScalarFromUint64(v uint64) Scalar {
	var s Scalar
	s.e.SetUint64(v)
	return s
}

// ScalarFromBytesReduced interprets buf as a big-endian integer and reduces
// it modulo r. This is the "hash-to-scalar" operation used throughout
// gnark-crypto's SetBytes performs exactly this reduction.
func ScalarFromBytesReduced(buf []byte) Scalar {
	var s Scalar
	s.e.SetBytes(buf)
	return s
}

// ScalarFromCanonicalBytes parses a canonical (already-reduced) 32-byte
// big-endian scalar encoding, such as a claim-link's stealth_priv field.
func ScalarFromCanonicalBytes(buf []byte) (Scalar, error) {
	if len(buf) > 32 {
		return Scalar{}, ErrScalarOverflow
	}
	var s Scalar
	s.e.SetBytes(buf)
	return s, nil
}

// Bytes renders the scalar as 32-byte big-endian canonical form.
func (s Scalar) Bytes() [32]byte {
	return s.e.Bytes()
}

// Add returns s + other mod r.
func (s Scalar) Add(other Scalar) Scalar {
	var out Scalar
	out.e.Add(&s.e, &other.e)
	return out
}

// Sub returns s - other mod r.
func (s Scalar) Sub(other Scalar) Scalar {
	var out Scalar
	out.e.Sub(&s.e, &other.e)
	return out
}

// Mul returns s * other mod r.
func (s Scalar) Mul(other Scalar) Scalar {
	var out Scalar
	out.e.Mul(&s.e, &other.e)
	return out
}

// Square returns s * s mod r.
func (s Scalar) Square() Scalar {
	var out Scalar
	out.e.Square(&s.e)
	return out
}

// Neg returns -s mod r.
func (s Scalar) Neg() Scalar {
	var out Scalar
	out.e.Neg(&s.e)
	return out
}

// Inv returns the multiplicative inverse of s. A zero s yields zero, as
// gnark-crypto's own Inverse does; it does not panic.
func (s Scalar) Inv() Scalar {
	var out Scalar
	out.e.Inverse(&s.e)
	return out
}

// Equal reports whether two scalars are the same field element.
func (s Scalar) Equal(other Scalar) bool {
	return s.e.Equal(&other.e)
}

// IsZero reports whether s is the additive identity.
func (s Scalar) IsZero() bool {
	return s.e.IsZero()
}

// Element exposes the underlying gnark-crypto element for callers (such as
// the Poseidon2 permutation) that need to chain further field arithmetic.
func (s Scalar) Element() fr.Element {
	return s.e
}

// FromElement wraps a raw gnark-crypto fr.Element.
func FromElement(e fr.Element) Scalar {
	return Scalar{e: e}
}
