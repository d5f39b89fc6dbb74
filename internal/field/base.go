package field

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
)

// BaseElement is an element of Fq, the BN254 base field. Grumpkin's scalar
// field equals Fq, so Grumpkin coordinates live here while Grumpkin scalars
// (private keys) live in Scalar/Fr.
type BaseElement struct {
	e fp.Element
}

// BaseZero returns the additive identity of Fq.
func BaseZero() BaseElement { return BaseElement{} }

// BaseFromUint64 lifts a uint64 into Fq.
func BaseFromUint64(v uint64) BaseElement {
	var b BaseElement
	b.e.SetUint64(v)
	return b
}

// BaseFromBytesReduced interprets buf as big-endian and reduces modulo q.
func BaseFromBytesReduced(buf []byte) BaseElement {
	var b BaseElement
	b.e.SetBytes(buf)
	return b
}

// Bytes renders the element as 32-byte big-endian canonical form.
func (b BaseElement) Bytes() [32]byte {
	return b.e.Bytes()
}

func (b BaseElement) Add(other BaseElement) BaseElement {
	var out BaseElement
	out.e.Add(&b.e, &other.e)
	return out
}

func (b BaseElement) Sub(other BaseElement) BaseElement {
	var out BaseElement
	out.e.Sub(&b.e, &other.e)
	return out
}

func (b BaseElement) Mul(other BaseElement) BaseElement {
	var out BaseElement
	out.e.Mul(&b.e, &other.e)
	return out
}

func (b BaseElement) Square() BaseElement {
	var out BaseElement
	out.e.Square(&b.e)
	return out
}

func (b BaseElement) Neg() BaseElement {
	var out BaseElement
	out.e.Neg(&b.e)
	return out
}

func (b BaseElement) Equal(other BaseElement) bool {
	return b.e.Equal(&other.e)
}

func (b BaseElement) IsZero() bool {
	return b.e.IsZero()
}

// IsQuadraticResidue reports whether b has a square root in Fq.
func (b BaseElement) IsQuadraticResidue() bool {
	return b.e.Legendre() >= 0
}

// Sqrt returns a square root of b (one of the two, with no parity
// guarantee) and true, or the zero value and false if b is not a
// quadratic residue.
func (b BaseElement) Sqrt() (BaseElement, bool) {
	var out fp.Element
	if out.Sqrt(&b.e) == nil {
		return BaseElement{}, false
	}
	return BaseElement{e: out}, true
}

// IsOdd reports whether the canonical big-endian encoding of b is odd,
// i.e. its least significant bit is 1. Used for compressed-point parity.
func (b BaseElement) IsOdd() bool {
	bytes := b.e.Bytes()
	return bytes[31]&1 == 1
}

// Inverse returns b^-1 in Fq. A zero b yields zero rather than a panic;
// the zero check for curve arithmetic lives in mustInvert.
func (b BaseElement) Inverse() BaseElement {
	var out fp.Element
	out.Inverse(&b.e)
	return BaseElement{e: out}
}

// invertBase is a package-private helper used by grumpkin.go.
func invertBase(b BaseElement) BaseElement {
	return b.Inverse()
}
