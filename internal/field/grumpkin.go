package field

import (
	"errors"
)

// Grumpkin errors.
var (
	ErrPointNotOnCurve  = errors.New("point not on curve")
	ErrInvalidEncoding  = errors.New("invalid point encoding")
	ErrIdentityPoint    = errors.New("identity point not permitted")
)

// grumpkinB is the curve constant b in y^2 = x^3 + b, i.e. b = -17.
var grumpkinB = BaseFromUint64(17).Neg()

// Point is a Grumpkin point in affine coordinates over Fq, matching
// §4.F. The identity is represented by the (0, 0) sentinel, which is not a
// point on the curve (0 is not a cube root of -17's negation here) and is
// therefore safe as a distinguishing marker.
type Point struct {
	X, Y BaseElement
}

// Identity returns the point-at-infinity sentinel.
func Identity() Point { return Point{} }

// IsIdentity reports whether p is the sentinel identity.
func (p Point) IsIdentity() bool {
	return p.X.IsZero() && p.Y.IsZero()
}

// IsOnCurve checks y^2 == x^3 + b over Fq.
func (p Point) IsOnCurve() bool {
	if p.IsIdentity() {
		return true
	}
	lhs := p.Y.Square()
	x2 := p.X.Square()
	x3 := x2.Mul(p.X)
	rhs := x3.Add(grumpkinB)
	return lhs.Equal(rhs)
}

// Equal reports whether two points are identical (no short-Weierstrass
// projective representation is used, so equality is coordinate-wise).
func (p Point) Equal(other Point) bool {
	return p.X.Equal(other.X) && p.Y.Equal(other.Y)
}

// Neg returns -p.
func (p Point) Neg() Point {
	if p.IsIdentity() {
		return p
	}
	return Point{X: p.X, Y: p.Y.Neg()}
}

// Add returns p + q using the standard affine short-Weierstrass addition
// formulas (a = 0 for Grumpkin).
func (p Point) Add(q Point) Point {
	if p.IsIdentity() {
		return q
	}
	if q.IsIdentity() {
		return p
	}
	if p.X.Equal(q.X) {
		if p.Y.Equal(q.Y.Neg()) {
			return Identity()
		}
		return p.Double()
	}

	// lambda = (qy - py) / (qx - px)
	num := q.Y.Sub(p.Y)
	den := q.X.Sub(p.X)
	lambda := num.Mul(mustInvert(den))

	x3 := lambda.Square().Sub(p.X).Sub(q.X)
	y3 := lambda.Mul(p.X.Sub(x3)).Sub(p.Y)
	return Point{X: x3, Y: y3}
}

// Double returns p + p.
func (p Point) Double() Point {
	if p.IsIdentity() || p.Y.IsZero() {
		return Identity()
	}
	// lambda = 3x^2 / 2y  (a = 0)
	threeX2 := p.X.Square().Mul(BaseFromUint64(3))
	twoY := p.Y.Add(p.Y)
	lambda := threeX2.Mul(mustInvert(twoY))

	x3 := lambda.Square().Sub(p.X).Sub(p.X)
	y3 := lambda.Mul(p.X.Sub(x3)).Sub(p.Y)
	return Point{X: x3, Y: y3}
}

// ScalarMul computes k*p via double-and-add over the 256-bit big-endian
// encoding of k. The loop always runs 256 iterations, but the addition step
// runs only for the set bits of k, so its running time depends on k: it is
// not constant-time.
func (p Point) ScalarMul(k Scalar) Point {
	bytes := k.Bytes()
	result := Identity()
	base := p
	for i := len(bytes) - 1; i >= 0; i-- {
		b := bytes[i]
		for bit := 0; bit < 8; bit++ {
			if (b>>uint(bit))&1 == 1 {
				result = result.Add(base)
			}
			base = base.Double()
		}
	}
	return result
}

// mustInvert returns 1/b; callers only ever invert a nonzero denominator by
// construction (distinct x-coordinates, or a non-vertical tangent), so a
// zero denominator here indicates a caller bug, not attacker input.
func mustInvert(b BaseElement) BaseElement {
	if b.IsZero() {
		panic("field: division by zero in Grumpkin point arithmetic")
	}
	// b^(q-2) mod q via repeated squaring using Sqrt-free exponentiation
	// is avoided here: gnark-crypto's fp.Element exposes Inverse directly.
	return invertBase(b)
}

// Compress encodes p as 33 bytes: a one-byte parity prefix (0x02 for even
// y, 0x03 for odd y) followed by the 32-byte big-endian x-coordinate.
func (p Point) Compress() [33]byte {
	var out [33]byte
	if p.Y.IsOdd() {
		out[0] = 0x03
	} else {
		out[0] = 0x02
	}
	xb := p.X.Bytes()
	copy(out[1:], xb[:])
	return out
}

// Decompress reconstructs a point from its 33-byte compressed form,
// rejecting non-quadratic-residue x-coordinates and the identity sentinel.
func Decompress(buf []byte) (Point, error) {
	if len(buf) != 33 {
		return Point{}, ErrInvalidEncoding
	}
	prefix := buf[0]
	if prefix != 0x02 && prefix != 0x03 {
		return Point{}, ErrInvalidEncoding
	}
	x := BaseFromBytesReduced(buf[1:])
	if x.IsZero() {
		return Point{}, ErrIdentityPoint
	}

	rhs := x.Square().Mul(x).Add(grumpkinB)
	y, ok := rhs.Sqrt()
	if !ok {
		return Point{}, ErrPointNotOnCurve
	}
	if y.IsOdd() != (prefix == 0x03) {
		y = y.Neg()
	}
	pt := Point{X: x, Y: y}
	if !pt.IsOnCurve() {
		return Point{}, ErrPointNotOnCurve
	}
	return pt, nil
}
