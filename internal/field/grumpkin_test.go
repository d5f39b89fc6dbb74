package field

import "testing"

func TestGeneratorIsOnCurve(t *testing.T) {
	g := Generator()
	if !g.IsOnCurve() {
		t.Fatalf("generator point is not on curve")
	}
	if g.IsIdentity() {
		t.Fatalf("generator should not be the identity")
	}
}

func TestIdentityIsAdditiveUnit(t *testing.T) {
	g := Generator()
	sum := g.Add(Identity())
	if !sum.Equal(g) {
		t.Fatalf("g + identity should equal g")
	}
}

func TestPointNegCancels(t *testing.T) {
	g := Generator()
	sum := g.Add(g.Neg())
	if !sum.IsIdentity() {
		t.Fatalf("g + (-g) should be the identity")
	}
}

func TestScalarMulDistributesOverAddition(t *testing.T) {
	g := Generator()
	k1 := ScalarFromUint64(7)
	k2 := ScalarFromUint64(11)

	lhs := g.ScalarMul(k1.Add(k2))
	rhs := g.ScalarMul(k1).Add(g.ScalarMul(k2))
	if !lhs.Equal(rhs) {
		t.Fatalf("(k1+k2)*G should equal k1*G + k2*G")
	}
}

func TestScalarMulByTwoEqualsDouble(t *testing.T) {
	g := Generator()
	doubled := g.Double()
	viaMul := g.ScalarMul(ScalarFromUint64(2))
	if !doubled.Equal(viaMul) {
		t.Fatalf("2*G via Double should equal 2*G via ScalarMul")
	}
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	g := Generator().ScalarMul(ScalarFromUint64(12345))
	compressed := g.Compress()
	recovered, err := Decompress(compressed[:])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !recovered.Equal(g) {
		t.Fatalf("decompressed point does not match original")
	}
}

func TestDecompressRejectsWrongLength(t *testing.T) {
	if _, err := Decompress(make([]byte, 32)); err != ErrInvalidEncoding {
		t.Fatalf("expected ErrInvalidEncoding, got %v", err)
	}
}

func TestDecompressRejectsBadPrefix(t *testing.T) {
	buf := make([]byte, 33)
	buf[0] = 0x04
	if _, err := Decompress(buf); err != ErrInvalidEncoding {
		t.Fatalf("expected ErrInvalidEncoding, got %v", err)
	}
}

func TestDecompressRejectsZeroX(t *testing.T) {
	buf := make([]byte, 33)
	buf[0] = 0x02
	if _, err := Decompress(buf); err != ErrIdentityPoint {
		t.Fatalf("expected ErrIdentityPoint, got %v", err)
	}
}
