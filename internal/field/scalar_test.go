package field

import "testing"

func TestScalarAddSubRoundTrip(t *testing.T) {
	a := ScalarFromUint64(12345)
	b := ScalarFromUint64(6789)

	sum := a.Add(b)
	back := sum.Sub(b)
	if !back.Equal(a) {
		t.Fatalf("a + b - b != a")
	}
}

func TestScalarMulByZero(t *testing.T) {
	a := ScalarFromUint64(999)
	if !a.Mul(Zero()).IsZero() {
		t.Fatalf("a * 0 should be 0")
	}
}

func TestScalarOneIsMultiplicativeIdentity(t *testing.T) {
	a := ScalarFromUint64(42)
	if !a.Mul(One()).Equal(a) {
		t.Fatalf("a * 1 should equal a")
	}
}

func TestScalarBytesRoundTrip(t *testing.T) {
	a := ScalarFromUint64(987654321)
	b := a.Bytes()
	recovered, err := ScalarFromCanonicalBytes(b[:])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !recovered.Equal(a) {
		t.Fatalf("round trip through Bytes/ScalarFromCanonicalBytes changed the value")
	}
}

func TestScalarFromCanonicalBytesOverflow(t *testing.T) {
	buf := make([]byte, 33)
	if _, err := ScalarFromCanonicalBytes(buf); err != ErrScalarOverflow {
		t.Fatalf("expected ErrScalarOverflow, got %v", err)
	}
}

func TestScalarNegCancels(t *testing.T) {
	a := ScalarFromUint64(777)
	if !a.Add(a.Neg()).IsZero() {
		t.Fatalf("a + (-a) should be 0")
	}
}
