package note

import (
	"testing"

	"github.com/shieldbridge/core/internal/field"
)

func TestClaimLinkRoundTrip(t *testing.T) {
	n := Note{
		StealthPriv: field.ScalarFromUint64(424242),
		AmountSats:  10000,
		LeafIndex:   7,
	}

	link := EncodeClaimLink(n)
	decoded, err := DecodeClaimLink(link)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decoded.StealthPriv.Equal(n.StealthPriv) {
		t.Fatalf("stealth priv did not round trip")
	}
	if decoded.AmountSats != n.AmountSats {
		t.Fatalf("amount did not round trip: got %d want %d", decoded.AmountSats, n.AmountSats)
	}
	if decoded.LeafIndex != n.LeafIndex {
		t.Fatalf("leaf index did not round trip: got %d want %d", decoded.LeafIndex, n.LeafIndex)
	}
}

func TestDecodeClaimLinkRejectsBadEncoding(t *testing.T) {
	if _, err := DecodeClaimLink("not-valid-base64!!"); err != ErrClaimLinkEncoding {
		t.Fatalf("expected ErrClaimLinkEncoding, got %v", err)
	}
}

func TestDecodeClaimLinkRejectsWrongLength(t *testing.T) {
	// Valid base64, but far too short to be a claim-link payload.
	if _, err := DecodeClaimLink("AQID"); err != ErrClaimLinkLength {
		t.Fatalf("expected ErrClaimLinkLength, got %v", err)
	}
}

func TestCommitmentBindsStealthPubAndAmount(t *testing.T) {
	priv := field.ScalarFromUint64(1)
	stealthPub := field.Generator().ScalarMul(priv)

	c1 := Commitment(stealthPub, 10000)
	c2 := Commitment(stealthPub, 9999)
	if c1.Equal(c2) {
		t.Fatalf("commitment should change when amount changes")
	}

	otherPub := field.Generator().ScalarMul(field.ScalarFromUint64(2))
	c3 := Commitment(otherPub, 10000)
	if c1.Equal(c3) {
		t.Fatalf("commitment should change when stealth public key changes")
	}
}

func TestNullifierHashIsDoublePoseidon(t *testing.T) {
	priv := field.ScalarFromUint64(55)
	const leafIndex = 3

	inner := Nullifier(priv, leafIndex)
	outer := NullifierHash(priv, leafIndex)
	if inner.Equal(outer) {
		t.Fatalf("nullifier_hash should differ from the single-hashed nullifier")
	}
}

func TestNullifierHashDeterministic(t *testing.T) {
	priv := field.ScalarFromUint64(55)
	h1 := NullifierHash(priv, 3)
	h2 := NullifierHash(priv, 3)
	if !h1.Equal(h2) {
		t.Fatalf("nullifier hash should be deterministic")
	}
}

func TestNullifierHashDiffersByLeafIndex(t *testing.T) {
	priv := field.ScalarFromUint64(55)
	if NullifierHash(priv, 3).Equal(NullifierHash(priv, 4)) {
		t.Fatalf("nullifier hash should depend on leaf index")
	}
}

func TestStealthPubRecoversGeneratorProduct(t *testing.T) {
	priv := field.ScalarFromUint64(9000)
	n := Note{StealthPriv: priv, AmountSats: 1, LeafIndex: 0}
	expected := field.Generator().ScalarMul(priv)
	if !StealthPub(n).Equal(expected) {
		t.Fatalf("StealthPub should equal stealth_priv*G")
	}
}
