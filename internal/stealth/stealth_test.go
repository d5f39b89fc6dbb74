package stealth

import (
	"testing"

	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/internal/note"
)

func TestMetaAddressEncodeDecodeRoundTrip(t *testing.T) {
	var seed [32]byte
	seed[31] = 1
	keys := DeriveKeys(seed)
	meta := keys.Meta()

	encoded := meta.Encode()
	if len(encoded) != 132 {
		t.Fatalf("expected 132-character meta-address, got %d", len(encoded))
	}

	decoded, err := DecodeMetaAddress(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decoded.SpendingPub.Equal(meta.SpendingPub) || !decoded.ViewingPub.Equal(meta.ViewingPub) {
		t.Fatalf("decoded meta-address does not match original")
	}
}

func TestDecodeMetaAddressRejectsBadLength(t *testing.T) {
	if _, err := DecodeMetaAddress("abcd"); err != ErrMetaAddressLength {
		t.Fatalf("expected ErrMetaAddressLength, got %v", err)
	}
}

func TestScanRecoversAmountAndStealthKey(t *testing.T) {
	var seed [32]byte
	seed[31] = 2
	keys := DeriveKeys(seed)

	ephemeralPriv := field.ScalarFromUint64(99)
	const amount = uint64(10000)

	deposit := CreateStealthDeposit(keys.Meta(), ephemeralPriv, amount)

	priv, recoveredAmount, ok := Scan(keys, deposit)
	if !ok {
		t.Fatalf("scan should match the key triple the deposit was created for")
	}
	if recoveredAmount != amount {
		t.Fatalf("expected amount %d, got %d", amount, recoveredAmount)
	}

	expectedStealthPub := field.Generator().ScalarMul(priv)
	expectedCommitment := note.Commitment(expectedStealthPub, recoveredAmount)
	if !expectedCommitment.Equal(deposit.Commitment) {
		t.Fatalf("recovered private scalar does not reconstruct the deposit's commitment")
	}
}

func TestScanRejectsNonMatchingKeys(t *testing.T) {
	var seedA, seedB [32]byte
	seedA[31] = 3
	seedB[31] = 4

	recipient := DeriveKeys(seedA)
	other := DeriveKeys(seedB)

	deposit := CreateStealthDeposit(recipient.Meta(), field.ScalarFromUint64(55), 1000)

	if _, _, ok := Scan(other, deposit); ok {
		t.Fatalf("scan should not match a key triple the deposit was not created for")
	}
}
