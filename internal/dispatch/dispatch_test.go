package dispatch

import (
	"testing"

	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/internal/transcript"
	"github.com/shieldbridge/core/pkg/types"
)

func claimSchemaInputs() []field.Scalar {
	return []field.Scalar{
		field.ScalarFromUint64(1), // root
		field.ScalarFromUint64(2), // nullifier_hash
		field.ScalarFromUint64(3), // amount_sats
		field.ScalarFromUint64(4), // recipient_pubkey_low
		field.ScalarFromUint64(5), // recipient_pubkey_high
	}
}

// devClaimFixture builds a registered VK and a proof that passes the full
// real verification path for the claim circuit's schema.
func devClaimFixture(t *testing.T) (*VKRegistry, []byte, []byte) {
	t.Helper()
	publicInputs := claimSchemaInputs()
	vkBuf := transcript.NewDevVerifyingKey(8, uint64(len(publicInputs)), 1)
	vk, err := transcript.ParseVerifyingKey(vkBuf)
	if err != nil {
		t.Fatalf("unexpected error parsing dev VK: %v", err)
	}
	proofBuf, err := transcript.BuildDevProof(vk, publicInputs)
	if err != nil {
		t.Fatalf("unexpected error building dev proof: %v", err)
	}
	reg := NewVKRegistry(map[types.CircuitKind][]byte{types.CircuitClaim: vkBuf})
	return reg, vkBuf, proofBuf
}

func TestDispatchSucceedsForWellFormedClaimRequest(t *testing.T) {
	reg, vkBuf, proofBuf := devClaimFixture(t)

	req := Request{
		Circuit:      types.CircuitClaim,
		Proof:        proofBuf,
		PublicInputs: claimSchemaInputs(),
		VKBuffer:     vkBuf,
	}

	if _, _, err := Dispatch(reg, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDispatchRejectsTamperedProof(t *testing.T) {
	reg, vkBuf, proofBuf := devClaimFixture(t)
	proofBuf[transcript.PreambleBytes+transcript.WitnessCommits*transcript.CommitmentBytes+31] ^= 0xFF

	req := Request{
		Circuit:      types.CircuitClaim,
		Proof:        proofBuf,
		PublicInputs: claimSchemaInputs(),
		VKBuffer:     vkBuf,
	}
	if _, _, err := Dispatch(reg, req); err == nil {
		t.Fatalf("expected a tampered proof to be rejected")
	}
}

func TestDispatchRejectsUnknownCircuit(t *testing.T) {
	reg := NewVKRegistry(nil)
	req := Request{Circuit: types.CircuitKind(250), Proof: []byte{}}
	if _, _, err := Dispatch(reg, req); err != ErrUnknownCircuit {
		t.Fatalf("expected ErrUnknownCircuit, got %v", err)
	}
}

func TestDispatchRejectsWrongPublicInputCount(t *testing.T) {
	reg, vkBuf, proofBuf := devClaimFixture(t)

	req := Request{
		Circuit:      types.CircuitClaim,
		Proof:        proofBuf,
		PublicInputs: []field.Scalar{field.ScalarFromUint64(1)},
		VKBuffer:     vkBuf,
	}
	if _, _, err := Dispatch(reg, req); err != ErrPublicInputCount {
		t.Fatalf("expected ErrPublicInputCount, got %v", err)
	}
}

func TestDispatchRejectsMissingVerifyingKey(t *testing.T) {
	reg := NewVKRegistry(nil)
	_, vkBuf, proofBuf := devClaimFixture(t)

	req := Request{
		Circuit:      types.CircuitClaim,
		Proof:        proofBuf,
		PublicInputs: claimSchemaInputs(),
		VKBuffer:     vkBuf,
	}
	if _, _, err := Dispatch(reg, req); err != ErrNoVerifyingKey {
		t.Fatalf("expected ErrNoVerifyingKey, got %v", err)
	}
}

func TestDispatchRejectsStaleVKFingerprint(t *testing.T) {
	reg, _, proofBuf := devClaimFixture(t)
	otherVKBuf := transcript.NewDevVerifyingKey(16, uint64(len(claimSchemaInputs())), 1)

	req := Request{
		Circuit:      types.CircuitClaim,
		Proof:        proofBuf,
		PublicInputs: claimSchemaInputs(),
		VKBuffer:     otherVKBuf,
	}
	if _, _, err := Dispatch(reg, req); err != ErrVKFingerprintStale {
		t.Fatalf("expected ErrVKFingerprintStale, got %v", err)
	}
}

func TestFieldNamesReturnsSchemaForEachCircuit(t *testing.T) {
	kinds := []types.CircuitKind{
		types.CircuitClaim,
		types.CircuitSplit,
		types.CircuitSpendPartialPublic,
		types.CircuitPoolDeposit,
		types.CircuitPoolWithdraw,
		types.CircuitPoolClaimYield,
	}
	for _, k := range kinds {
		names, err := FieldNames(k)
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", k, err)
		}
		if len(names) == 0 {
			t.Fatalf("expected non-empty field names for %v", k)
		}
	}
}

func TestFieldNamesRejectsUnknownCircuit(t *testing.T) {
	if _, err := FieldNames(types.CircuitKind(250)); err != ErrUnknownCircuit {
		t.Fatalf("expected ErrUnknownCircuit, got %v", err)
	}
}
