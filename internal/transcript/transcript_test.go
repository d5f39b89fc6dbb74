package transcript

import (
	"testing"

	"github.com/shieldbridge/core/internal/field"
)

func TestChallengeIsDeterministicGivenSameAbsorptions(t *testing.T) {
	t1 := New()
	t1.Absorb([]byte("hello"))
	c1 := t1.Challenge("eta")

	t2 := New()
	t2.Absorb([]byte("hello"))
	c2 := t2.Challenge("eta")

	if !c1.Equal(c2) {
		t.Fatalf("identical absorptions should yield identical challenges")
	}
}

func TestChallengeDependsOnPriorChallenges(t *testing.T) {
	tr := New()
	tr.Absorb([]byte("hello"))
	first := tr.Challenge("eta")
	second := tr.Challenge("eta")
	if first.Equal(second) {
		t.Fatalf("drawing the same label twice should not repeat a challenge, since the sponge state advances")
	}
}

func TestChallengeDependsOnAbsorbedData(t *testing.T) {
	t1 := New()
	t1.Absorb([]byte("a"))
	c1 := t1.Challenge("eta")

	t2 := New()
	t2.Absorb([]byte("b"))
	c2 := t2.Challenge("eta")

	if c1.Equal(c2) {
		t.Fatalf("distinct absorbed data should yield distinct challenges")
	}
}

func TestSplit127RecombinesToOriginalValue(t *testing.T) {
	c := field.ScalarFromUint64(0xdeadbeef)
	lo, hi := Split127(c)

	shift := field.ScalarFromUint64(1)
	two := field.ScalarFromUint64(2)
	for i := 0; i < 127; i++ {
		shift = shift.Mul(two)
	}
	recombined := lo.Add(hi.Mul(shift))
	if !recombined.Equal(c) {
		t.Fatalf("lo + hi*2^127 should equal the original challenge")
	}
}

func TestSplit127LoIsBoundedBy127Bits(t *testing.T) {
	c := field.ScalarFromUint64(0xffffffffffffffff)
	lo, _ := Split127(c)
	b := lo.Bytes()
	if b[0]&0x80 != 0 {
		t.Fatalf("lo should never use bit 127")
	}
}

func testVK(t *testing.T, circuitSize uint64) VerifyingKey {
	t.Helper()
	buf := NewDevVerifyingKey(circuitSize, 4, 1)
	vk, err := ParseVerifyingKey(buf)
	if err != nil {
		t.Fatalf("unexpected error parsing dev VK: %v", err)
	}
	return vk
}

func TestParseVerifyingKeyRejectsWrongLength(t *testing.T) {
	if _, err := ParseVerifyingKey(make([]byte, 100)); err != ErrVKBufferLength {
		t.Fatalf("expected ErrVKBufferLength, got %v", err)
	}
}

func TestParseVerifyingKeyRejectsOffCurvePoint(t *testing.T) {
	buf := NewDevVerifyingKey(8, 4, 1)
	buf[VKMetadataBytes+63] ^= 0xFF
	if _, err := ParseVerifyingKey(buf); err != ErrMalformedCommit {
		t.Fatalf("expected ErrMalformedCommit, got %v", err)
	}
}

func TestVKFingerprintIsDeterministic(t *testing.T) {
	vk := testVK(t, 8)
	if !VKFingerprint(vk).Equal(VKFingerprint(vk)) {
		t.Fatalf("VKFingerprint should be deterministic")
	}
}

func TestVKFingerprintDiffersAcrossBuffers(t *testing.T) {
	a := testVK(t, 8)
	b := testVK(t, 16)
	if VKFingerprint(a).Equal(VKFingerprint(b)) {
		t.Fatalf("distinct VK buffers should have distinct fingerprints")
	}
}

func TestParseProofAcceptsWellFormedBuffer(t *testing.T) {
	vk := testVK(t, 8)
	publicInputs := []field.Scalar{field.ScalarFromUint64(1), field.ScalarFromUint64(2)}
	proofBuf, err := BuildDevProof(vk, publicInputs)
	if err != nil {
		t.Fatalf("unexpected error building dev proof: %v", err)
	}
	if _, err := ParseProof(proofBuf, vk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseProofRejectsTooShortBuffer(t *testing.T) {
	vk := testVK(t, 8)
	if _, err := ParseProof(make([]byte, 10), vk); err != ErrProofTooShort {
		t.Fatalf("expected ErrProofTooShort, got %v", err)
	}
}

func TestParseProofRejectsOffCurveCommitment(t *testing.T) {
	vk := testVK(t, 8)
	publicInputs := []field.Scalar{field.ScalarFromUint64(1)}
	proofBuf, err := BuildDevProof(vk, publicInputs)
	if err != nil {
		t.Fatalf("unexpected error building dev proof: %v", err)
	}
	proofBuf[PreambleBytes+63] ^= 0xFF
	if _, err := ParseProof(proofBuf, vk); err != ErrMalformedCommit {
		t.Fatalf("expected ErrMalformedCommit, got %v", err)
	}
}

func TestDeriveChallengesProducesDistinctChallenges(t *testing.T) {
	vk := testVK(t, 8)
	publicInputs := []field.Scalar{field.ScalarFromUint64(1), field.ScalarFromUint64(2)}
	proofBuf, err := BuildDevProof(vk, publicInputs)
	if err != nil {
		t.Fatalf("unexpected error building dev proof: %v", err)
	}
	p, err := ParseProof(proofBuf, vk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	challenges, err := DeriveChallenges(publicInputs, VKFingerprint(vk), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all := []field.Scalar{challenges.Eta, challenges.Beta, challenges.Gamma, challenges.Alpha, challenges.Rho}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[i].Equal(all[j]) {
				t.Fatalf("challenge %d and %d should not coincide", i, j)
			}
		}
	}
}

func TestDeriveChallengesDependsOnPublicInputs(t *testing.T) {
	vk := testVK(t, 8)
	proofBuf, err := BuildDevProof(vk, []field.Scalar{field.ScalarFromUint64(1)})
	if err != nil {
		t.Fatalf("unexpected error building dev proof: %v", err)
	}
	p, err := ParseProof(proofBuf, vk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c1, err := DeriveChallenges([]field.Scalar{field.ScalarFromUint64(1)}, VKFingerprint(vk), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c2, err := DeriveChallenges([]field.Scalar{field.ScalarFromUint64(2)}, VKFingerprint(vk), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c1.Eta.Equal(c2.Eta) {
		t.Fatalf("changing the public inputs should change the derived challenges")
	}
}

func TestFinalPairingCheckAcceptsADevProof(t *testing.T) {
	vk := testVK(t, 8)
	publicInputs := []field.Scalar{field.ScalarFromUint64(1), field.ScalarFromUint64(2)}
	proofBuf, err := BuildDevProof(vk, publicInputs)
	if err != nil {
		t.Fatalf("unexpected error building dev proof: %v", err)
	}
	p, err := ParseProof(proofBuf, vk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	challenges, err := DeriveChallenges(publicInputs, VKFingerprint(vk), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g2Gen, g2X := DevSRS()
	if err := FinalPairingCheck(challenges.P0, challenges.P1, g2Gen, g2X); err != nil {
		t.Fatalf("expected a dev-built proof to satisfy the pairing check: %v", err)
	}
}

func TestFinalPairingCheckRejectsATamperedProof(t *testing.T) {
	vk := testVK(t, 8)
	publicInputs := []field.Scalar{field.ScalarFromUint64(1), field.ScalarFromUint64(2)}
	proofBuf, err := BuildDevProof(vk, publicInputs)
	if err != nil {
		t.Fatalf("unexpected error building dev proof: %v", err)
	}
	// Tamper with one of the sumcheck evaluations after the proof was
	// constructed: this changes v without changing the opening commitment
	// that was solved for the untampered value.
	proofBuf[PreambleBytes+WitnessCommits*CommitmentBytes+31] ^= 0xFF

	p, err := ParseProof(proofBuf, vk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	challenges, err := DeriveChallenges(publicInputs, VKFingerprint(vk), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g2Gen, g2X := DevSRS()
	if err := FinalPairingCheck(challenges.P0, challenges.P1, g2Gen, g2X); err == nil {
		t.Fatalf("expected a tampered proof to fail the pairing check")
	}
}
