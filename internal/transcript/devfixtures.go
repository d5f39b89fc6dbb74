package transcript

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/bn254"

	"github.com/shieldbridge/core/internal/field"
)

// The functions in this file construct proof and verifying-key buffers that
// satisfy every check in ParseVerifyingKey, ParseProof, DeriveChallenges, and
// FinalPairingCheck against DevSRS, without a real Noir circuit or prover.
// They exist purely so other packages can build fixtures for tests that
// exercise the real cryptographic path end to end; nothing in this file is
// meaningful outside a test binary.

func g1Mul(scalar uint64) bn254.G1Affine {
	_, _, g1Gen, _ := bn254.Generators()
	var out bn254.G1Affine
	out.ScalarMultiplication(&g1Gen, scalarToBigInt(field.ScalarFromUint64(scalar)))
	return out
}

// NewDevVerifyingKey builds a canonical 1888-byte VK buffer: circuitSize,
// numPublicInputs, and publicInputsOffset packed as the three metadata
// limbs, followed by VKPoints distinct scalar multiples of the G1 generator
// so every point is on-curve and the buffer parses cleanly.
func NewDevVerifyingKey(circuitSize, numPublicInputs, publicInputsOffset uint64) []byte {
	buf := make([]byte, VKBufferBytes)
	binary.BigEndian.PutUint64(buf[24:32], circuitSize)
	binary.BigEndian.PutUint64(buf[56:64], numPublicInputs)
	binary.BigEndian.PutUint64(buf[88:96], publicInputsOffset)

	offset := VKMetadataBytes
	for i := 0; i < VKPoints; i++ {
		pt := g1Mul(uint64(i + 1))
		xb := pt.X.Bytes()
		yb := pt.Y.Bytes()
		copy(buf[offset:offset+32], xb[:])
		copy(buf[offset+32:offset+64], yb[:])
		offset += CommitmentBytes
	}
	return buf
}

// BuildDevProof constructs a proof buffer, sized against vk's LogN, whose
// Fiat-Shamir challenges and final pairing check succeed against vk,
// publicInputs, and DevSRS. It does this by first laying out every proof
// field except the KZG opening with arbitrary on-curve points and field
// scalars, running DeriveChallenges once against a placeholder opening to
// recover the batched evaluation v and the Shplonk evaluation point z —
// neither of which DeriveChallenges's schedule ever absorbs the opening
// commitment to compute — and then solving for the one opening commitment
// that satisfies the pairing equation under DevSRS's secret x:
//
//	KZGQuotient = (v*G1Gen - ShplonkQ) * (z - x)^-1
//
// which follows from the pairing check e(P0,[1]) * e(P1,[x]) == 1 with
// P0 = ShplonkQ - v*G1Gen + z*KZGQuotient and P1 = -KZGQuotient.
func BuildDevProof(vk VerifyingKey, publicInputs []field.Scalar) ([]byte, error) {
	logN := vk.LogN()
	if logN < 1 {
		logN = 1
	}

	preamble := [PreambleBytes]byte{}

	var commitments [WitnessCommits]bn254.G1Affine
	for i := range commitments {
		commitments[i] = g1Mul(uint64(100 + i))
	}

	sumcheckRows := make([][relationWidth]field.Scalar, logN)
	for r := range sumcheckRows {
		for c := 0; c < relationWidth; c++ {
			sumcheckRows[r][c] = field.ScalarFromUint64(uint64(1000 + r*relationWidth + c))
		}
	}

	var evaluations [relationWidth]field.Scalar
	for i := range evaluations {
		evaluations[i] = field.ScalarFromUint64(uint64(2000 + i))
	}

	foldCommits := make([]bn254.G1Affine, logN-1)
	for i := range foldCommits {
		foldCommits[i] = g1Mul(uint64(300 + i))
	}

	geminiEvals := make([]field.Scalar, logN-1)
	for i := range geminiEvals {
		geminiEvals[i] = field.ScalarFromUint64(uint64(4000 + i))
	}

	shplonkQ := g1Mul(500)

	placeholder := Proof{
		Preamble:     preamble,
		Commitments:  commitments,
		SumcheckRows: sumcheckRows,
		Evaluations:  evaluations,
		FoldCommits:  foldCommits,
		GeminiEvals:  geminiEvals,
		ShplonkQ:     shplonkQ,
		KZGQuotient:  g1Mul(1), // placeholder; challenges never absorb it
	}

	vkFingerprint := VKFingerprint(vk)
	challenges, err := DeriveChallenges(publicInputs, vkFingerprint, placeholder)
	if err != nil {
		return nil, err
	}

	x := DevSRSSecret()
	denom := challenges.ShplonkZ.Sub(x) // z - x

	_, _, g1Gen, _ := bn254.Generators()
	var vG1 bn254.G1Affine
	vG1.ScalarMultiplication(&g1Gen, scalarToBigInt(challenges.BatchedEval))

	var negShplonkQ, diff bn254.G1Affine
	negShplonkQ.Neg(&shplonkQ)
	diff.Add(&vG1, &negShplonkQ) // v*G1Gen - ShplonkQ

	var kzgQuotient bn254.G1Affine
	kzgQuotient.ScalarMultiplication(&diff, scalarToBigInt(denom.Inv()))

	final := placeholder
	final.KZGQuotient = kzgQuotient

	return serializeDevProof(final), nil
}

func serializeDevProof(p Proof) []byte {
	logN := len(p.SumcheckRows)
	size := PreambleBytes + WitnessCommits*CommitmentBytes +
		logN*relationWidth*ScalarBytes +
		relationWidth*ScalarBytes +
		len(p.FoldCommits)*CommitmentBytes +
		len(p.GeminiEvals)*ScalarBytes +
		CommitmentBytes + CommitmentBytes

	buf := make([]byte, size)
	offset := 0
	copy(buf[offset:offset+PreambleBytes], p.Preamble[:])
	offset += PreambleBytes

	for _, c := range p.Commitments {
		writePoint(buf[offset:offset+CommitmentBytes], c)
		offset += CommitmentBytes
	}

	for _, row := range p.SumcheckRows {
		for _, e := range row {
			eb := e.Bytes()
			copy(buf[offset:offset+ScalarBytes], eb[:])
			offset += ScalarBytes
		}
	}

	for _, e := range p.Evaluations {
		eb := e.Bytes()
		copy(buf[offset:offset+ScalarBytes], eb[:])
		offset += ScalarBytes
	}

	for _, fc := range p.FoldCommits {
		writePoint(buf[offset:offset+CommitmentBytes], fc)
		offset += CommitmentBytes
	}

	for _, e := range p.GeminiEvals {
		eb := e.Bytes()
		copy(buf[offset:offset+ScalarBytes], eb[:])
		offset += ScalarBytes
	}

	writePoint(buf[offset:offset+CommitmentBytes], p.ShplonkQ)
	offset += CommitmentBytes
	writePoint(buf[offset:offset+CommitmentBytes], p.KZGQuotient)

	return buf
}

func writePoint(dst []byte, p bn254.G1Affine) {
	xb := p.X.Bytes()
	yb := p.Y.Bytes()
	copy(dst[:32], xb[:])
	copy(dst[32:64], yb[:])
}
