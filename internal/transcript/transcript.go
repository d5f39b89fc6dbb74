// Package transcript implements the UltraHonk-style Fiat-Shamir transcript
// and final pairing check. It reconstructs the
// challenge schedule Barretenberg's UltraHonk verifier uses —
// Keccak-256 absorption, a 127/127-bit challenge split for recursion
// efficiency, and a verifying-key fingerprint reduced into Fr — then
// delegates the final batched KZG pairing check to gnark-crypto's BN254
// pairing, so this package never reimplements curve pairing arithmetic by
// hand.
package transcript

import (
	"encoding/binary"
	"errors"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/consensys/gnark-crypto/ecc/bn254"

	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/pkg/types"
)

// Byte-layout constants for an UltraHonk proof and its verifying key.
const (
	PreambleWords   = 16 // pairing-accumulator preamble, one 32-byte limb each
	PreambleBytes   = PreambleWords * 32
	WitnessCommits  = 8  // wire/permutation/lookup witness commitments
	CommitmentBytes = 64 // uncompressed G1 point: 32-byte X || 32-byte Y
	ScalarBytes     = 32

	// relationWidth is the number of field elements absorbed per sumcheck
	// row and the number of final multilinear evaluations ("E") the
	// verifier reads after the sumcheck rounds. Barretenberg's exact count
	// is a property of the compiled circuit's relation set; this module
	// targets no real compiled circuit (the Noir compiler and trusted
	// setup are both out of scope — see DESIGN.md), so the width is fixed
	// at the one value the rest of this package's layout already commits
	// to: one evaluation per witness commitment above.
	relationWidth = WitnessCommits

	// numGateChallenges is the fixed count of repeat-squeezed gate
	// challenges step 4 of the schedule produces.
	numGateChallenges = 9

	// VKMetadataBytes holds circuit size, public input count, and public
	// input offset, each as a 32-byte big-endian field.
	VKMetadataBytes = 3 * ScalarBytes
	// VKPoints is the number of affine G1 points making up the remainder
	// of the canonical verifying-key buffer (selector, permutation, and
	// table commitments).
	VKPoints      = 28
	VKBufferBytes = VKMetadataBytes + VKPoints*CommitmentBytes // 1888
)

// Errors returned while parsing or verifying a proof or verifying key.
var (
	ErrProofTooShort   = errors.New("transcript: proof buffer too short")
	ErrVKFingerprint   = types.ErrVkMismatch
	ErrPairingCheck    = types.ErrPairingRejected
	ErrMalformedCommit = types.ErrPointNotOnCurve
	ErrVKBufferLength  = errors.New("transcript: verifying key buffer must be exactly 1888 bytes")
	ErrChallengeZero   = types.ErrChallengeZero
)

// Transcript is a Keccak-256 Fiat-Shamir sponge: every absorbed byte string
// extends a running digest, and every challenge draw both derives from and
// re-seeds that digest, so no two challenges in one verification can ever
// coincide unless the absorbed transcripts coincide exactly.
type Transcript struct {
	state []byte
}

// New starts an empty transcript.
func New() *Transcript {
	return &Transcript{state: []byte{}}
}

// Absorb appends data to the transcript's running state.
func (t *Transcript) Absorb(data []byte) {
	t.state = append(t.state, data...)
}

// Challenge draws the next 32-byte challenge as Keccak256(state || label),
// then folds the challenge back into state so every later draw depends on
// every earlier one. The very first draw in a transcript's life therefore
// omits any "previous challenge" prefix, exactly as the schedule requires,
// since state starts empty.
func (t *Transcript) Challenge(label string) field.Scalar {
	h := sha3.NewLegacyKeccak256()
	h.Write(t.state)
	h.Write([]byte(label))
	digest := h.Sum(nil)
	t.state = append(t.state, digest...)
	return field.ScalarFromBytesReduced(digest)
}

// Split127 splits a challenge into two 127-bit halves (lo, hi), the form
// UltraHonk's recursive verifier circuit consumes so that a 254-bit Fr
// challenge can be range-checked as two limbs that each fit comfortably
// under the scalar field's bit length.
func Split127(c field.Scalar) (lo field.Scalar, hi field.Scalar) {
	raw := c.Bytes() // 32-byte big-endian
	v := new(big.Int).SetBytes(raw[:])

	mask := new(big.Int).Lsh(big.NewInt(1), 127)
	mask.Sub(mask, big.NewInt(1))

	loInt := new(big.Int).And(v, mask)
	hiInt := new(big.Int).Rsh(v, 127)

	lo = field.ScalarFromBytesReduced(loInt.Bytes())
	hi = field.ScalarFromBytesReduced(hiInt.Bytes())
	return lo, hi
}

// VerifyingKey is the parsed canonical "affine VK" buffer: 96 bytes of
// metadata (circuit size, public input count, public input offset) followed
// by 28 affine G1 points, 1888 bytes total.
type VerifyingKey struct {
	CircuitSize        uint64
	NumPublicInputs    uint64
	PublicInputsOffset uint64
	Points             [VKPoints]bn254.G1Affine

	// buffer is the exact canonical bytes this key was parsed from, kept
	// so VKFingerprint hashes precisely what was registered rather than a
	// re-serialization of the parsed fields.
	buffer []byte
}

// ParseVerifyingKey parses a canonical 1888-byte verifying-key buffer,
// rejecting any buffer of the wrong length or carrying an off-curve point.
func ParseVerifyingKey(buf []byte) (VerifyingKey, error) {
	if len(buf) != VKBufferBytes {
		return VerifyingKey{}, ErrVKBufferLength
	}

	var vk VerifyingKey
	vk.CircuitSize = binary.BigEndian.Uint64(buf[24:32])
	vk.NumPublicInputs = binary.BigEndian.Uint64(buf[56:64])
	vk.PublicInputsOffset = binary.BigEndian.Uint64(buf[88:96])

	offset := VKMetadataBytes
	for i := 0; i < VKPoints; i++ {
		chunk := buf[offset : offset+CommitmentBytes]
		vk.Points[i].X.SetBytes(chunk[:32])
		vk.Points[i].Y.SetBytes(chunk[32:64])
		if !vk.Points[i].IsOnCurve() {
			return VerifyingKey{}, ErrMalformedCommit
		}
		offset += CommitmentBytes
	}

	vk.buffer = append([]byte{}, buf...)
	return vk, nil
}

// LogN returns the ceiling log2 of the verifying key's circuit size, the
// number of sumcheck rounds and the fold-commitment count (LogN-1) the
// proof layout depends on.
func (vk VerifyingKey) LogN() int {
	n := vk.CircuitSize
	if n <= 1 {
		return 0
	}
	logN := 0
	size := uint64(1)
	for size < n {
		size <<= 1
		logN++
	}
	return logN
}

// VKFingerprint reduces the Keccak-256 digest of a parsed verifying key's
// canonical buffer modulo r.
func VKFingerprint(vk VerifyingKey) field.Scalar {
	h := sha3.NewLegacyKeccak256()
	h.Write(vk.buffer)
	return field.ScalarFromBytesReduced(h.Sum(nil))
}

// Proof is a fully parsed UltraHonk proof, laid out exactly as the verifier
// transcript consumes it: the pairing-accumulator preamble (absorbed
// verbatim, not reduced), the eight witness commitments, the sumcheck
// region (LogN rows of relationWidth field elements each), the final
// multilinear evaluations, the Gemini fold commitments and evaluations, and
// the Shplonk batch commitment plus KZG opening (quotient) commitment.
type Proof struct {
	Preamble    [PreambleBytes]byte
	Commitments [WitnessCommits]bn254.G1Affine

	SumcheckRows [][relationWidth]field.Scalar
	Evaluations  [relationWidth]field.Scalar
	FoldCommits  []bn254.G1Affine
	GeminiEvals  []field.Scalar
	ShplonkQ     bn254.G1Affine
	KZGQuotient  bn254.G1Affine
}

// ParseProof splits a raw proof buffer into the structured layout above,
// sized against the parsed verifying key's LogN.
func ParseProof(buf []byte, vk VerifyingKey) (Proof, error) {
	logN := vk.LogN()
	if logN < 1 {
		logN = 1
	}

	minLen := PreambleBytes + WitnessCommits*CommitmentBytes +
		logN*relationWidth*ScalarBytes +
		relationWidth*ScalarBytes +
		(logN-1)*CommitmentBytes +
		(logN-1)*ScalarBytes +
		CommitmentBytes + CommitmentBytes
	if len(buf) < minLen {
		return Proof{}, ErrProofTooShort
	}

	var p Proof
	copy(p.Preamble[:], buf[:PreambleBytes])
	offset := PreambleBytes

	for i := 0; i < WitnessCommits; i++ {
		chunk := buf[offset : offset+CommitmentBytes]
		p.Commitments[i].X.SetBytes(chunk[:32])
		p.Commitments[i].Y.SetBytes(chunk[32:64])
		if !p.Commitments[i].IsOnCurve() {
			return Proof{}, ErrMalformedCommit
		}
		offset += CommitmentBytes
	}

	p.SumcheckRows = make([][relationWidth]field.Scalar, logN)
	for r := 0; r < logN; r++ {
		for c := 0; c < relationWidth; c++ {
			p.SumcheckRows[r][c] = field.ScalarFromBytesReduced(buf[offset : offset+ScalarBytes])
			offset += ScalarBytes
		}
	}

	for c := 0; c < relationWidth; c++ {
		p.Evaluations[c] = field.ScalarFromBytesReduced(buf[offset : offset+ScalarBytes])
		offset += ScalarBytes
	}

	p.FoldCommits = make([]bn254.G1Affine, logN-1)
	for i := 0; i < logN-1; i++ {
		chunk := buf[offset : offset+CommitmentBytes]
		p.FoldCommits[i].X.SetBytes(chunk[:32])
		p.FoldCommits[i].Y.SetBytes(chunk[32:64])
		if !p.FoldCommits[i].IsOnCurve() {
			return Proof{}, ErrMalformedCommit
		}
		offset += CommitmentBytes
	}

	p.GeminiEvals = make([]field.Scalar, logN-1)
	for i := 0; i < logN-1; i++ {
		p.GeminiEvals[i] = field.ScalarFromBytesReduced(buf[offset : offset+ScalarBytes])
		offset += ScalarBytes
	}

	p.ShplonkQ.X.SetBytes(buf[offset : offset+32])
	p.ShplonkQ.Y.SetBytes(buf[offset+32 : offset+64])
	if !p.ShplonkQ.IsOnCurve() {
		return Proof{}, ErrMalformedCommit
	}
	offset += CommitmentBytes

	p.KZGQuotient.X.SetBytes(buf[offset : offset+32])
	p.KZGQuotient.Y.SetBytes(buf[offset+32 : offset+64])
	if !p.KZGQuotient.IsOnCurve() {
		return Proof{}, ErrMalformedCommit
	}

	return p, nil
}

// Challenges holds every Fiat-Shamir challenge the schedule derives, plus
// the two G1 pairing operands the final step collapses the proof into.
type Challenges struct {
	Eta             field.Scalar
	Beta            field.Scalar
	Gamma           field.Scalar
	Alpha           field.Scalar
	GateChallenges  [numGateChallenges]field.Scalar
	SumcheckU       []field.Scalar
	Rho             field.Scalar
	GeminiR         []field.Scalar
	ShplonkNu       field.Scalar
	ShplonkZ        field.Scalar
	// BatchedEval is v, the rho-weighted batched evaluation folded into P0.
	// Exposed so a proof constructor (necessarily the same process that
	// will later verify it, since no real prover exists here) can solve
	// for the KZG quotient commitment that satisfies the final pairing
	// check.
	BatchedEval field.Scalar
	P0          bn254.G1Affine
	P1          bn254.G1Affine
}

func absorbScalar(tr *Transcript, s field.Scalar) {
	b := s.Bytes()
	tr.Absorb(b[:])
}

func absorbPoint(tr *Transcript, p bn254.G1Affine) {
	xb := p.X.Bytes()
	yb := p.Y.Bytes()
	tr.Absorb(xb[:])
	tr.Absorb(yb[:])
}

// DeriveChallenges replays the full UltraHonk Fiat-Shamir schedule §4.V
// describes over a parsed proof and its public inputs: the eta round binds
// vk_hash and the user's public inputs to the preamble and the first three
// witness commitments; beta/gamma fold out of one squeeze via Split127;
// alpha absorbs the permutation/lookup commitments; a fixed number of gate
// challenges are repeat-squeezed; every sumcheck row is absorbed in turn;
// and the Gemini/Shplonk fold absorbs every evaluation and fold commitment
// as it is produced. Any challenge that squeezes to zero aborts the whole
// derivation, since a zero challenge can never appear from a real proof
// without negligible probability and is far more likely to indicate a
// degenerate or adversarial transcript.
func DeriveChallenges(publicInputs []field.Scalar, vkFingerprint field.Scalar, p Proof) (Challenges, error) {
	tr := New()
	var out Challenges

	// Step 1: eta round.
	vb := vkFingerprint.Bytes()
	tr.Absorb(vb[:])
	for _, pi := range publicInputs {
		absorbScalar(tr, pi)
	}
	tr.Absorb(p.Preamble[:])
	for i := 0; i < 3; i++ {
		absorbPoint(tr, p.Commitments[i])
	}
	out.Eta = tr.Challenge("eta")
	if out.Eta.IsZero() {
		return Challenges{}, ErrChallengeZero
	}

	// Step 2: beta/gamma round. Commitments index 3,4,5 are lrc, lrt, w4.
	for i := 3; i < 6; i++ {
		absorbPoint(tr, p.Commitments[i])
	}
	c := tr.Challenge("beta_gamma")
	if c.IsZero() {
		return Challenges{}, ErrChallengeZero
	}
	out.Beta, out.Gamma = Split127(c)
	if out.Beta.IsZero() || out.Gamma.IsZero() {
		return Challenges{}, ErrChallengeZero
	}

	// Step 3: alpha round. Commitments index 6,7 are li, zperm.
	absorbPoint(tr, p.Commitments[6])
	absorbPoint(tr, p.Commitments[7])
	out.Alpha = tr.Challenge("alpha")
	if out.Alpha.IsZero() {
		return Challenges{}, ErrChallengeZero
	}

	// Step 4: gate challenges, repeat-squeezed with no absorption between
	// draws, using only the low 127 bits of each squeeze.
	for i := 0; i < numGateChallenges; i++ {
		g := tr.Challenge("gate")
		lo, _ := Split127(g)
		if lo.IsZero() {
			return Challenges{}, ErrChallengeZero
		}
		out.GateChallenges[i] = lo
	}

	// Step 5: one challenge per sumcheck round, absorbing that round's row
	// before squeezing it.
	out.SumcheckU = make([]field.Scalar, len(p.SumcheckRows))
	for i, row := range p.SumcheckRows {
		for _, e := range row {
			absorbScalar(tr, e)
		}
		u := tr.Challenge("sumcheck")
		if u.IsZero() {
			return Challenges{}, ErrChallengeZero
		}
		out.SumcheckU[i] = u
	}

	// Step 6: rho / Shplemini rounds. Absorb the final multilinear
	// evaluations, squeeze rho; then for each Gemini fold commitment,
	// absorb the commitment and its evaluation and squeeze the next
	// folding challenge; finally absorb the Shplonk batch commitment and
	// squeeze the evaluation challenge z.
	for _, e := range p.Evaluations {
		absorbScalar(tr, e)
	}
	out.Rho = tr.Challenge("rho")
	if out.Rho.IsZero() {
		return Challenges{}, ErrChallengeZero
	}

	out.GeminiR = make([]field.Scalar, len(p.FoldCommits))
	for i, fc := range p.FoldCommits {
		absorbPoint(tr, fc)
		absorbScalar(tr, p.GeminiEvals[i])
		r := tr.Challenge("gemini")
		if r.IsZero() {
			return Challenges{}, ErrChallengeZero
		}
		out.GeminiR[i] = r
	}

	absorbPoint(tr, p.ShplonkQ)
	out.ShplonkNu = tr.Challenge("shplonk_nu")
	if out.ShplonkNu.IsZero() {
		return Challenges{}, ErrChallengeZero
	}
	out.ShplonkZ = tr.Challenge("shplonk_z")
	if out.ShplonkZ.IsZero() {
		return Challenges{}, ErrChallengeZero
	}

	// Step 7: collapse everything into the two pairing operands for the
	// batched single-point KZG opening check
	//   e(P0, [1]_2) * e(P1, [x]_2) == 1
	// where P0 = ShplonkQ - v*[1]_1 + z*KZGQuotient, P1 = -KZGQuotient, and
	// v is the rho-weighted batched evaluation of every scalar the
	// Gemini/Shplemini fold produced.
	_, _, g1Gen, _ := bn254.Generators()

	v := field.Zero()
	weight := field.One()
	for _, row := range p.SumcheckRows {
		for _, e := range row {
			v = v.Add(e.Mul(weight))
			weight = weight.Mul(out.Rho)
		}
	}
	for _, e := range p.Evaluations {
		v = v.Add(e.Mul(weight))
		weight = weight.Mul(out.Rho)
	}
	for _, e := range p.GeminiEvals {
		v = v.Add(e.Mul(weight))
		weight = weight.Mul(out.Rho)
	}

	var vG1, zQ, p0 bn254.G1Affine
	vG1.ScalarMultiplication(&g1Gen, scalarToBigInt(v))
	zQ.ScalarMultiplication(&p.KZGQuotient, scalarToBigInt(out.ShplonkZ))

	var negVG1 bn254.G1Affine
	negVG1.Neg(&vG1)
	p0.Add(&p.ShplonkQ, &negVG1)
	p0.Add(&p0, &zQ)

	var p1 bn254.G1Affine
	p1.Neg(&p.KZGQuotient)

	out.BatchedEval = v
	out.P0 = p0
	out.P1 = p1

	return out, nil
}

func scalarToBigInt(s field.Scalar) *big.Int {
	b := s.Bytes()
	return new(big.Int).SetBytes(b[:])
}

// FinalPairingCheck performs the batched KZG opening check: e(P0, [1]_2) *
// e(P1, [x]_2) == 1 for the accumulated commitment pair the Shplonk/Gemini
// folding produces. This package never implements pairing arithmetic
// itself; it delegates to gnark-crypto's verified BN254 pairing.
func FinalPairingCheck(p0, p1 bn254.G1Affine, g2Gen, g2X bn254.G2Affine) error {
	ok, err := bn254.PairingCheck(
		[]bn254.G1Affine{p0, p1},
		[]bn254.G2Affine{g2Gen, g2X},
	)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPairingCheck
	}
	return nil
}

// DevSRS returns a fixed, non-secret development "structured reference
// string" G2 pair ([1]_2, [x]_2) used to exercise FinalPairingCheck in the
// absence of a real trusted setup or a real compiled circuit — both
// explicitly out of scope for this module. x is a fixed scalar baked into
// this binary, not a toxic-waste secret from any ceremony; this is not a
// real KZG trusted setup and must never be treated as one.
func DevSRS() (g2Gen, g2X bn254.G2Affine) {
	_, _, _, g2GenAff := bn254.Generators()
	g2Gen = g2GenAff
	g2X.ScalarMultiplication(&g2Gen, devSRSSecret())
	return g2Gen, g2X
}

// devSRSSecret is the fixed, publicly-known scalar standing in for the
// trusted setup's toxic waste. Documented here, in the open, specifically
// because it must never be mistaken for a real secret.
func devSRSSecret() *big.Int {
	return big.NewInt(424242424243)
}

// DevSRSSecret exposes devSRSSecret as an Fr element for test fixtures in
// other packages that need to construct a proof satisfying FinalPairingCheck
// against DevSRS without a real prover. Never meaningful outside tests.
func DevSRSSecret() field.Scalar {
	return field.ScalarFromBytesReduced(devSRSSecret().Bytes())
}
