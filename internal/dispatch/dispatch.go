// Package dispatch implements the proof dispatcher
// P): for each circuit kind it fixes the exact, ordered public-input vector
// the circuit was compiled against, binds a caller's claimed public inputs
// into that vector, checks the supplied verifying key's fingerprint against
// the registered one, replays the full Fiat-Shamir challenge schedule, and
// carries out the final pairing check, rejecting any proof that fails any
// of those steps before a single state mutation is ever considered.
package dispatch

import (
	"errors"

	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/internal/transcript"
	"github.com/shieldbridge/core/pkg/common"
	"github.com/shieldbridge/core/pkg/types"
)

// Errors returned by the dispatcher.
var (
	ErrUnknownCircuit     = errors.New("dispatch: unknown circuit kind")
	ErrNoVerifyingKey     = errors.New("dispatch: no verifying key registered for circuit")
	ErrVKFingerprintStale = types.ErrVkMismatch
	ErrPublicInputCount   = types.ErrBadEncoding
)

// publicInputSchema fixes the strict, never-reordered public-input layout
// for one circuit kind.
type publicInputSchema struct {
	kind   types.CircuitKind
	fields []string
}

// schemas is the complete per-circuit public-input table. Order within
// each fields slice is load-bearing: it is exactly the order the
// corresponding Noir circuit's public inputs were compiled in, and must
// never be permuted even though doing so would not change any single
// proof's validity in isolation.
var schemas = []publicInputSchema{
	{kind: types.CircuitClaim, fields: []string{
		"root", "nullifier_hash", "amount_sats", "recipient_pubkey_low", "recipient_pubkey_high",
	}},
	{kind: types.CircuitSplit, fields: []string{
		"root", "nullifier_hash", "output_commitment_1", "output_commitment_2",
	}},
	{kind: types.CircuitSpendPartialPublic, fields: []string{
		"root", "nullifier_hash", "public_amount", "change_commitment", "recipient_low", "recipient_high",
	}},
	{kind: types.CircuitPoolDeposit, fields: []string{
		"root", "nullifier_hash", "pool_commitment", "amount_sats",
	}},
	{kind: types.CircuitPoolWithdraw, fields: []string{
		"pool_root", "pool_nullifier_hash", "amount_sats", "output_commitment",
	}},
	{kind: types.CircuitPoolClaimYield, fields: []string{
		"pool_root", "pool_nullifier_hash", "new_pool_commitment", "yield_amount", "recipient_low", "recipient_high",
	}},
}

func schemaFor(kind types.CircuitKind) (publicInputSchema, bool) {
	for _, s := range schemas {
		if s.kind == kind {
			return s, true
		}
	}
	return publicInputSchema{}, false
}

// VKRegistry holds the fingerprint and parsed verifying key every circuit
// kind is expected to have, computed once at load time from each circuit's
// canonical 1888-byte VK buffer.
type VKRegistry struct {
	fingerprints map[types.CircuitKind]field.Scalar
	keys         map[types.CircuitKind]transcript.VerifyingKey
}

// NewVKRegistry builds a registry from a map of circuit kind to canonical
// VK buffer. A buffer that fails to parse (wrong length, off-curve point)
// is simply omitted from the registry, so Dispatch later reports
// ErrNoVerifyingKey for that circuit rather than silently trusting a
// malformed key.
func NewVKRegistry(vkBuffers map[types.CircuitKind][]byte) *VKRegistry {
	fp := make(map[types.CircuitKind]field.Scalar, len(vkBuffers))
	keys := make(map[types.CircuitKind]transcript.VerifyingKey, len(vkBuffers))
	for kind, buf := range vkBuffers {
		vk, err := transcript.ParseVerifyingKey(common.CopyBytes(buf))
		if err != nil {
			continue
		}
		keys[kind] = vk
		fp[kind] = transcript.VKFingerprint(vk)
	}
	return &VKRegistry{fingerprints: fp, keys: keys}
}

// Fingerprint returns the registered fingerprint for kind.
func (r *VKRegistry) Fingerprint(kind types.CircuitKind) (field.Scalar, bool) {
	fp, ok := r.fingerprints[kind]
	return fp, ok
}

// Request is one proof-verification request: the circuit it targets, the
// raw proof bytes, the ordered public inputs the caller claims, and the VK
// buffer the caller says the proof was produced against.
type Request struct {
	Circuit      types.CircuitKind
	Proof        []byte
	PublicInputs []field.Scalar
	VKBuffer     []byte
}

// Dispatch validates a request's shape against its circuit's schema,
// confirms the supplied VK buffer parses to the registered fingerprint,
// replays the full Fiat-Shamir challenge schedule over the parsed proof,
// and performs the final batched pairing check. Any failure anywhere in
// that sequence rejects the proof; nothing downstream of a successful
// Dispatch call needs to re-verify anything about the proof itself.
func Dispatch(reg *VKRegistry, req Request) (transcript.Proof, field.Scalar, error) {
	schema, ok := schemaFor(req.Circuit)
	if !ok {
		return transcript.Proof{}, field.Scalar{}, ErrUnknownCircuit
	}
	if len(req.PublicInputs) != len(schema.fields) {
		return transcript.Proof{}, field.Scalar{}, ErrPublicInputCount
	}

	registered, ok := reg.Fingerprint(req.Circuit)
	if !ok {
		return transcript.Proof{}, field.Scalar{}, ErrNoVerifyingKey
	}

	suppliedVK, err := transcript.ParseVerifyingKey(req.VKBuffer)
	if err != nil {
		return transcript.Proof{}, field.Scalar{}, err
	}
	supplied := transcript.VKFingerprint(suppliedVK)
	if !supplied.Equal(registered) {
		return transcript.Proof{}, field.Scalar{}, ErrVKFingerprintStale
	}

	parsed, err := transcript.ParseProof(req.Proof, suppliedVK)
	if err != nil {
		return transcript.Proof{}, field.Scalar{}, err
	}

	challenges, err := transcript.DeriveChallenges(req.PublicInputs, supplied, parsed)
	if err != nil {
		return transcript.Proof{}, field.Scalar{}, err
	}

	g2Gen, g2X := transcript.DevSRS()
	if err := transcript.FinalPairingCheck(challenges.P0, challenges.P1, g2Gen, g2X); err != nil {
		return transcript.Proof{}, field.Scalar{}, err
	}

	return parsed, supplied, nil
}

// FieldNames returns the ordered public-input field names for a circuit
// kind, for callers that need to label values for logging or error
// messages.
func FieldNames(kind types.CircuitKind) ([]string, error) {
	schema, ok := schemaFor(kind)
	if !ok {
		return nil, ErrUnknownCircuit
	}
	return schema.fields, nil
}
