package types

import "errors"

// Error taxonomy. Every sentinel below is stable across language
// implementations of this protocol and is mapped to a numeric code by
// CodeFor for the instruction response. Grouped the way the error handling
// design requires: Input (recoverable, caller's fault), State (recoverable,
// but observable), Cryptographic (recoverable at the caller), and Fatal
// (the reducer should abort rather than continue on corrupted invariants).
var (
	// Input errors.
	ErrBadEncoding      = errors.New("bad encoding")
	ErrAmountOutOfRange = errors.New("amount out of range")
	ErrRootStale        = errors.New("merkle root is not the current root")
	ErrVkMismatch       = errors.New("verifying key fingerprint mismatch")
	ErrPointNotOnCurve  = errors.New("point is not on curve")
	ErrDecodeError      = errors.New("decode error")

	// State errors.
	ErrAlreadySpent          = errors.New("nullifier already spent")
	ErrAnnouncementCollision = errors.New("announcement key collision")
	ErrTreeFull              = errors.New("commitment tree is full")
	ErrPaused                = errors.New("operation rejected: paused")
	ErrAlreadyInitialized    = errors.New("state already initialized")
	ErrNotInitialized        = errors.New("state not initialized")

	// Cryptographic rejection.
	ErrProofInvalid    = errors.New("proof rejected")
	ErrPairingRejected = errors.New("final pairing check rejected")
	ErrChallengeZero   = errors.New("fiat-shamir challenge squeezed to zero")

	// Fatal: the reducer should abort rather than proceed on these, since
	// they indicate a bug or build corruption rather than attacker input.
	ErrHashDomainMismatch         = errors.New("hash domain mismatch")
	ErrArithmeticOverflow         = errors.New("arithmetic overflow")
	ErrPoseidonConstantsCorrupted = errors.New("poseidon2 constants failed boot self-check")

	// External collaborator failure, surfaced with the collaborator's error
	// preserved rather than swallowed (the token mint CPI itself is an
	// external collaborator, out of scope for this module).
	ErrTokenCpiFailed = errors.New("token mint cpi failed")
)

// ErrCode is the stable numeric code returned in the instruction response
// for one error taxonomy sentinel.
type ErrCode uint16

// Numeric codes for the instruction response. Zero is reserved for success;
// CodeUnknown is returned for any error outside the taxonomy below (a
// storage or transport error, for instance), which callers should treat as
// an opaque failure rather than branch on.
const (
	CodeOK ErrCode = iota

	CodeBadEncoding
	CodeAmountOutOfRange
	CodeRootStale
	CodeVkMismatch
	CodePointNotOnCurve
	CodeDecodeError

	CodeAlreadySpent
	CodeAnnouncementCollision
	CodeTreeFull
	CodePaused
	CodeAlreadyInitialized
	CodeNotInitialized

	CodeProofInvalid
	CodePairingRejected
	CodeChallengeZero

	CodeHashDomainMismatch
	CodeArithmeticOverflow
	CodePoseidonConstantsCorrupted

	CodeTokenCpiFailed

	CodeUnknown ErrCode = 0xFFFF
)

// errCodeTable orders sentinel/code pairs so CodeFor can walk it with
// errors.Is, which respects wrapping unlike a map keyed by error value.
var errCodeTable = []struct {
	err  error
	code ErrCode
}{
	{ErrBadEncoding, CodeBadEncoding},
	{ErrAmountOutOfRange, CodeAmountOutOfRange},
	{ErrRootStale, CodeRootStale},
	{ErrVkMismatch, CodeVkMismatch},
	{ErrPointNotOnCurve, CodePointNotOnCurve},
	{ErrDecodeError, CodeDecodeError},
	{ErrAlreadySpent, CodeAlreadySpent},
	{ErrAnnouncementCollision, CodeAnnouncementCollision},
	{ErrTreeFull, CodeTreeFull},
	{ErrPaused, CodePaused},
	{ErrAlreadyInitialized, CodeAlreadyInitialized},
	{ErrNotInitialized, CodeNotInitialized},
	{ErrProofInvalid, CodeProofInvalid},
	{ErrPairingRejected, CodePairingRejected},
	{ErrChallengeZero, CodeChallengeZero},
	{ErrHashDomainMismatch, CodeHashDomainMismatch},
	{ErrArithmeticOverflow, CodeArithmeticOverflow},
	{ErrPoseidonConstantsCorrupted, CodePoseidonConstantsCorrupted},
	{ErrTokenCpiFailed, CodeTokenCpiFailed},
}

// CodeFor maps err to its stable numeric code via errors.Is, so a wrapped
// sentinel (fmt.Errorf("...: %w", err)) still resolves correctly. Returns
// CodeOK for a nil error and CodeUnknown for anything outside the taxonomy.
func CodeFor(err error) ErrCode {
	if err == nil {
		return CodeOK
	}
	for _, entry := range errCodeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeUnknown
}
