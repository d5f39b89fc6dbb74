// Package note implements the shielded note model: commitments, nullifiers,
// and the bearer claim-link encoding a recipient uses to redeem a deposit
// without replaying any on-chain address.
package note

import (
	"encoding/base64"
	"errors"

	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/internal/poseidon2"
	"github.com/shieldbridge/core/pkg/common"
)

// Errors returned by claim-link decoding.
var (
	ErrClaimLinkVersion = errors.New("note: unsupported claim-link version")
	ErrClaimLinkLength  = errors.New("note: malformed claim-link payload length")
	ErrClaimLinkEncoding = errors.New("note: malformed claim-link base64")
)

// claimLinkVersion is the single byte prefixing every claim-link payload,
// bumped whenever the wire layout below changes incompatibly.
const claimLinkVersion = 1

// claimLinkPayloadLen is stealth_priv(32) || amount_sats(8 LE) || leaf_index(8 LE).
const claimLinkPayloadLen = 32 + 8 + 8

// Note is the fully-opened view of a shielded note: everything needed to
// reconstruct its commitment, nullifier, and spend authorization.
type Note struct {
	StealthPriv field.Scalar
	AmountSats  uint64
	LeafIndex   uint64
}

// Commitment computes commitment = Poseidon2(stealth_pub_x, amount_sats),
// The stealth public key's x-coordinate binds the note
// to one specific one-time key; the amount binds it to one specific value.
func Commitment(stealthPub field.Point, amountSats uint64) field.Scalar {
	amountScalar := field.ScalarFromUint64(amountSats)
	xScalar := field.ScalarFromBytesReduced(func() []byte {
		b := stealthPub.X.Bytes()
		return b[:]
	}())
	return poseidon2.Hash2(xScalar, amountScalar)
}

// Nullifier computes nullifier = Poseidon2(stealth_priv, leaf_index).
func Nullifier(stealthPriv field.Scalar, leafIndex uint64) field.Scalar {
	return poseidon2.Hash2(stealthPriv, field.ScalarFromUint64(leafIndex))
}

// NullifierHash computes nullifier_hash = Poseidon2(nullifier). The
// registry only ever stores and checks this double-hashed
// form; a single-hash nullifier is never valid, per the resolved design
// question on this point (see DESIGN.md).
func NullifierHash(stealthPriv field.Scalar, leafIndex uint64) field.Scalar {
	return poseidon2.Hash1(Nullifier(stealthPriv, leafIndex))
}

// EncodeClaimLink renders a note as the version-prefixed, base64-encoded
// bearer secret a recipient uses offline to claim a deposit:
// base64(version(1) || stealth_priv(32) || amount_sats(8 LE) || leaf_index(8 LE)).
func EncodeClaimLink(n Note) string {
	payload := make([]byte, 1+claimLinkPayloadLen)
	payload[0] = claimLinkVersion
	priv := n.StealthPriv.Bytes()
	copy(payload[1:33], priv[:])
	copy(payload[33:41], common.Uint64ToBytesLE(n.AmountSats))
	copy(payload[41:49], common.Uint64ToBytesLE(n.LeafIndex))
	return base64.URLEncoding.EncodeToString(payload)
}

// DecodeClaimLink parses a claim link produced by EncodeClaimLink.
func DecodeClaimLink(s string) (Note, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return Note{}, ErrClaimLinkEncoding
	}
	if len(raw) != 1+claimLinkPayloadLen {
		return Note{}, ErrClaimLinkLength
	}
	if raw[0] != claimLinkVersion {
		return Note{}, ErrClaimLinkVersion
	}
	priv, err := field.ScalarFromCanonicalBytes(raw[1:33])
	if err != nil {
		return Note{}, err
	}
	amount := common.BytesToUint64LE(raw[33:41])
	leafIndex := common.BytesToUint64LE(raw[41:49])
	return Note{StealthPriv: priv, AmountSats: amount, LeafIndex: leafIndex}, nil
}

// ReconstructClaimInputs is the bridge between a scanned stealth deposit
// and the note model: given a successful Scan result it
// produces the Note a recipient would encode into a claim link.
func ReconstructClaimInputs(stealthPriv field.Scalar, amountSats, leafIndex uint64) Note {
	return Note{StealthPriv: stealthPriv, AmountSats: amountSats, LeafIndex: leafIndex}
}

// StealthPub recovers the stealth public key stealth_priv*G, used when a
// caller only holds the claimed note and needs to recompute its commitment
// (e.g. to verify a tree witness) without re-running the scan.
func StealthPub(n Note) field.Point {
	return field.Generator().ScalarMul(n.StealthPriv)
}
