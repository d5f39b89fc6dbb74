// Package stealth implements the dual-key stealth address cryptosystem
// an EIP-5564/DKSAP-style scheme carried over
// Grumpkin instead of secp256k1 so that a note's ownership can be proven
// inside a BN254 circuit.
package stealth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/shieldbridge/core/internal/announce"
	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/internal/note"
	"github.com/shieldbridge/core/internal/poseidon2"
	"github.com/shieldbridge/core/pkg/common"
)

// Errors returned by meta-address decoding and deposit scanning.
var (
	ErrMetaAddressLength  = errors.New("stealth: meta-address must decode to 66 bytes")
	ErrMetaAddressEncoding = errors.New("stealth: malformed compressed point in meta-address")
	ErrNotMine            = errors.New("stealth: deposit does not belong to this key triple")
)

// hsDomain separates the H_s hash-to-scalar step from every other Poseidon2
// call site in the module, so a shared secret can never be replayed as a
// commitment or nullifier input.
var hsDomain = field.ScalarFromBytesReduced([]byte("shieldbridge-stealth-hs"))

// amountDomain separates the amount-encryption keystream from any other use
// of SHA-256 over a shared secret.
const amountDomain = "shieldbridge-stealth-amount"

// spendDomain and viewDomain separate the two SHA-256 derivations DeriveKeys
// performs over the same seed, so the spending and viewing private scalars
// are computationally independent even though they share one source of
// entropy.
const (
	spendDomain = "shieldbridge-spend"
	viewDomain  = "shieldbridge-view"
)

// KeyTriple is a recipient's full key material: the spending key (whose
// private half is required to claim a note) and the viewing key (whose
// private half is enough to detect deposits addressed to this recipient).
type KeyTriple struct {
	SpendingPriv field.Scalar
	ViewingPriv  field.Scalar
	SpendingPub  field.Point
	ViewingPub   field.Point
}

// MetaAddress is the public half of a KeyTriple: the two compressed points a
// sender needs to create a stealth deposit.
type MetaAddress struct {
	SpendingPub field.Point
	ViewingPub  field.Point
}

// StealthDeposit is everything a sender publishes for one deposit: the
// one-time ephemeral public key, the note commitment the derived one-time
// stealth public key and amount fold into, and the amount ciphertext only
// the matching viewing key can open. The raw one-time stealth public key
// itself is never published (see Scan).
type StealthDeposit struct {
	EphemeralPub    field.Point
	Commitment      field.Scalar
	EncryptedAmount [8]byte
}

// DeriveKeys expands a 32-byte seed into a full key triple via two
// domain-separated SHA-256 derivations: the seed is hashed under the
// spending and viewing domain tags, and each digest is then reduced mod r
// to obtain independent private scalars from a single source of entropy.
func DeriveKeys(seed [32]byte) KeyTriple {
	spendDigest := sha256.Sum256(append([]byte(spendDomain), seed[:]...))
	viewDigest := sha256.Sum256(append([]byte(viewDomain), seed[:]...))
	spendingPriv := field.ScalarFromBytesReduced(spendDigest[:])
	viewingPriv := field.ScalarFromBytesReduced(viewDigest[:])
	g := field.Generator()
	return KeyTriple{
		SpendingPriv: spendingPriv,
		ViewingPriv:  viewingPriv,
		SpendingPub:  g.ScalarMul(spendingPriv),
		ViewingPub:   g.ScalarMul(viewingPriv),
	}
}

// Meta returns the public meta-address for a key triple.
func (k KeyTriple) Meta() MetaAddress {
	return MetaAddress{SpendingPub: k.SpendingPub, ViewingPub: k.ViewingPub}
}

// Encode renders a meta-address as a 132-character lowercase hex string:
// the spending public key's compressed 33 bytes, then the viewing public
// key's, with no separator or prefix.
func (m MetaAddress) Encode() string {
	var buf [66]byte
	sp := m.SpendingPub.Compress()
	vp := m.ViewingPub.Compress()
	copy(buf[:33], sp[:])
	copy(buf[33:], vp[:])
	return hex.EncodeToString(buf[:])
}

// DecodeMetaAddress parses a 132-character hex meta-address produced by
// Encode.
func DecodeMetaAddress(s string) (MetaAddress, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return MetaAddress{}, ErrMetaAddressEncoding
	}
	if len(raw) != 66 {
		return MetaAddress{}, ErrMetaAddressLength
	}
	sp, err := field.Decompress(raw[:33])
	if err != nil {
		return MetaAddress{}, err
	}
	vp, err := field.Decompress(raw[33:])
	if err != nil {
		return MetaAddress{}, err
	}
	return MetaAddress{SpendingPub: sp, ViewingPub: vp}, nil
}

// hashToScalar folds a shared secret's x-coordinate into Fr under a fixed
// domain tag, the H_s step of the DKSAP construction.
func hashToScalar(sharedX field.BaseElement) field.Scalar {
	xb := sharedX.Bytes()
	asScalar := field.ScalarFromBytesReduced(xb[:])
	return poseidon2.Hash2(hsDomain, asScalar)
}

// amountKeystream derives an 8-byte XOR pad from a shared secret's
// x-coordinate, used to hide the deposited amount from anyone who cannot
// recompute the ECDH shared secret.
func amountKeystream(sharedX field.BaseElement) [8]byte {
	h := sha256.New()
	h.Write([]byte(amountDomain))
	xb := sharedX.Bytes()
	h.Write(xb[:])
	sum := h.Sum(nil)
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

func xor8(a, b [8]byte) [8]byte {
	var out [8]byte
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func amountToBytes(amount uint64) [8]byte {
	var b [8]byte
	copy(b[:], common.Uint64ToBytesLE(amount))
	return b
}

func bytesToAmount(b [8]byte) uint64 {
	return common.BytesToUint64LE(b[:])
}

// CreateStealthDeposit runs the sender side of DKSAP: pick a fresh ephemeral
// keypair, derive the ECDH shared secret with the recipient's viewing key,
// fold it into a one-time tweak on the recipient's spending key, and seal
// the amount under a keystream derived from the same shared secret.
func CreateStealthDeposit(meta MetaAddress, ephemeralPriv field.Scalar, amount uint64) StealthDeposit {
	g := field.Generator()
	ephemeralPub := g.ScalarMul(ephemeralPriv)
	shared := meta.ViewingPub.ScalarMul(ephemeralPriv)
	hs := hashToScalar(shared.X)
	stealthPub := meta.SpendingPub.Add(g.ScalarMul(hs))
	ciphertext := xor8(amountToBytes(amount), amountKeystream(shared.X))
	return StealthDeposit{
		EphemeralPub:    ephemeralPub,
		Commitment:      note.Commitment(stealthPub, amount),
		EncryptedAmount: ciphertext,
	}
}

// Scan runs the recipient side of DKSAP against one deposit: recompute the
// shared secret with the viewing private key, decrypt a tentative amount,
// and fold the candidate stealth public key and that tentative amount into
// a candidate commitment. Only when the candidate commitment equals the
// published one is the deposit confirmed to belong to this key triple — a
// scanner is never handed the raw stealth public key to compare against,
// since that would let an outside observer test candidate keys against
// published deposits without needing the viewing key at all. ok is false,
// with the other return values undefined, when the deposit does not belong
// to this key triple.
func Scan(k KeyTriple, d StealthDeposit) (stealthPriv field.Scalar, amount uint64, ok bool) {
	shared := d.EphemeralPub.ScalarMul(k.ViewingPriv)
	hs := hashToScalar(shared.X)
	stealthPubCandidate := k.SpendingPub.Add(field.Generator().ScalarMul(hs))
	tentativeAmount := bytesToAmount(xor8(d.EncryptedAmount, amountKeystream(shared.X)))
	candidateCommitment := note.Commitment(stealthPubCandidate, tentativeAmount)
	if !candidateCommitment.Equal(d.Commitment) {
		return field.Scalar{}, 0, false
	}
	priv := k.SpendingPriv.Add(hs)
	return priv, tentativeAmount, true
}

// ScanOne wraps Scan with the NotMine failure mode for callers that want a
// single error return instead of a boolean, whether the deposit could not
// be decrypted at all or decrypted to a commitment mismatch — both cases
// collapse to the same error so a caller can never distinguish "not
// decryptable" from "decrypts but doesn't match", which would otherwise
// leak information about which deposits a viewing key was tried against.
func ScanOne(k KeyTriple, d StealthDeposit) (field.Scalar, uint64, error) {
	priv, amount, ok := Scan(k, d)
	if !ok {
		return field.Scalar{}, 0, ErrNotMine
	}
	return priv, amount, nil
}

// ScannedNote is one deposit confirmed to belong to a key triple during a
// batch scan of an announcement index.
type ScannedNote struct {
	StealthPriv field.Scalar
	AmountSats  uint64
	LeafIndex   uint64
}

// ScanAnnouncements runs Scan against every announcement, returning only
// the ones that belong to k. Announcements that do not match are silently
// skipped, never reported as an error: a recipient scanning the whole
// index expects most entries to belong to someone else.
func ScanAnnouncements(k KeyTriple, announcements []announce.Announcement) []ScannedNote {
	var found []ScannedNote
	for _, a := range announcements {
		deposit := StealthDeposit{
			EphemeralPub:    a.EphemeralPub,
			Commitment:      a.Commitment,
			EncryptedAmount: a.EncryptedAmount,
		}
		priv, amount, ok := Scan(k, deposit)
		if !ok {
			continue
		}
		found = append(found, ScannedNote{StealthPriv: priv, AmountSats: amount, LeafIndex: a.LeafIndex})
	}
	return found
}
