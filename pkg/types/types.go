// Package types defines the core data structures shared across the privacy
// bridge engine: field-element hashes, protocol addresses, and the small
// wire-level constants the rest of the module binds against.
package types

import "encoding/hex"

// Constants for the shield bridge protocol.
const (
	// HashSize is the width of a BN254 scalar-field element in bytes.
	HashSize = 32

	// AddressSize is the width of a recipient address (a Solana-style
	// ed25519 public key) in bytes.
	AddressSize = 32

	// CompressedPointSize is the width of a compressed Grumpkin point:
	// a one-byte parity prefix followed by the 32-byte x-coordinate.
	CompressedPointSize = 33

	// TreeDepth is the fixed depth of every commitment tree in production.
	// No runtime override exists in production.
	TreeDepth = 20
)

// Hash represents a 32-byte big-endian BN254 scalar-field element: a
// commitment, a nullifier hash, or a Merkle root.
type Hash [HashSize]byte

// EmptyHash is the additive identity of Fr, used as the zero leaf.
var EmptyHash = Hash{}

// Address represents a 32-byte recipient public key (Solana account layout).
type Address [AddressSize]byte

// EmptyAddress is the zero address.
var EmptyAddress = Address{}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// Hex renders the hash as lowercase hex with no prefix.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String implements fmt.Stringer.
func (h Hash) String() string {
	return h.Hex()
}

// IsZero reports whether the hash is the all-zero value.
func (h Hash) IsZero() bool {
	return h == EmptyHash
}

// HashFromBytes copies up to HashSize bytes from b into a Hash, left-padding
// with zeros if b is shorter.
func HashFromBytes(b []byte) Hash {
	var h Hash
	if len(b) >= HashSize {
		copy(h[:], b[len(b)-HashSize:])
	} else {
		copy(h[HashSize-len(b):], b)
	}
	return h
}

// Bytes returns a copy of the address as a byte slice.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

// Hex renders the address as lowercase hex with no prefix.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

// AddressFromBytes copies up to AddressSize bytes from b into an Address,
// left-padding with zeros if b is shorter.
func AddressFromBytes(b []byte) Address {
	var a Address
	if len(b) >= AddressSize {
		copy(a[:], b[len(b)-AddressSize:])
	} else {
		copy(a[AddressSize-len(b):], b)
	}
	return a
}

// AddressFromLimbs reassembles a 32-byte address from the two 128-bit
// big-endian limbs a circuit's public inputs split it into: low holds the
// address's low 16 bytes, high its high 16 bytes.
func AddressFromLimbs(low, high [16]byte) Address {
	var a Address
	copy(a[:16], high[:])
	copy(a[16:], low[:])
	return a
}

// AddressToLimbs splits an address into the low/high 128-bit big-endian
// limbs a circuit's public inputs expect.
func AddressToLimbs(a Address) (low, high [16]byte) {
	copy(high[:], a[:16])
	copy(low[:], a[16:])
	return low, high
}

// CircuitKind is the tagged variant of the four circuit families the
// verifier transcript and the proof dispatcher know how to bind.
type CircuitKind uint8

const (
	CircuitClaim CircuitKind = iota
	CircuitSplit
	CircuitSpendPartialPublic
	CircuitPoolDeposit
	CircuitPoolWithdraw
	CircuitPoolClaimYield
)

// String implements fmt.Stringer for log lines and error messages.
func (k CircuitKind) String() string {
	switch k {
	case CircuitClaim:
		return "claim"
	case CircuitSplit:
		return "split"
	case CircuitSpendPartialPublic:
		return "spend_partial_public"
	case CircuitPoolDeposit:
		return "pool_deposit"
	case CircuitPoolWithdraw:
		return "pool_withdraw"
	case CircuitPoolClaimYield:
		return "pool_claim_yield"
	default:
		return "unknown"
	}
}

// InstructionTag is the first byte of every request buffer, selecting the
// top-level operation.
type InstructionTag uint8

const (
	InstructionInitialize          InstructionTag = 0
	InstructionSplit                InstructionTag = 4
	InstructionRedemptionRequest     InstructionTag = 5
	InstructionClaim                InstructionTag = 9
	InstructionSpendPartialPublic    InstructionTag = 10
	InstructionAddDemoNote           InstructionTag = 21
	InstructionAddDemoStealth        InstructionTag = 22
	InstructionPoolDeposit           InstructionTag = 31
	InstructionPoolWithdraw          InstructionTag = 32
	InstructionPoolClaimYield        InstructionTag = 33
)
