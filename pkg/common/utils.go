// Package common provides shared, dependency-light utilities used across the
// privacy bridge engine.
package common

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// HexToBytes converts a hex string to bytes, tolerating an optional 0x prefix.
func HexToBytes(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

// BytesToHex converts bytes to a 0x-prefixed hex string.
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// RandomBytes generates n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Now returns the current Unix timestamp in seconds.
func Now() uint64 {
	return uint64(time.Now().Unix())
}

// Uint64ToBytesBE converts a uint64 to big-endian bytes.
func Uint64ToBytesBE(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// BytesToUint64BE converts big-endian bytes to a uint64, left-padding short input.
func BytesToUint64BE(b []byte) uint64 {
	if len(b) < 8 {
		padded := make([]byte, 8)
		copy(padded[8-len(b):], b)
		b = padded
	}
	return binary.BigEndian.Uint64(b)
}

// Uint64ToBytesLE converts a uint64 to little-endian bytes, used by the
// amount-encryption and claim-link wire formats.
func Uint64ToBytesLE(n uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b
}

// BytesToUint64LE converts little-endian bytes to a uint64.
func BytesToUint64LE(b []byte) uint64 {
	if len(b) < 8 {
		padded := make([]byte, 8)
		copy(padded, b)
		b = padded
	}
	return binary.LittleEndian.Uint64(b)
}

// Clamp constrains a value to a range.
func Clamp(value, min, max uint64) uint64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// IsZeroBytes checks if all bytes are zero.
func IsZeroBytes(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// CopyBytes returns a copy of a byte slice.
func CopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// Zeroize overwrites a byte slice in place, used to scrub claim-link bearer
// secrets and seeds once they have been consumed.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
