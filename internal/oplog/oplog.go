// Package oplog implements a hash-chained operation audit log: every
// applied engine operation is appended as one entry whose hash commits to
// the entry before it, so the full history of claims, splits, spends, and
// pool operations can be replayed and its integrity checked independent of
// the database it happens to be stored in. This is a single-parent chain —
// one writer, one linear history, matching the reducer's single-writer
// model, not a multi-parent DAG.
package oplog

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/shieldbridge/core/pkg/types"
)

// ErrChainBroken is returned by Verify when an entry's recorded previous
// hash does not match the hash of the entry before it.
var ErrChainBroken = errors.New("oplog: hash chain is broken")

// Entry is one applied operation, recorded after the fact.
type Entry struct {
	Index       uint64
	PrevHash    types.Hash
	Circuit     types.CircuitKind
	Description string
	Timestamp   uint64
	Hash        types.Hash
}

// computeHash commits to everything about an entry except its own Hash
// field.
func computeHash(index uint64, prevHash types.Hash, circuit types.CircuitKind, description string, timestamp uint64) types.Hash {
	h := sha256.New()
	var idxBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], index)
	h.Write(idxBuf[:])
	h.Write(prevHash[:])
	h.Write([]byte{byte(circuit)})
	h.Write([]byte(description))
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], timestamp)
	h.Write(tsBuf[:])
	return types.HashFromBytes(h.Sum(nil))
}

// Log is an append-only, single-writer hash-chained audit log.
type Log struct {
	mu      sync.Mutex
	entries []Entry
}

// New builds an empty log.
func New() *Log {
	return &Log{}
}

// Append records one operation and returns the resulting entry.
func (l *Log) Append(circuit types.CircuitKind, description string, timestamp uint64) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	index := uint64(len(l.entries))
	prevHash := types.EmptyHash
	if index > 0 {
		prevHash = l.entries[index-1].Hash
	}

	entry := Entry{
		Index:       index,
		PrevHash:    prevHash,
		Circuit:     circuit,
		Description: description,
		Timestamp:   timestamp,
	}
	entry.Hash = computeHash(index, prevHash, circuit, description, timestamp)
	l.entries = append(l.entries, entry)
	return entry
}

// Entries returns a copy of the full recorded history.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Head returns the most recent entry's hash, or the zero hash if the log
// is empty.
func (l *Log) Head() types.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return types.EmptyHash
	}
	return l.entries[len(l.entries)-1].Hash
}

// Verify recomputes every entry's hash and checks the chain links, failing
// closed on the first mismatch.
func Verify(entries []Entry) error {
	prevHash := types.EmptyHash
	for _, e := range entries {
		if e.PrevHash != prevHash {
			return ErrChainBroken
		}
		expected := computeHash(e.Index, e.PrevHash, e.Circuit, e.Description, e.Timestamp)
		if expected != e.Hash {
			return ErrChainBroken
		}
		prevHash = e.Hash
	}
	return nil
}
