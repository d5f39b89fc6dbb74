// Package nullifier implements the exactly-once nullifier registry
// A nullifier hash may be inserted at most
// once; any second insert, even of the identical value, is a double-spend
// and must fail rather than silently succeed.
package nullifier

import (
	"sync"

	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/pkg/types"
)

// ErrAlreadySpent is returned by Insert when a nullifier hash is already
// present in the registry.
var ErrAlreadySpent = types.ErrAlreadySpent

// Store is the persistence boundary the registry binds against. A
// Postgres-backed implementation lives in internal/storage; tests and the
// in-process engine use the in-memory implementation below.
type Store interface {
	// Has reports whether key is already recorded.
	Has(key [32]byte) (bool, error)
	// Put records key. Callers only ever call this once Has has already
	// returned false under the same lock, so it does not itself need to
	// be idempotent-safe against races from other goroutines.
	Put(key [32]byte) error
}

// Registry is the exactly-once nullifier registry. It serializes inserts
// with a mutex so the has-then-put sequence against Store is atomic from
// the registry's callers' point of view, matching the reducer's
// single-writer concurrency model.
type Registry struct {
	mu    sync.Mutex
	store Store
}

// New builds a registry backed by store.
func New(store Store) *Registry {
	return &Registry{store: store}
}

// Insert records nullifierHash as spent, or returns ErrAlreadySpent if it
// was already present. No partial state is left behind on error.
func (r *Registry) Insert(nullifierHash field.Scalar) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := nullifierHash.Bytes()
	spent, err := r.store.Has(key)
	if err != nil {
		return err
	}
	if spent {
		return ErrAlreadySpent
	}
	return r.store.Put(key)
}

// Has reports whether nullifierHash has already been spent, without
// attempting to insert it.
func (r *Registry) Has(nullifierHash field.Scalar) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Has(nullifierHash.Bytes())
}

// MemoryStore is a process-local Store, used by tests and by the engine
// when no durable backend is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	seen map[[32]byte]struct{}
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[[32]byte]struct{})}
}

func (m *MemoryStore) Has(key [32]byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[key]
	return ok, nil
}

func (m *MemoryStore) Put(key [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[key] = struct{}{}
	return nil
}
