// Package announce implements the stealth announcement index:
// component A): a create-only, content-addressed store keyed by a folded
// digest of each deposit's ephemeral public key, so a recipient's scanner
// can pull candidate deposits without revealing which ones it matched.
package announce

import (
	"sync"

	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/pkg/types"
)

// ErrAnnouncementCollision is returned by Create when two distinct
// announcements fold to the same key, which can only happen from a
// compressed-point collision or a caller bug; it is never triggered by
// re-announcing the exact same deposit (that case is treated as a no-op).
var ErrAnnouncementCollision = types.ErrAnnouncementCollision

// Announcement is one published stealth deposit, exactly as a scanner needs
// it: the ephemeral public key, the amount ciphertext, the note commitment
// (never the raw one-time stealth public key, which a scanner must
// recompute and check against this field rather than compare directly — see
// stealth.Scan), the leaf index the corresponding commitment was inserted
// at, and the creation timestamp.
type Announcement struct {
	EphemeralPub    field.Point
	EncryptedAmount [8]byte
	Commitment      field.Scalar
	LeafIndex       uint64
	Timestamp       uint64
}

// Key folds a 33-byte compressed ephemeral public key into a 32-byte
// content-address by XORing the parity byte into the first coordinate
// byte.
func Key(ephemeralPub field.Point) [32]byte {
	compressed := ephemeralPub.Compress()
	var key [32]byte
	copy(key[:], compressed[1:])
	key[0] ^= compressed[0]
	return key
}

// Store is the persistence boundary the index binds against.
type Store interface {
	Get(key [32]byte) (Announcement, bool, error)
	Put(key [32]byte, a Announcement) error
}

// Index is the stealth announcement index: create-only inserts keyed by
// Key, with a collision check against whatever is already stored under
// that key.
type Index struct {
	mu    sync.Mutex
	store Store
}

// New builds an index backed by store.
func New(store Store) *Index {
	return &Index{store: store}
}

// Create publishes a new announcement. If an announcement already exists
// under the same key, Create succeeds as a no-op when it is identical
// (idempotent re-announce) and fails with ErrAnnouncementCollision when it
// differs.
func (idx *Index) Create(a Announcement) ([32]byte, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := Key(a.EphemeralPub)
	existing, ok, err := idx.store.Get(key)
	if err != nil {
		return key, err
	}
	if ok {
		if existing == a {
			return key, nil
		}
		return key, ErrAnnouncementCollision
	}
	return key, idx.store.Put(key, a)
}

// MemoryStore is a process-local Store used by tests and by single-node
// deployments without a durable backend.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[[32]byte]Announcement
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[[32]byte]Announcement)}
}

func (m *MemoryStore) Get(key [32]byte) (Announcement, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.data[key]
	return a, ok, nil
}

func (m *MemoryStore) Put(key [32]byte, a Announcement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = a
	return nil
}
