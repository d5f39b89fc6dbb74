package announce

import (
	"testing"

	"github.com/shieldbridge/core/internal/field"
)

func sampleAnnouncement(seed uint64) Announcement {
	g := field.Generator()
	return Announcement{
		EphemeralPub:    g.ScalarMul(field.ScalarFromUint64(seed)),
		Commitment:      field.ScalarFromUint64(seed + 1),
		EncryptedAmount: [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		LeafIndex:       3,
		Timestamp:       1700000000,
	}
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	idx := New(NewMemoryStore())
	a := sampleAnnouncement(11)

	key, err := idx.Create(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store := idx.store.(*MemoryStore)
	got, ok, err := store.Get(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected announcement to be stored")
	}
	if got != a {
		t.Fatalf("stored announcement does not match original")
	}
}

func TestReannounceIdenticalIsNoop(t *testing.T) {
	idx := New(NewMemoryStore())
	a := sampleAnnouncement(22)

	key1, err := idx.Create(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key2, err := idx.Create(a)
	if err != nil {
		t.Fatalf("re-announcing an identical announcement should not error: %v", err)
	}
	if key1 != key2 {
		t.Fatalf("identical announcements should fold to the same key")
	}
}

func TestReannounceDifferentCollides(t *testing.T) {
	idx := New(NewMemoryStore())
	a := sampleAnnouncement(33)
	if _, err := idx.Create(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := a
	b.LeafIndex = a.LeafIndex + 1

	// Force a collision by inserting b directly under a's key.
	key := Key(a.EphemeralPub)
	store := idx.store.(*MemoryStore)
	existing, ok, err := store.Get(key)
	if err != nil || !ok {
		t.Fatalf("expected existing announcement under key")
	}
	if existing == b {
		t.Fatalf("test fixture invalid: b should differ from the stored announcement")
	}

	if _, err := idx.Create(b); err != ErrAnnouncementCollision {
		t.Fatalf("expected ErrAnnouncementCollision, got %v", err)
	}
}

func TestKeyIsDeterministic(t *testing.T) {
	g := field.Generator().ScalarMul(field.ScalarFromUint64(5))
	if Key(g) != Key(g) {
		t.Fatalf("Key should be deterministic for the same point")
	}
}
