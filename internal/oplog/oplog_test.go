package oplog

import (
	"testing"

	"github.com/shieldbridge/core/pkg/types"
)

func TestAppendChainsPrevHash(t *testing.T) {
	log := New()
	first := log.Append(types.CircuitClaim, "claim 1", 1000)
	second := log.Append(types.CircuitSplit, "split 1", 1001)

	if first.PrevHash != types.EmptyHash {
		t.Fatalf("first entry's prev hash should be the zero hash")
	}
	if second.PrevHash != first.Hash {
		t.Fatalf("second entry's prev hash should equal the first entry's hash")
	}
}

func TestHeadTracksMostRecentEntry(t *testing.T) {
	log := New()
	if log.Head() != types.EmptyHash {
		t.Fatalf("empty log's head should be the zero hash")
	}
	e := log.Append(types.CircuitClaim, "claim 1", 1000)
	if log.Head() != e.Hash {
		t.Fatalf("head should equal the single appended entry's hash")
	}
}

func TestVerifyAcceptsIntactChain(t *testing.T) {
	log := New()
	log.Append(types.CircuitClaim, "claim 1", 1000)
	log.Append(types.CircuitSplit, "split 1", 1001)
	log.Append(types.CircuitPoolDeposit, "deposit 1", 1002)

	if err := Verify(log.Entries()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyRejectsTamperedEntry(t *testing.T) {
	log := New()
	log.Append(types.CircuitClaim, "claim 1", 1000)
	log.Append(types.CircuitSplit, "split 1", 1001)

	entries := log.Entries()
	entries[1].Description = "tampered"

	if err := Verify(entries); err != ErrChainBroken {
		t.Fatalf("expected ErrChainBroken, got %v", err)
	}
}

func TestVerifyRejectsBrokenLink(t *testing.T) {
	log := New()
	log.Append(types.CircuitClaim, "claim 1", 1000)
	log.Append(types.CircuitSplit, "split 1", 1001)

	entries := log.Entries()
	entries[1].PrevHash = types.HashFromBytes([]byte("not the real previous hash"))

	if err := Verify(entries); err != ErrChainBroken {
		t.Fatalf("expected ErrChainBroken, got %v", err)
	}
}
