package nullifier

import (
	"testing"

	"github.com/shieldbridge/core/internal/field"
)

func TestInsertThenHasReportsSpent(t *testing.T) {
	reg := New(NewMemoryStore())
	n := field.ScalarFromUint64(42)

	spent, err := reg.Has(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spent {
		t.Fatalf("nullifier should not be spent before insert")
	}

	if err := reg.Insert(n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spent, err = reg.Has(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !spent {
		t.Fatalf("nullifier should be spent after insert")
	}
}

func TestDoubleInsertFails(t *testing.T) {
	reg := New(NewMemoryStore())
	n := field.ScalarFromUint64(7)

	if err := reg.Insert(n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Insert(n); err != ErrAlreadySpent {
		t.Fatalf("expected ErrAlreadySpent, got %v", err)
	}
}

func TestDistinctNullifiersIndependent(t *testing.T) {
	reg := New(NewMemoryStore())
	a := field.ScalarFromUint64(1)
	b := field.ScalarFromUint64(2)

	if err := reg.Insert(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Insert(b); err != nil {
		t.Fatalf("inserting an unrelated nullifier should not fail: %v", err)
	}
}
