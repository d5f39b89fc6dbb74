package tree

import (
	"testing"

	"github.com/shieldbridge/core/internal/field"
)

func TestEmptyTreeRootMatchesZeroSubtree(t *testing.T) {
	tr := New(4)
	if !tr.Root().Equal(tr.zero[4]) {
		t.Fatalf("empty tree root should be the depth-4 zero subtree hash")
	}
}

func TestInsertAssignsSequentialIndices(t *testing.T) {
	tr := New(4)
	for i := uint64(0); i < 5; i++ {
		idx, _, err := tr.Insert(field.ScalarFromUint64(i + 1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if idx != i {
			t.Fatalf("expected index %d, got %d", i, idx)
		}
	}
	if tr.Size() != 5 {
		t.Fatalf("expected size 5, got %d", tr.Size())
	}
}

func TestInsertChangesRoot(t *testing.T) {
	tr := New(4)
	before := tr.Root()
	if _, _, err := tr.Insert(field.ScalarFromUint64(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Root().Equal(before) {
		t.Fatalf("root should change after an insert")
	}
}

func TestWitnessVerifiesAgainstCurrentRoot(t *testing.T) {
	tr := New(4)
	leaves := []field.Scalar{
		field.ScalarFromUint64(10),
		field.ScalarFromUint64(20),
		field.ScalarFromUint64(30),
	}
	for _, l := range leaves {
		if _, _, err := tr.Insert(l); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for i, l := range leaves {
		w, err := tr.Witness(uint64(i))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !VerifyWitness(l, w, tr.Root()) {
			t.Fatalf("witness for leaf %d did not verify against the current root", i)
		}
	}
}

func TestWitnessRejectsWrongLeaf(t *testing.T) {
	tr := New(4)
	if _, _, err := tr.Insert(field.ScalarFromUint64(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := tr.Insert(field.ScalarFromUint64(20)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w, err := tr.Witness(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if VerifyWitness(field.ScalarFromUint64(999), w, tr.Root()) {
		t.Fatalf("witness should not verify for a leaf it was not built for")
	}
}

func TestWitnessOutOfRangeErrors(t *testing.T) {
	tr := New(4)
	if _, err := tr.Witness(0); err != ErrLeafIndexOutOfRange {
		t.Fatalf("expected ErrLeafIndexOutOfRange, got %v", err)
	}
}

func TestInsertFailsWhenTreeIsFull(t *testing.T) {
	tr := New(2)
	for i := 0; i < 4; i++ {
		if _, _, err := tr.Insert(field.ScalarFromUint64(uint64(i))); err != nil {
			t.Fatalf("unexpected error inserting leaf %d: %v", i, err)
		}
	}
	if _, _, err := tr.Insert(field.ScalarFromUint64(4)); err != ErrTreeFull {
		t.Fatalf("expected ErrTreeFull, got %v", err)
	}
}

func TestNewDefaultUsesProductionDepth(t *testing.T) {
	tr := NewDefault()
	if tr.depth != Depth {
		t.Fatalf("expected depth %d, got %d", Depth, tr.depth)
	}
}
