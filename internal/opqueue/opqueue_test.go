package opqueue

import (
	"testing"

	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/pkg/types"
)

func idFromByte(b byte) types.Hash {
	var h types.Hash
	h[31] = b
	return h
}

func TestSubmitThenGetRoundTrip(t *testing.T) {
	q := New(nil)
	op := &Operation{ID: idFromByte(1), Circuit: types.CircuitClaim}

	if err := q.Submit(op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := q.Get(op.ID)
	if !ok {
		t.Fatalf("expected to find the submitted operation")
	}
	if got != op {
		t.Fatalf("Get should return the exact submitted operation")
	}
}

func TestSubmitRejectsDuplicateID(t *testing.T) {
	q := New(nil)
	op := &Operation{ID: idFromByte(1)}
	if err := q.Submit(op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Submit(op); err != ErrAlreadyQueued {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}
}

func TestSubmitRejectsConflictingNullifier(t *testing.T) {
	q := New(nil)
	n := field.ScalarFromUint64(42)

	first := &Operation{ID: idFromByte(1), HasNullifier: true, NullifierHash: n}
	if err := q.Submit(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := &Operation{ID: idFromByte(2), HasNullifier: true, NullifierHash: n}
	if err := q.Submit(second); err != ErrNullifierQueued {
		t.Fatalf("expected ErrNullifierQueued, got %v", err)
	}
}

func TestRemoveFreesNullifierAndID(t *testing.T) {
	q := New(nil)
	n := field.ScalarFromUint64(7)
	op := &Operation{ID: idFromByte(1), HasNullifier: true, NullifierHash: n}

	if err := q.Submit(op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.Remove(op.ID)

	if q.Size() != 0 {
		t.Fatalf("expected empty queue after remove, got size %d", q.Size())
	}
	if q.HasNullifier(n) {
		t.Fatalf("nullifier should be free after its operation is removed")
	}

	// Resubmitting with the same ID and nullifier should now succeed.
	if err := q.Submit(op); err != nil {
		t.Fatalf("unexpected error resubmitting after remove: %v", err)
	}
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	q := New(&Config{MaxSize: 1})
	if err := q.Submit(&Operation{ID: idFromByte(1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Submit(&Operation{ID: idFromByte(2)}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestDrainReturnsFIFOOrder(t *testing.T) {
	q := New(nil)
	for i := byte(1); i <= 3; i++ {
		if err := q.Submit(&Operation{ID: idFromByte(i)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	drained := q.Drain(2)
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained operations, got %d", len(drained))
	}
	if drained[0].ID != idFromByte(1) || drained[1].ID != idFromByte(2) {
		t.Fatalf("drain should preserve FIFO submission order")
	}
	// Drain does not remove entries.
	if q.Size() != 3 {
		t.Fatalf("expected queue size unchanged by drain, got %d", q.Size())
	}
}
