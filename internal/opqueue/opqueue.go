// Package opqueue implements the pending-operation submission queue: a
// FIFO holding area for claim/split/spend/pool requests that have been
// received (directly or via gossip) but not yet applied by the engine's
// single writer. Unlike a fee-market mempool, operations here have no
// price and no eviction — the queue rejects a duplicate submission, one
// whose nullifier already conflicts with a queued operation, or any
// submission once it holds MaxSize operations.
package opqueue

import (
	"errors"
	"sync"

	"github.com/shieldbridge/core/internal/dispatch"
	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/pkg/types"
)

// Errors returned by queue operations.
var (
	ErrQueueFull        = errors.New("opqueue: queue is full")
	ErrAlreadyQueued    = errors.New("opqueue: operation already queued")
	ErrNullifierQueued  = errors.New("opqueue: nullifier already queued by another operation")
)

// Operation is one pending request awaiting the engine's single writer.
type Operation struct {
	ID            types.Hash
	Circuit       types.CircuitKind
	Request       dispatch.Request
	NullifierHash field.Scalar
	HasNullifier  bool
	SubmittedAt   uint64
}

// Config holds queue configuration.
type Config struct {
	MaxSize int
}

// DefaultConfig returns default queue configuration.
func DefaultConfig() *Config {
	return &Config{MaxSize: 10000}
}

// Queue is the FIFO pending-operation queue.
type Queue struct {
	mu sync.RWMutex

	ops   map[types.Hash]*Operation
	order []types.Hash

	nullifiers map[[32]byte]types.Hash

	maxSize int
}

// New creates an empty queue.
func New(cfg *Config) *Queue {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Queue{
		ops:        make(map[types.Hash]*Operation),
		nullifiers: make(map[[32]byte]types.Hash),
		maxSize:    cfg.MaxSize,
	}
}

// Submit enqueues an operation. It fails if the queue is full, the
// operation's ID is already queued, or its nullifier (if any) already
// belongs to a different queued operation.
func (q *Queue) Submit(op *Operation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.ops[op.ID]; exists {
		return ErrAlreadyQueued
	}
	if len(q.ops) >= q.maxSize {
		return ErrQueueFull
	}
	if op.HasNullifier {
		key := op.NullifierHash.Bytes()
		if existing, exists := q.nullifiers[key]; exists && existing != op.ID {
			return ErrNullifierQueued
		}
	}

	q.ops[op.ID] = op
	q.order = append(q.order, op.ID)
	if op.HasNullifier {
		q.nullifiers[op.NullifierHash.Bytes()] = op.ID
	}
	return nil
}

// Remove drops an operation from the queue, once the engine has applied or
// permanently rejected it.
func (q *Queue) Remove(id types.Hash) {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, exists := q.ops[id]
	if !exists {
		return
	}
	delete(q.ops, id)
	if op.HasNullifier {
		delete(q.nullifiers, op.NullifierHash.Bytes())
	}
	for i, qid := range q.order {
		if qid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Get retrieves a queued operation by ID.
func (q *Queue) Get(id types.Hash) (*Operation, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	op, ok := q.ops[id]
	return op, ok
}

// HasNullifier reports whether some queued operation already claims the
// given nullifier hash.
func (q *Queue) HasNullifier(nullifierHash field.Scalar) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, exists := q.nullifiers[nullifierHash.Bytes()]
	return exists
}

// Size returns the number of queued operations.
func (q *Queue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.ops)
}

// Drain returns up to maxCount queued operations in FIFO submission order,
// without removing them — the caller removes each one explicitly once the
// engine has applied it.
func (q *Queue) Drain(maxCount int) []*Operation {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if maxCount > len(q.order) {
		maxCount = len(q.order)
	}
	out := make([]*Operation, 0, maxCount)
	for _, id := range q.order[:maxCount] {
		out = append(out, q.ops[id])
	}
	return out
}
