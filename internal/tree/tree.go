// Package tree implements the append-only commitment Merkle tree
// a depth-20 incremental tree with Poseidon2
// inner-node hashing, maintained via the frontier (filled-subtrees)
// algorithm so that each insert costs O(depth) rather than a full rebuild.
package tree

import (
	"errors"

	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/internal/poseidon2"
	"github.com/shieldbridge/core/pkg/types"
)

// Depth is the production commitment tree depth. Tests may build a shallower
// tree as a fixture, but no production code path ever does.
const Depth = 20

// ErrTreeFull is returned by Insert once the tree holds 2^Depth leaves.
var ErrTreeFull = types.ErrTreeFull

// ErrLeafIndexOutOfRange is returned by Witness for an index that has not
// been inserted yet.
var ErrLeafIndexOutOfRange = errors.New("tree: leaf index out of range")

// Tree is an append-only Poseidon2 Merkle tree of fixed depth.
type Tree struct {
	depth    int
	size     uint64
	zero     []field.Scalar // zero[i] is the hash of an empty subtree of height i
	frontier []field.Scalar // frontier[i] is the left sibling pending completion at level i
	root     field.Scalar
	leaves   []field.Scalar
}

// New builds an empty tree of the given depth. Production callers must
// always pass Depth; a smaller depth exists only for test fixtures.
func New(depth int) *Tree {
	t := &Tree{
		depth:    depth,
		zero:     make([]field.Scalar, depth+1),
		frontier: make([]field.Scalar, depth),
	}
	t.zero[0] = field.Zero()
	for i := 1; i <= depth; i++ {
		t.zero[i] = poseidon2.Hash2(t.zero[i-1], t.zero[i-1])
	}
	t.root = t.zero[depth]
	return t
}

// NewDefault builds an empty tree at the production depth.
func NewDefault() *Tree {
	return New(Depth)
}

// Size returns the number of leaves inserted so far.
func (t *Tree) Size() uint64 {
	return t.size
}

// Root returns the current tree root.
func (t *Tree) Root() field.Scalar {
	return t.root
}

// Insert appends a new leaf (a note's commitment) and returns its index and
// the tree's new root. The frontier algorithm folds the leaf up through
// each level, testing the corresponding bit of the pre-insert size: a 0 bit
// means this subtree is still open on the left, so the node becomes the new
// frontier entry and is paired with a zero subtree; a 1 bit means the
// subtree completes by pairing with the stored frontier entry.
func (t *Tree) Insert(leaf field.Scalar) (uint64, field.Scalar, error) {
	capacity := uint64(1) << uint(t.depth)
	if t.size >= capacity {
		return 0, field.Scalar{}, ErrTreeFull
	}

	index := t.size
	node := leaf
	idx := index
	for level := 0; level < t.depth; level++ {
		if idx&1 == 0 {
			t.frontier[level] = node
			node = poseidon2.Hash2(node, t.zero[level])
		} else {
			node = poseidon2.Hash2(t.frontier[level], node)
		}
		idx >>= 1
	}

	t.root = node
	t.size++
	t.leaves = append(t.leaves, leaf)
	return index, t.root, nil
}

// Witness is a Merkle inclusion proof: the sibling hash at each level from
// leaf to root, and the corresponding path bits (0 = leaf/node is the left
// child, 1 = right child), matching the bit test Insert uses.
type Witness struct {
	LeafIndex uint64
	Siblings  []field.Scalar
	PathBits  []uint8
}

// Witness rebuilds an inclusion proof for the leaf at index from the
// tree's full leaf history. This is O(size) per call; a storage-backed
// tree may instead persist intermediate levels to answer this in
// O(depth), but the algorithm's output is identical either way.
func (t *Tree) Witness(index uint64) (Witness, error) {
	if index >= t.size {
		return Witness{}, ErrLeafIndexOutOfRange
	}

	level := make([]field.Scalar, len(t.leaves))
	copy(level, t.leaves)

	siblings := make([]field.Scalar, t.depth)
	pathBits := make([]uint8, t.depth)

	idx := index
	for d := 0; d < t.depth; d++ {
		levelZero := t.zero[d]
		var sibling field.Scalar
		if idx&1 == 0 {
			if int(idx+1) < len(level) {
				sibling = level[idx+1]
			} else {
				sibling = levelZero
			}
			pathBits[d] = 0
		} else {
			sibling = level[idx-1]
			pathBits[d] = 1
		}
		siblings[d] = sibling

		next := make([]field.Scalar, (len(level)+1)/2)
		for i := range next {
			left := level[2*i]
			var right field.Scalar
			if 2*i+1 < len(level) {
				right = level[2*i+1]
			} else {
				right = levelZero
			}
			next[i] = poseidon2.Hash2(left, right)
		}
		level = next
		idx >>= 1
	}

	return Witness{LeafIndex: index, Siblings: siblings, PathBits: pathBits}, nil
}

// VerifyWitness recomputes a root from a leaf and a witness and reports
// whether it matches root. This is the same fold Insert performs, driven by
// the witness's recorded path bits instead of the tree's live size.
func VerifyWitness(leaf field.Scalar, w Witness, root field.Scalar) bool {
	node := leaf
	for d := 0; d < len(w.Siblings); d++ {
		if w.PathBits[d] == 0 {
			node = poseidon2.Hash2(node, w.Siblings[d])
		} else {
			node = poseidon2.Hash2(w.Siblings[d], node)
		}
	}
	return node.Equal(root)
}
