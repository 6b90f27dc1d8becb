// Copyright 2025 Certen Protocol
//
// Merkle Tree Implementation for the Intent Bridge
//
// This implementation provides:
// - Fixed-depth, append-only binary Merkle trees, bit-exact with the
//   on-chain sorted-pair Keccak256 scheme used by the intent/settlement
//   contracts on both chains
// - Inclusion proof generation for any leaf at any historical leaf count
// - Verification of inclusion proofs against a counter-chain-synced root
// - Thread-safe operations for concurrent append/read

package merkle

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
)

// Common errors
var (
	ErrEmptyTree       = errors.New("cannot build tree from empty leaves")
	ErrInvalidProof    = errors.New("invalid merkle proof")
	ErrLeafNotFound    = errors.New("leaf not found in tree")
	ErrInvalidLeafHash = errors.New("leaf hash must be 32 bytes")
	ErrTreeFull        = errors.New("tree has reached its maximum capacity for the configured depth")
	ErrDuplicateLeaf   = errors.New("leaf already present at a different index")
)

// Depth is the fixed tree depth used by every tree this package manages.
// It matches the depth the intent-pool and settlement contracts were
// deployed with on both chains; changing it requires a contract migration.
const Depth = 20

// MaxLeaves is the maximum number of leaves a tree of Depth can hold.
const MaxLeaves = 1 << Depth

// Kind identifies which logical leaf stream a tree tracks.
type Kind string

const (
	KindCommitments Kind = "commitments"
	KindIntents     Kind = "intents"
	KindFills       Kind = "fills"
)

// Chain identifies one of the two bridged EVM chains.
type Chain string

const (
	ChainA Chain = "A"
	ChainB Chain = "B"
)

// Key names a tree uniquely as (chain, kind), avoiding the key collisions
// that free-form string names are prone to.
type Key struct {
	Chain Chain
	Kind  Kind
}

func (k Key) String() string {
	return fmt.Sprintf("%s.%s", k.Chain, k.Kind)
}

// zeroHashes[i] is the root of an empty subtree of height i (i=0 is a
// single zero leaf). Precomputed once so append/proof paths never need to
// special-case a missing sibling.
var zeroHashes = computeZeroHashes(Depth)

func computeZeroHashes(depth int) [][32]byte {
	out := make([][32]byte, depth+1)
	out[0] = [32]byte{}
	for i := 1; i <= depth; i++ {
		out[i] = hashPair(out[i-1], out[i-1])
	}
	return out
}

// hashPair implements the sorted-pair Keccak256 convention required to stay
// bit-exact with the on-chain contracts: hash(a,b) = keccak256(min(a,b) ||
// max(a,b)), where a and b are compared as big-endian byte arrays, not as
// hex strings.
func hashPair(a, b [32]byte) [32]byte {
	var left, right [32]byte
	if bytes.Compare(a[:], b[:]) <= 0 {
		left, right = a, b
	} else {
		left, right = b, a
	}
	buf := make([]byte, 64)
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return crypto.Keccak256Hash(buf)
}

// Tree is a fixed-depth, append-only Merkle tree over 32-byte leaves.
type Tree struct {
	mu     sync.RWMutex
	key    Key
	leaves [][32]byte
	// levels[0] is the leaf level (the appended leaves, unpadded; a node
	// with no right child is paired with zeroHashes[level]), levels[Depth]
	// is the single root node.
	levels [][][32]byte
	root   [32]byte
}

// NewTree creates a new empty tree identified by key.
func NewTree(key Key) *Tree {
	t := &Tree{key: key}
	t.rebuildLocked()
	return t
}

// Key returns the tree's (chain, kind) identity.
func (t *Tree) Key() Key {
	return t.key
}

// LeafCount returns the number of leaves appended so far.
func (t *Tree) LeafCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.leaves)
}

// Root returns the current Merkle root.
func (t *Tree) Root() [32]byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// RootHex returns the current Merkle root as a 0x-prefixed hex string.
func (t *Tree) RootHex() string {
	root := t.Root()
	return "0x" + hex.EncodeToString(root[:])
}

// GetLeaf returns the leaf at the given index.
func (t *Tree) GetLeaf(index int) ([32]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= len(t.leaves) {
		return [32]byte{}, fmt.Errorf("leaf index %d out of range [0, %d)", index, len(t.leaves))
	}
	return t.leaves[index], nil
}

// Append adds a new leaf at the next free index and returns that index and
// the resulting root. Leaf values are not checked for duplicates: appending
// a hash that is already present places it at a second index. Returns
// ErrTreeFull once MaxLeaves leaves are present.
func (t *Tree) Append(leaf [32]byte) (int, [32]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.leaves) >= MaxLeaves {
		return 0, [32]byte{}, ErrTreeFull
	}

	t.leaves = append(t.leaves, leaf)
	t.rebuildLocked()
	return len(t.leaves) - 1, t.root, nil
}

// RebuildFrom replaces the tree's leaves wholesale and recomputes every
// level. Used on process restart to reconstruct in-memory tree state from
// the persisted leaf log.
func (t *Tree) RebuildFrom(leaves [][32]byte) error {
	if len(leaves) > MaxLeaves {
		return ErrTreeFull
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaves = append([][32]byte(nil), leaves...)
	t.rebuildLocked()
	return nil
}

// rebuildLocked recomputes every level from t.leaves. Caller must hold t.mu.
func (t *Tree) rebuildLocked() {
	if len(t.leaves) == 0 {
		// An empty tree collapses to the all-zero subtree root at every level.
		t.levels = make([][][32]byte, Depth+1)
		for i := 0; i <= Depth; i++ {
			t.levels[i] = [][32]byte{zeroHashes[i]}
		}
		t.root = zeroHashes[Depth]
		return
	}

	levels := make([][][32]byte, Depth+1)
	levels[0] = append([][32]byte(nil), t.leaves...)

	current := levels[0]
	for level := 0; level < Depth; level++ {
		width := (len(current) + 1) / 2
		next := make([][32]byte, width)
		for i := 0; i < width; i++ {
			left := current[2*i]
			var right [32]byte
			if 2*i+1 < len(current) {
				right = current[2*i+1]
			} else {
				right = zeroHashes[level]
			}
			next[i] = hashPair(left, right)
		}
		levels[level+1] = next
		current = next
	}

	t.levels = levels
	t.root = levels[Depth][0]
}

// Zero returns the precomputed empty-subtree root at the given height.
func Zero(height int) [32]byte {
	return zeroHashes[height]
}
