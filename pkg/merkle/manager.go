package merkle

import (
	"fmt"
	"sync"
)

// Manager owns the six append-only trees the bridge maintains: one
// commitments, intents, and fills tree per chain. It is the single point
// of truth in-process for "what is our local root for X" queries made by
// the root-sync coordinator and the workers.
type Manager struct {
	mu    sync.RWMutex
	trees map[Key]*Tree
}

// NewManager creates a Manager with all six trees initialized empty.
func NewManager() *Manager {
	m := &Manager{trees: make(map[Key]*Tree, 6)}
	for _, chain := range []Chain{ChainA, ChainB} {
		for _, kind := range []Kind{KindCommitments, KindIntents, KindFills} {
			key := Key{Chain: chain, Kind: kind}
			m.trees[key] = NewTree(key)
		}
	}
	return m
}

// Tree returns the tree for the given key, or an error if the key is not
// one of the six recognized (chain, kind) combinations.
func (m *Manager) Tree(key Key) (*Tree, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tr, ok := m.trees[key]
	if !ok {
		return nil, fmt.Errorf("merkle: no tree for key %s", key)
	}
	return tr, nil
}

// Append appends a leaf to the named tree and returns its index and the
// resulting root.
func (m *Manager) Append(key Key, leaf [32]byte) (int, [32]byte, error) {
	tr, err := m.Tree(key)
	if err != nil {
		return 0, [32]byte{}, err
	}
	return tr.Append(leaf)
}

// Root returns the current local root for the named tree.
func (m *Manager) Root(key Key) ([32]byte, error) {
	tr, err := m.Tree(key)
	if err != nil {
		return [32]byte{}, err
	}
	return tr.Root(), nil
}

// Snapshot returns the current root for every tree, keyed by Key.String(),
// for metrics/logging/debugging.
func (m *Manager) Snapshot() map[string][32]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][32]byte, len(m.trees))
	for key, tr := range m.trees {
		out[key.String()] = tr.Root()
	}
	return out
}
