// Copyright 2025 Certen Protocol

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// MerkleRepository persists tree metadata and individual nodes; the merkle
// manager is the only component that writes to it (spec §3 ownership
// rule). Absent node rows are treated as the canonical zero leaf for that
// level and are never materialized.
type MerkleRepository struct {
	client *Client
}

// NewMerkleRepository constructs a MerkleRepository.
func NewMerkleRepository(client *Client) *MerkleRepository {
	return &MerkleRepository{client: client}
}

// UpsertTree records the current root and leaf count for a tree.
func (r *MerkleRepository) UpsertTree(ctx context.Context, t *MerkleTreeRecord) error {
	_, err := r.client.ExecContext(ctx, `
		INSERT INTO merkle_trees (tree_id, depth, root, leaf_count, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (tree_id) DO UPDATE SET
			root = EXCLUDED.root,
			leaf_count = EXCLUDED.leaf_count,
			updated_at = now()
	`, t.TreeID, t.Depth, t.Root, t.LeafCount)
	if err != nil {
		return fmt.Errorf("upsert merkle tree: %w", err)
	}
	return nil
}

// GetTree returns the tree metadata row for a tree id.
func (r *MerkleRepository) GetTree(ctx context.Context, treeID string) (*MerkleTreeRecord, error) {
	row := r.client.QueryRowContext(ctx, `
		SELECT tree_id, depth, root, leaf_count, updated_at FROM merkle_trees WHERE tree_id = $1
	`, treeID)

	var t MerkleTreeRecord
	err := row.Scan(&t.TreeID, &t.Depth, &t.Root, &t.LeafCount, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMerkleNodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get merkle tree: %w", err)
	}
	return &t, nil
}

// UpsertNode records a single (tree, level, index) -> hash node.
func (r *MerkleRepository) UpsertNode(ctx context.Context, n *MerkleNodeRecord) error {
	_, err := r.client.ExecContext(ctx, `
		INSERT INTO merkle_nodes (tree_id, level, node_index, hash)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (tree_id, level, node_index) DO UPDATE SET hash = EXCLUDED.hash
	`, n.TreeID, n.Level, n.NodeIndex, n.Hash)
	if err != nil {
		return fmt.Errorf("upsert merkle node: %w", err)
	}
	return nil
}

// ListLeaves returns every leaf (level 0) node for a tree, ordered by
// index, for rebuild-on-restart.
func (r *MerkleRepository) ListLeaves(ctx context.Context, treeID string) ([]*MerkleNodeRecord, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT tree_id, level, node_index, hash FROM merkle_nodes
		WHERE tree_id = $1 AND level = 0 ORDER BY node_index ASC
	`, treeID)
	if err != nil {
		return nil, fmt.Errorf("list merkle leaves: %w", err)
	}
	defer rows.Close()

	var out []*MerkleNodeRecord
	for rows.Next() {
		var n MerkleNodeRecord
		if err := rows.Scan(&n.TreeID, &n.Level, &n.NodeIndex, &n.Hash); err != nil {
			return nil, fmt.Errorf("scan merkle node: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
