// Copyright 2025 Certen Protocol

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// RootSyncRepository persists the append-only audit trail of every root
// push the root-sync coordinator performs (spec §3 "Root-sync record").
type RootSyncRepository struct {
	client *Client
}

// NewRootSyncRepository constructs a RootSyncRepository.
func NewRootSyncRepository(client *Client) *RootSyncRepository {
	return &RootSyncRepository{client: client}
}

// Create records a completed (or attempted) root sync.
func (r *RootSyncRepository) Create(ctx context.Context, rec *RootSyncRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.client.ExecContext(ctx, `
		INSERT INTO root_sync_log (id, sync_type, root, tx_hash, created_at)
		VALUES ($1,$2,$3,$4,now())
	`, rec.ID, rec.SyncType, rec.Root, rec.TxHash)
	if err != nil {
		return fmt.Errorf("insert root sync record: %w", err)
	}
	return nil
}

// LastForType returns the most recent root-sync record for a sync type
// (e.g. "A.commitments->B"), or ErrRootSyncNotFound if none exists yet.
func (r *RootSyncRepository) LastForType(ctx context.Context, syncType string) (*RootSyncRecord, error) {
	row := r.client.QueryRowContext(ctx, `
		SELECT id, sync_type, root, tx_hash, created_at
		FROM root_sync_log WHERE sync_type = $1
		ORDER BY created_at DESC LIMIT 1
	`, syncType)

	var rec RootSyncRecord
	err := row.Scan(&rec.ID, &rec.SyncType, &rec.Root, &rec.TxHash, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRootSyncNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get last root sync: %w", err)
	}
	return &rec, nil
}
