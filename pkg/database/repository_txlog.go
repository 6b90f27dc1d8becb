// Copyright 2025 Certen Protocol

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// ChainTxLogRepository persists the per-intent on-chain transaction
// history; unique on tx hash, status transitions pending -> confirmed or
// pending -> reverted (spec §3 "Chain transaction log").
type ChainTxLogRepository struct {
	client *Client
}

// NewChainTxLogRepository constructs a ChainTxLogRepository.
func NewChainTxLogRepository(client *Client) *ChainTxLogRepository {
	return &ChainTxLogRepository{client: client}
}

// Create records a newly-sent transaction as pending.
func (r *ChainTxLogRepository) Create(ctx context.Context, t *ChainTxLogRecord) error {
	_, err := r.client.ExecContext(ctx, `
		INSERT INTO chain_tx_log (tx_hash, intent_id, chain_id, tx_type, status, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (tx_hash) DO NOTHING
	`, t.TxHash, t.IntentID, t.ChainID, t.TxType, t.Status, t.Timestamp)
	if err != nil {
		return fmt.Errorf("insert chain tx log: %w", err)
	}
	return nil
}

// UpdateStatus transitions a logged transaction from pending to its final
// status.
func (r *ChainTxLogRepository) UpdateStatus(ctx context.Context, txHash, status string) error {
	_, err := r.client.ExecContext(ctx,
		`UPDATE chain_tx_log SET status = $1 WHERE tx_hash = $2`, status, txHash)
	if err != nil {
		return fmt.Errorf("update chain tx log status: %w", err)
	}
	return nil
}

// ListByIntent returns every logged transaction for an intent, most recent
// first.
func (r *ChainTxLogRepository) ListByIntent(ctx context.Context, intentID string) ([]*ChainTxLogRecord, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT intent_id, chain_id, tx_type, tx_hash, status, timestamp
		FROM chain_tx_log WHERE intent_id = $1 ORDER BY timestamp DESC
	`, intentID)
	if err != nil {
		return nil, fmt.Errorf("list chain tx log: %w", err)
	}
	defer rows.Close()

	var out []*ChainTxLogRecord
	for rows.Next() {
		var t ChainTxLogRecord
		if err := rows.Scan(&t.IntentID, &t.ChainID, &t.TxType, &t.TxHash, &t.Status, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chain tx log: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// GetByHash returns a single logged transaction by its hash.
func (r *ChainTxLogRepository) GetByHash(ctx context.Context, txHash string) (*ChainTxLogRecord, error) {
	row := r.client.QueryRowContext(ctx, `
		SELECT intent_id, chain_id, tx_type, tx_hash, status, timestamp
		FROM chain_tx_log WHERE tx_hash = $1
	`, txHash)

	var t ChainTxLogRecord
	err := row.Scan(&t.IntentID, &t.ChainID, &t.TxType, &t.TxHash, &t.Status, &t.Timestamp)
	if err == sql.ErrNoRows {
		return nil, ErrChainTxLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chain tx log: %w", err)
	}
	return &t, nil
}
