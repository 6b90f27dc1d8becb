// Copyright 2025 Certen Protocol

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// IntentRepository provides CRUD access to the intents table.
type IntentRepository struct {
	client *Client
}

// NewIntentRepository constructs an IntentRepository backed by client.
func NewIntentRepository(client *Client) *IntentRepository {
	return &IntentRepository{client: client}
}

// Create inserts a new intent. Returns ErrDuplicateIntent if the id already
// exists.
func (r *IntentRepository) Create(ctx context.Context, intent *Intent) error {
	_, err := r.client.ExecContext(ctx, `
		INSERT INTO intents (
			id, source_chain, dest_chain, source_token, dest_token,
			source_amount, dest_amount, commitment, dest_fill_txid,
			dest_registration_txid, source_complete_txid, deadline,
			refund_address, solver_address, source_block_number,
			source_log_index, commitment_leaf_index, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`,
		intent.ID, intent.SourceChain, intent.DestChain, intent.SourceToken, intent.DestToken,
		intent.SourceAmount, intent.DestAmount, intent.Commitment, intent.DestFillTxID,
		intent.DestRegistrationTxID, intent.SourceCompleteTxID, intent.Deadline,
		intent.RefundAddress, intent.SolverAddress, intent.SourceBlockNumber,
		intent.SourceLogIndex, intent.CommitmentLeafIndex, intent.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIntent
		}
		return fmt.Errorf("insert intent: %w", err)
	}
	return nil
}

// Get returns the intent with the given id.
func (r *IntentRepository) Get(ctx context.Context, id string) (*Intent, error) {
	row := r.client.QueryRowContext(ctx, `
		SELECT id, source_chain, dest_chain, source_token, dest_token,
			source_amount, dest_amount, commitment, dest_fill_txid,
			dest_registration_txid, source_complete_txid, deadline,
			refund_address, solver_address, source_block_number,
			source_log_index, commitment_leaf_index, status, created_at, updated_at
		FROM intents WHERE id = $1
	`, id)
	return scanIntent(row)
}

// ListByStatus returns all intents with the given status, oldest first.
func (r *IntentRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*Intent, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT id, source_chain, dest_chain, source_token, dest_token,
			source_amount, dest_amount, commitment, dest_fill_txid,
			dest_registration_txid, source_complete_txid, deadline,
			refund_address, solver_address, source_block_number,
			source_log_index, commitment_leaf_index, status, created_at, updated_at
		FROM intents WHERE status = $1 ORDER BY created_at ASC LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list intents by status: %w", err)
	}
	defer rows.Close()

	var out []*Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, intent)
	}
	return out, rows.Err()
}

// ListExpirable returns intents whose deadline has passed and whose status
// is still one that can transition to Expired (Committed, Registered, or
// Filled).
func (r *IntentRepository) ListExpirable(ctx context.Context, nowUnix int64, limit int) ([]*Intent, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT id, source_chain, dest_chain, source_token, dest_token,
			source_amount, dest_amount, commitment, dest_fill_txid,
			dest_registration_txid, source_complete_txid, deadline,
			refund_address, solver_address, source_block_number,
			source_log_index, commitment_leaf_index, status, created_at, updated_at
		FROM intents
		WHERE deadline < $1 AND status IN ('committed', 'registered', 'filled')
		ORDER BY deadline ASC LIMIT $2
	`, nowUnix, limit)
	if err != nil {
		return nil, fmt.Errorf("list expirable intents: %w", err)
	}
	defer rows.Close()

	var out []*Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, intent)
	}
	return out, rows.Err()
}

// UpdateStatus sets status and, optionally, one of the three tx-id columns.
// txColumn may be empty to leave tx ids untouched.
func (r *IntentRepository) UpdateStatus(ctx context.Context, id, status, txColumn, txValue string) error {
	var query string
	switch txColumn {
	case "":
		query = `UPDATE intents SET status = $1, updated_at = now() WHERE id = $2`
		_, err := r.client.ExecContext(ctx, query, status, id)
		return wrapUpdateErr(err)
	case "dest_registration_txid":
		query = `UPDATE intents SET status = $1, dest_registration_txid = $2, updated_at = now() WHERE id = $3`
	case "dest_fill_txid":
		query = `UPDATE intents SET status = $1, dest_fill_txid = $2, updated_at = now() WHERE id = $3`
	case "source_complete_txid":
		query = `UPDATE intents SET status = $1, source_complete_txid = $2, updated_at = now() WHERE id = $3`
	default:
		return fmt.Errorf("update intent status: unrecognized tx column %q", txColumn)
	}
	_, err := r.client.ExecContext(ctx, query, status, txValue, id)
	return wrapUpdateErr(err)
}

// SetSolverAddress records which solver filled an intent.
func (r *IntentRepository) SetSolverAddress(ctx context.Context, id, solverAddress string) error {
	_, err := r.client.ExecContext(ctx,
		`UPDATE intents SET solver_address = $1, updated_at = now() WHERE id = $2`,
		solverAddress, id)
	return wrapUpdateErr(err)
}

// Count returns the number of intents in the given status.
func (r *IntentRepository) Count(ctx context.Context, status string) (int, error) {
	var n int
	err := r.client.QueryRowContext(ctx,
		`SELECT count(*) FROM intents WHERE status = $1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count intents: %w", err)
	}
	return n, nil
}

func wrapUpdateErr(err error) error {
	if err != nil {
		return fmt.Errorf("update intent: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntent(row rowScanner) (*Intent, error) {
	var intent Intent
	err := row.Scan(
		&intent.ID, &intent.SourceChain, &intent.DestChain, &intent.SourceToken, &intent.DestToken,
		&intent.SourceAmount, &intent.DestAmount, &intent.Commitment, &intent.DestFillTxID,
		&intent.DestRegistrationTxID, &intent.SourceCompleteTxID, &intent.Deadline,
		&intent.RefundAddress, &intent.SolverAddress, &intent.SourceBlockNumber,
		&intent.SourceLogIndex, &intent.CommitmentLeafIndex, &intent.Status, &intent.CreatedAt, &intent.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan intent: %w", err)
	}
	return &intent, nil
}

func isUniqueViolation(err error) bool {
	// lib/pq surfaces unique-violation as error code 23505; string-matching
	// on the driver error text avoids a direct dependency on pq's error
	// type, matching the teacher's own style of sentinel string checks in
	// database/client.go's migration-table-missing detection.
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "23505")
}
