// Copyright 2025 Certen Protocol

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// EventRepository provides read access to the append-only event store; it
// is written only by the external chain-event indexer, never by the core
// (spec §3 ownership rule). Create is still provided for tests and for the
// indexer adapter to call.
type EventRepository struct {
	client *Client
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(client *Client) *EventRepository {
	return &EventRepository{client: client}
}

// Create appends a new event record.
func (r *EventRepository) Create(ctx context.Context, e *EventRecord) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	_, err := r.client.ExecContext(ctx, `
		INSERT INTO events (event_id, intent_id, event_type, event_data, chain_id, block_number, transaction_hash, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, e.EventID, e.IntentID, e.EventType, e.EventData, e.ChainID, e.BlockNumber, e.TransactionHash, e.Timestamp)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListByTypeAndChain returns events of a given type on a given chain,
// ordered by (block_number, then event_id), starting after
// afterBlock (exclusive) to support incremental polling.
func (r *EventRepository) ListByTypeAndChain(ctx context.Context, eventType string, chainID int64, afterBlock int64, limit int) ([]*EventRecord, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT event_id, intent_id, event_type, event_data, chain_id, block_number, transaction_hash, timestamp
		FROM events
		WHERE event_type = $1 AND chain_id = $2 AND block_number > $3
		ORDER BY block_number ASC, event_id ASC
		LIMIT $4
	`, eventType, chainID, afterBlock, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*EventRecord
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindByJSONPath queries event_data for a top-level JSON key matching
// value, used e.g. to find the event carrying a given nullifier.
func (r *EventRepository) FindByJSONPath(ctx context.Context, jsonKey, value string) (*EventRecord, error) {
	row := r.client.QueryRowContext(ctx, `
		SELECT event_id, intent_id, event_type, event_data, chain_id, block_number, transaction_hash, timestamp
		FROM events WHERE event_data ->> $1 = $2
		ORDER BY block_number ASC LIMIT 1
	`, jsonKey, value)
	return scanEvent(row)
}

func scanEvent(row rowScanner) (*EventRecord, error) {
	var e EventRecord
	err := row.Scan(&e.EventID, &e.IntentID, &e.EventType, &e.EventData, &e.ChainID, &e.BlockNumber, &e.TransactionHash, &e.Timestamp)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &e, nil
}
