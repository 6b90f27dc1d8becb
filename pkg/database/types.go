// Copyright 2025 Certen Protocol

package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Intent mirrors the `intents` table (spec §3 "Intent"). Id is the 32-byte
// opaque identifier the contracts use, stored as its 0x-prefixed hex
// encoding; Amount fields are arbitrary-precision and stored as numeric
// strings to avoid precision loss.
type Intent struct {
	ID                    string // 0x-prefixed 32-byte hex, immutable
	SourceChain           string
	DestChain             string
	SourceToken           string // address hex
	DestToken             string // address hex
	SourceAmount          string // base-10 integer string, immutable
	DestAmount            string // base-10 integer string, immutable
	Commitment            string // 0x-prefixed 32-byte hex
	DestFillTxID          sql.NullString
	DestRegistrationTxID  sql.NullString
	SourceCompleteTxID    sql.NullString
	Deadline              int64 // unix seconds
	RefundAddress         string
	SolverAddress         sql.NullString
	SourceBlockNumber     sql.NullInt64
	SourceLogIndex        sql.NullInt64
	CommitmentLeafIndex   sql.NullInt64 // index of Commitment in the source chain's commitment tree
	Status                string // persisted intentstatus token
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PrivacyParams mirrors the `intent_privacy_params` table (spec §3 "Intent
// privacy params"). All fields are optional ciphertext/plaintext blobs
// present only for intents that opted into the privacy-claim path.
type PrivacyParams struct {
	IntentID       string
	Commitment     sql.NullString
	Nullifier      sql.NullString
	Secret         sql.NullString
	Recipient      sql.NullString
	ClaimSignature sql.NullString
	UpdatedAt      time.Time
}

// MerkleTreeRecord mirrors the `merkle_trees` table (spec §3 "Merkle
// tree"). TreeID is the stable (chain, kind) string key (e.g. "A.intents").
type MerkleTreeRecord struct {
	TreeID    string
	Depth     int
	Root      string // 0x-prefixed hex
	LeafCount int
	UpdatedAt time.Time
}

// MerkleNodeRecord mirrors the `merkle_nodes` table (spec §3 "Merkle
// node"): unique on (TreeID, Level, NodeIndex); absent nodes are treated as
// the canonical zero leaf for that level, never stored.
type MerkleNodeRecord struct {
	TreeID    string
	Level     int
	NodeIndex int
	Hash      string // 0x-prefixed hex
}

// EventRecord mirrors the `events` table (spec §3 "Event record").
type EventRecord struct {
	EventID         uuid.UUID
	IntentID        sql.NullString
	EventType       string
	EventData       []byte // JSON
	ChainID         int64
	BlockNumber     int64
	TransactionHash string
	Timestamp       time.Time
}

// ChainTxLogRecord mirrors the `chain_tx_log` table (spec §3 "Chain
// transaction log"). Unique on TxHash.
type ChainTxLogRecord struct {
	IntentID  string
	ChainID   int64
	TxType    string
	TxHash    string
	Status    string // pending | confirmed | reverted
	Timestamp time.Time
}

// RootSyncRecord mirrors the `root_sync_log` table (spec §3 "Root-sync
// record"): an append-only audit of every root push.
type RootSyncRecord struct {
	ID        uuid.UUID
	SyncType  string // e.g. "A.commitments->B"
	Root      string // 0x-prefixed hex
	TxHash    string
	CreatedAt time.Time
}
