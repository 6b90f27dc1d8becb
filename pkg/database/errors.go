// Copyright 2025 Certen Protocol
//
// Package database provides sentinel errors for repository operations.

package database

import "errors"

// Sentinel errors for database operations
var (
	// ErrNotFound is returned when a requested entity is not found in the database
	ErrNotFound = errors.New("entity not found")

	// ErrIntentNotFound is returned when an intent record is not found
	ErrIntentNotFound = errors.New("intent not found")

	// ErrPrivacyParamsNotFound is returned when an intent's privacy params are not found
	ErrPrivacyParamsNotFound = errors.New("privacy params not found")

	// ErrMerkleNodeNotFound is returned when a merkle leaf/node record is not found
	ErrMerkleNodeNotFound = errors.New("merkle node not found")

	// ErrEventNotFound is returned when an event record is not found
	ErrEventNotFound = errors.New("event not found")

	// ErrChainTxLogNotFound is returned when a chain transaction log entry is not found
	ErrChainTxLogNotFound = errors.New("chain tx log entry not found")

	// ErrRootSyncNotFound is returned when a root-sync record is not found
	ErrRootSyncNotFound = errors.New("root sync record not found")

	// ErrDuplicateIntent is returned when an intent with the same id already exists
	ErrDuplicateIntent = errors.New("intent already exists")
)
