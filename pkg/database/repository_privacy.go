// Copyright 2025 Certen Protocol

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// PrivacyParamsRepository provides access to the intent_privacy_params
// table; mutated only by the coordinator on claim arming (spec §3
// ownership rule).
type PrivacyParamsRepository struct {
	client *Client
}

// NewPrivacyParamsRepository constructs a PrivacyParamsRepository.
func NewPrivacyParamsRepository(client *Client) *PrivacyParamsRepository {
	return &PrivacyParamsRepository{client: client}
}

// Upsert inserts or replaces the privacy params for an intent.
func (r *PrivacyParamsRepository) Upsert(ctx context.Context, p *PrivacyParams) error {
	_, err := r.client.ExecContext(ctx, `
		INSERT INTO intent_privacy_params (intent_id, commitment, nullifier, secret, recipient, claim_signature, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
		ON CONFLICT (intent_id) DO UPDATE SET
			commitment = EXCLUDED.commitment,
			nullifier = EXCLUDED.nullifier,
			secret = EXCLUDED.secret,
			recipient = EXCLUDED.recipient,
			claim_signature = EXCLUDED.claim_signature,
			updated_at = now()
	`, p.IntentID, p.Commitment, p.Nullifier, p.Secret, p.Recipient, p.ClaimSignature)
	if err != nil {
		return fmt.Errorf("upsert privacy params: %w", err)
	}
	return nil
}

// Get returns the privacy params for an intent.
func (r *PrivacyParamsRepository) Get(ctx context.Context, intentID string) (*PrivacyParams, error) {
	row := r.client.QueryRowContext(ctx, `
		SELECT intent_id, commitment, nullifier, secret, recipient, claim_signature, updated_at
		FROM intent_privacy_params WHERE intent_id = $1
	`, intentID)

	var p PrivacyParams
	err := row.Scan(&p.IntentID, &p.Commitment, &p.Nullifier, &p.Secret, &p.Recipient, &p.ClaimSignature, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPrivacyParamsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get privacy params: %w", err)
	}
	return &p, nil
}
