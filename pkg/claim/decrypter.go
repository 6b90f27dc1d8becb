// Package claim drives the SolverPaid -> UserClaimed path: decrypting the
// intent's privacy params, validating the claim signature, and submitting
// claimWithdrawal on the destination chain (spec §4.5).
package claim

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// signatureLength is the byte length of a 65-byte EVM (r, s, v) signature.
const signatureLength = 65

// Decrypter unwraps the ciphertext fields stored in a privacy params row.
// ECIESDecrypter (ecies.go) is the concrete ECIES implementation; the
// claim worker depends only on this interface.
type Decrypter interface {
	// Decrypt returns the plaintext for one ciphertext field, using the
	// relayer's private key as the recipient key.
	Decrypt(ciphertext []byte) ([]byte, error)
}

// DecodedClaim holds the plaintext fields needed to submit claimWithdrawal.
type DecodedClaim struct {
	Nullifier common.Hash
	Secret    common.Hash
	Recipient common.Address
	ClaimAuth []byte // the 65-byte EVM signature, passed through as claim_auth
}

// Decode unwraps an intent's encrypted nullifier and secret via dec, and
// length-checks the claim signature before it is submitted on-chain
// (spec §4.5 "decode the claim_signature (65-byte EVM signature,
// length-checked)").
func Decode(dec Decrypter, encryptedNullifier, encryptedSecret []byte, recipient common.Address, claimSignature []byte) (*DecodedClaim, error) {
	if len(claimSignature) != signatureLength {
		return nil, fmt.Errorf("claim: signature must be %d bytes, got %d", signatureLength, len(claimSignature))
	}

	nullifierPlain, err := dec.Decrypt(encryptedNullifier)
	if err != nil {
		return nil, fmt.Errorf("claim: decrypt nullifier: %w", err)
	}
	secretPlain, err := dec.Decrypt(encryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("claim: decrypt secret: %w", err)
	}

	return &DecodedClaim{
		Nullifier: common.BytesToHash(nullifierPlain),
		Secret:    common.BytesToHash(secretPlain),
		Recipient: recipient,
		ClaimAuth: claimSignature,
	}, nil
}
