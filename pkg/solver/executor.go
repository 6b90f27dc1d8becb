package solver

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/intentbridge/relayer/pkg/database"
	"github.com/intentbridge/relayer/pkg/ethereum"
	"github.com/intentbridge/relayer/pkg/relayererr"
	"github.com/intentbridge/relayer/pkg/token"
)

// knownRevertSelectors maps a 4-byte ABI error selector to a human label,
// used to classify a simulation/transaction revert without relying on a
// revert string being present (spec §7 "classified by 4-byte selector
// where possible").
var knownRevertSelectors = map[string]string{
	"0x08c379a0": "Error(string)",          // standard revert-reason string
	"0x4e487b71": "Panic(uint256)",         // compiler-inserted panic (overflow, div-by-zero, etc.)
	"0x3b18696e": "IntentAlreadyFilled()",
	"0xb2926f0b": "IntentExpired()",
	"0x13be252b": "InsufficientAllowance()",
}

// ClassifyRevert inspects a transaction/simulation error for a known
// 4-byte selector prefix and returns its label, or "" if unrecognized.
func ClassifyRevert(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for selector, label := range knownRevertSelectors {
		if strings.Contains(msg, selector) {
			return label
		}
	}
	return ""
}

// Candidate is one registered intent the watcher has surfaced for
// evaluation and, potentially, execution.
type Candidate struct {
	IntentID     string // 0x-prefixed hex
	Token        token.Symbol
	TokenAddr    common.Address
	Amount       *big.Int
	SrcChain     *big.Int
	Commitment   [32]byte
	IsNative     bool
}

// Executor turns a Candidate that has cleared the Gate into an on-chain
// fillIntent submission, re-checking state immediately before sending so a
// race with another solver (or the intent expiring) is caught rather than
// wasting gas on a doomed transaction (spec §4.6 "Execution").
type Executor struct {
	client      *ethereum.Client
	settlement  common.Address
	signerKey   string
	gasLimit    uint64
	intents     *database.IntentRepository
	fromAddress common.Address
}

// NewExecutor constructs an Executor bound to the destination chain's
// settlement contract and the solver's own signing key/address.
func NewExecutor(client *ethereum.Client, settlement common.Address, signerKey string, gasLimit uint64, intents *database.IntentRepository, fromAddress common.Address) *Executor {
	return &Executor{
		client:      client,
		settlement:  settlement,
		signerKey:   signerKey,
		gasLimit:    gasLimit,
		intents:     intents,
		fromAddress: fromAddress,
	}
}

// Fill runs the full preflight-then-send sequence for one candidate:
//  1. re-read getIntentParams to confirm the intent still exists and is
//     unfilled (another solver may have already taken it);
//  2. re-check live balance against the 1.08x preflight margin;
//  3. approve the settlement contract if the ERC-20 allowance is short;
//  4. submit fillIntent.
//
// Returns the resulting tx hash on success. The caller is responsible for
// releasing the candidate's CapitalGate reservation and ProcessedSet entry
// regardless of outcome.
func (e *Executor) Fill(ctx context.Context, c Candidate) (string, error) {
	params, err := e.client.GetIntentParams(ctx, e.settlement, idBytes(c.IntentID))
	if err != nil {
		return "", relayererr.Transaction("preflight getIntentParams for %s: %v", c.IntentID, err)
	}
	if !params.Exists {
		return "", relayererr.Simulation("intent %s no longer exists on chain (lost race or expired)", c.IntentID)
	}

	fill, err := e.client.GetFill(ctx, e.settlement, idBytes(c.IntentID))
	if err != nil {
		return "", relayererr.Transaction("preflight getFill for %s: %v", c.IntentID, err)
	}
	if (fill.Solver != common.Address{}) {
		return "", relayererr.Simulation("intent %s already filled by %s", c.IntentID, fill.Solver.Hex())
	}

	if !c.IsNative {
		balance, err := e.client.BalanceOf(ctx, c.TokenAddr, e.fromAddress)
		if err != nil {
			return "", relayererr.Transaction("preflight balanceOf for %s: %v", c.IntentID, err)
		}
		if !HasPreflightMargin(balance, c.Amount) {
			return "", relayererr.Resource("insufficient %s balance for intent %s: have %s, need %s at 1.08x margin", c.Token, c.IntentID, balance, c.Amount)
		}

		allowance, err := e.client.Allowance(ctx, c.TokenAddr, e.fromAddress, e.settlement)
		if err != nil {
			return "", relayererr.Transaction("preflight allowance for %s: %v", c.IntentID, err)
		}
		if allowance.Cmp(c.Amount) < 0 {
			if _, err := e.client.Approve(ctx, c.TokenAddr, e.signerKey, e.gasLimit, e.settlement, c.Amount); err != nil {
				return "", relayererr.Transaction("approve for %s: %v", c.IntentID, err)
			}
		}
	}

	if c.IsNative {
		balance, err := e.client.GetBalance(ctx, e.fromAddress)
		if err != nil {
			return "", relayererr.Transaction("preflight native balance for %s: %v", c.IntentID, err)
		}
		if !HasPreflightMargin(balance, c.Amount) {
			return "", relayererr.Resource("insufficient %s balance for intent %s: have %s, need %s at 1.08x margin", c.Token, c.IntentID, balance, c.Amount)
		}
	}

	var value *big.Int
	if c.IsNative {
		value = c.Amount
	}

	result, err := e.client.FillIntent(ctx, e.settlement, e.signerKey, e.gasLimit, value,
		idBytes(c.IntentID), c.Commitment, c.SrcChain, c.TokenAddr, c.Amount)
	if err != nil {
		if label := ClassifyRevert(err); label != "" {
			return "", relayererr.Simulation("fillIntent for %s reverted: %s", c.IntentID, label)
		}
		return "", relayererr.Transaction("fillIntent for %s: %v", c.IntentID, err)
	}

	if err := e.intents.UpdateStatus(ctx, c.IntentID, "filled", "dest_fill_txid", result.TxHash); err != nil {
		return result.TxHash, relayererr.New(relayererr.KindTransaction, true, err)
	}
	if err := e.intents.SetSolverAddress(ctx, c.IntentID, e.fromAddress.Hex()); err != nil {
		return result.TxHash, relayererr.New(relayererr.KindTransaction, true, err)
	}

	return result.TxHash, nil
}

func idBytes(hexID string) [32]byte {
	var id [32]byte
	copy(id[:], common.FromHex(hexID))
	return id
}
