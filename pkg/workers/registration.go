// Package workers runs the poll-loop workers that drive an intent through
// its lifecycle after commitment: registration onto the destination chain
// and, later, settlement back on the source chain (spec §4.3, §4.4).
package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/semaphore"

	"github.com/intentbridge/relayer/pkg/database"
	"github.com/intentbridge/relayer/pkg/ethereum"
	"github.com/intentbridge/relayer/pkg/merkle"
	"github.com/intentbridge/relayer/pkg/metrics"
	"github.com/intentbridge/relayer/pkg/relayererr"
)

// recordWorkerError tags a worker's surfaced error onto the process-global
// error metrics (spec §7 "a process-global last_error metric").
func recordWorkerError(component string, err error) {
	var tagged *relayererr.Error
	kind, retriable := "unknown", false
	if errors.As(err, &tagged) {
		kind, retriable = string(tagged.Kind), tagged.Retriable
	}
	metrics.RecordError(component, kind, retriable, time.Now().Unix())
}

// backoffSchedule is the fixed retry delay sequence shared by every worker
// in this package (spec §5 "Retry policy").
var backoffSchedule = []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}

// alreadyDoneMarkers are substrings of a revert reason that indicate an
// on-chain action already completed in a prior, crashed attempt — treated
// as success rather than failure (spec §5 "At-most-one actions").
var alreadyDoneMarkers = []string{
	"already registered",
	"already settled",
	"already filled",
	"already processed",
	"already claimed",
	"already refunded",
}

func isAlreadyDone(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range alreadyDoneMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// logAttemptFailure reports a failed registration/settlement attempt. A
// sync-gap is expected control flow (spec §7 "never logged as an error") —
// the poll loop will simply re-check next tick once the coordinator catches
// up, so it is logged at notice level without touching the error metric.
// Everything else is a genuine worker error.
func logAttemptFailure(logger *log.Logger, component, verb, id string, err error) {
	if relayererr.KindOf(err) == relayererr.KindSyncGap {
		logger.Printf("%s %s: %v (waiting for root sync, will retry)", verb, id, err)
		return
	}
	logger.Printf("%s %s: %v", verb, id, err)
	recordWorkerError(component, err)
}

// RegistrationWorker polls for Committed intents and registers each onto
// its destination chain's settlement contract, carrying a sorted-pair
// Keccak inclusion proof against the source chain's commitment tree
// (spec §4.3). Shaped after the teacher's ConfirmationTracker poll loop:
// ticker plus stopCh/doneCh, one logger per worker instance.
type RegistrationWorker struct {
	mu sync.Mutex

	intents *database.IntentRepository
	trees   *merkle.Manager

	clientA *ethereum.Client // source chain
	clientB *ethereum.Client // destination chain

	settlementA common.Address
	settlementB common.Address
	signerKeyB  string // private key authorized to submit registerIntent on chain B
	gasLimit    uint64

	// ensureSynced forces the root-sync coordinator to catch up the
	// destination chain's recorded commitment root before a proof is
	// generated against it (spec §4.3 steps 3-4, "ensure_root_synced").
	// nil disables the check, which only the unit tests do.
	ensureSynced func(context.Context) error

	pollInterval time.Duration
	concurrency  int64
	sem          *semaphore.Weighted

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	logger *log.Logger
}

// RegistrationConfig configures a RegistrationWorker.
type RegistrationConfig struct {
	PollInterval time.Duration // default 10s
	Concurrency  int64         // default 5
	GasLimit     uint64
	Logger       *log.Logger
}

// DefaultRegistrationConfig returns the spec's default timings.
func DefaultRegistrationConfig() *RegistrationConfig {
	return &RegistrationConfig{
		PollInterval: 10 * time.Second,
		Concurrency:  5,
		GasLimit:     500_000,
		Logger:       log.New(log.Writer(), "[RegistrationWorker] ", log.LstdFlags),
	}
}

// NewRegistrationWorker constructs a worker that reads chain A's commitment
// tree and registers onto chain B's settlement contract. clientA/clientB
// and settlementA/settlementB are directional: callers that also need the
// mirror direction (B committing onto A) run a second worker instance.
// ensureSynced, when non-nil, is called before every registration attempt
// to force the relevant root-sync direction to catch up; pass the
// coordinator's bound SyncNow for the direction this worker instance drives.
func NewRegistrationWorker(intents *database.IntentRepository, trees *merkle.Manager, clientA, clientB *ethereum.Client, settlementA, settlementB common.Address, signerKeyB string, cfg *RegistrationConfig, ensureSynced func(context.Context) error) *RegistrationWorker {
	if cfg == nil {
		cfg = DefaultRegistrationConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[RegistrationWorker] ", log.LstdFlags)
	}
	return &RegistrationWorker{
		intents:      intents,
		trees:        trees,
		clientA:      clientA,
		clientB:      clientB,
		settlementA:  settlementA,
		settlementB:  settlementB,
		signerKeyB:   signerKeyB,
		gasLimit:     cfg.GasLimit,
		ensureSynced: ensureSynced,
		pollInterval: cfg.PollInterval,
		concurrency:  cfg.Concurrency,
		sem:          semaphore.NewWeighted(cfg.Concurrency),
		logger:       cfg.Logger,
	}
}

// Start begins the poll loop.
func (w *RegistrationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)

	w.logger.Printf("Started (polling every %s, concurrency %d)", w.pollInterval, w.concurrency)
	return nil
}

// Stop halts the poll loop and waits for in-flight registrations to drain.
func (w *RegistrationWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	close(w.stopCh)
	w.running = false
	w.mu.Unlock()

	<-w.doneCh
	w.logger.Println("Stopped")
	return nil
}

func (w *RegistrationWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *RegistrationWorker) pollOnce(ctx context.Context) {
	pending, err := w.intents.ListByStatus(ctx, "committed", 100)
	if err != nil {
		w.logger.Printf("failed to list committed intents: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, intent := range pending {
		if err := w.sem.Acquire(ctx, 1); err != nil {
			return
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer w.sem.Release(1)
			if err := w.registerWithRetry(ctx, id); err != nil {
				logAttemptFailure(w.logger, "registration_worker", "register", id, err)
			}
		}(intent.ID)
	}
	wg.Wait()
}

// registerWithRetry attempts registration up to len(backoffSchedule)+1
// times, sleeping the fixed schedule between attempts.
func (w *RegistrationWorker) registerWithRetry(ctx context.Context, intentID string) error {
	var lastErr error
	for attempt := 0; attempt <= len(backoffSchedule); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffSchedule[attempt-1]):
			}
		}
		err := w.registerOnce(ctx, intentID)
		if err == nil {
			return nil
		}
		lastErr = err
		if !relayererr.IsRetriable(err) {
			return err
		}
	}
	return fmt.Errorf("registration exhausted retries for %s: %w", intentID, lastErr)
}

// registerOnce performs a single registration attempt: it loads the intent,
// checks for an already-completed registration (idempotent recovery), ensures
// the destination's recorded commitment root is caught up, finds the
// intent's leaf index in the source commitment tree, generates an inclusion
// proof, simulates the send, and submits registerIntent on the destination
// chain (spec §4.3 steps 2-9).
func (w *RegistrationWorker) registerOnce(ctx context.Context, intentID string) error {
	intent, err := w.intents.Get(ctx, intentID)
	if err != nil {
		return relayererr.New(relayererr.KindTransaction, false, err)
	}
	if intent.Status != "committed" {
		return nil // already progressed past this stage, or not there yet
	}

	var id, commitment [32]byte
	copy(id[:], common.FromHex(intent.ID))
	copy(commitment[:], common.FromHex(intent.Commitment))

	// Step 2: proactive idempotent pre-check. A prior attempt may have
	// already registered this intent on-chain even though the local status
	// still reads "committed" (e.g. the process crashed after sending but
	// before persisting dest_registration_txid) — a cheap read catches this
	// before wasting a real send.
	existing, err := w.clientB.GetIntentParams(ctx, w.settlementB, id)
	if err != nil {
		return relayererr.Transaction("check existing registration for %s: %v", intentID, err)
	}
	if existing.Exists {
		if err := w.intents.UpdateStatus(ctx, intentID, "registered", "", ""); err != nil {
			return err
		}
		metrics.RecordTransition("committed", "registered")
		return nil
	}

	if !intent.CommitmentLeafIndex.Valid {
		return relayererr.Resource("intent %s has no recorded commitment leaf index yet", intentID)
	}

	// Steps 3-4: ensure_root_synced. Proofs below are only valid against a
	// source root the destination contract actually has on record.
	if w.ensureSynced != nil {
		if err := w.ensureSynced(ctx); err != nil {
			return relayererr.SyncGap("commitment root not yet synced for %s: %v", intentID, err)
		}
	}

	key := merkle.Key{Chain: merkle.Chain(w.clientA.Tag), Kind: merkle.KindCommitments}
	tree, err := w.trees.Tree(key)
	if err != nil {
		return relayererr.Integrity("resolve commitment tree: %v", err)
	}
	leafIndex := int(intent.CommitmentLeafIndex.Int64)
	proof, err := tree.GenerateProof(leafIndex)
	if err != nil {
		return relayererr.Integrity("generate inclusion proof for %s: %v", intentID, err)
	}

	srcAmount, ok := new(big.Int).SetString(intent.SourceAmount, 10)
	if !ok {
		return relayererr.Input("invalid source amount %q for intent %s", intent.SourceAmount, intentID)
	}
	srcChainID := w.clientA.GetChainID()
	deadline := big.NewInt(intent.Deadline)
	tokenAddr := common.HexToAddress(intent.SourceToken)

	siblings := make([][32]byte, len(proof.Siblings))
	copy(siblings, proof.Siblings)

	fromB, err := ethereum.GetPublicAddress(w.signerKeyB)
	if err != nil {
		return relayererr.Input("derive chain B signer address: %v", err)
	}

	// Step 9: simulate before sending. A revert here (stale root, already
	// registered, bad proof) is caught by an eth_call instead of a real tx.
	if err := w.clientB.SimulateRegisterIntent(ctx, w.settlementB, fromB,
		id, commitment, tokenAddr, srcAmount, srcChainID, deadline, proof.Root, siblings, big.NewInt(int64(leafIndex))); err != nil {
		if isAlreadyDone(err) {
			if err := w.intents.UpdateStatus(ctx, intentID, "registered", "", ""); err != nil {
				return err
			}
			metrics.RecordTransition("committed", "registered")
			return nil
		}
		return relayererr.Simulation("simulate registerIntent for %s: %v", intentID, err)
	}

	result, err := w.clientB.RegisterIntent(ctx, w.settlementB, w.signerKeyB, w.gasLimit,
		id, commitment, tokenAddr, srcAmount, srcChainID, deadline, proof.Root, siblings, big.NewInt(int64(leafIndex)))
	if err != nil {
		if isAlreadyDone(err) {
			if err := w.intents.UpdateStatus(ctx, intentID, "registered", "", ""); err != nil {
				return err
			}
			metrics.RecordTransition("committed", "registered")
			return nil
		}
		return relayererr.Transaction("registerIntent for %s: %v", intentID, err)
	}

	if err := w.intents.UpdateStatus(ctx, intentID, "registered", "dest_registration_txid", result.TxHash); err != nil {
		return err
	}
	metrics.RecordTransition("committed", "registered")
	return nil
}
