package workers

import (
	"context"
	"fmt"
	"log"
	"math/big"
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

// SettlementWorker polls for Filled intents and settles each back on its
// source chain's intent pool contract, carrying a sorted-pair Keccak
// inclusion proof against the destination chain's fill tree (spec §4.4).
// Shaped identically to RegistrationWorker, which is itself shaped after
// the teacher's ConfirmationTracker poll loop.
type SettlementWorker struct {
	mu sync.Mutex

	intents *database.IntentRepository
	trees   *merkle.Manager

	clientA *ethereum.Client // source chain (where settlement lands)
	clientB *ethereum.Client // destination chain (where the fill happened)

	intentPoolA  common.Address
	settlementB  common.Address
	signerKeyA   string // private key authorized to submit settleIntent on chain A
	gasLimit     uint64

	// ensureSynced forces the root-sync coordinator to catch up the source
	// chain's recorded fill root before a proof is generated against it
	// (spec §4.4 steps 2-3). nil disables the check, which only the unit
	// tests do.
	ensureSynced func(context.Context) error

	pollInterval time.Duration
	concurrency  int64
	sem          *semaphore.Weighted

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	logger *log.Logger
}

// SettlementConfig configures a SettlementWorker.
type SettlementConfig struct {
	PollInterval time.Duration // default 15s
	Concurrency  int64         // default 3
	GasLimit     uint64
	Logger       *log.Logger
}

// DefaultSettlementConfig returns the spec's default timings.
func DefaultSettlementConfig() *SettlementConfig {
	return &SettlementConfig{
		PollInterval: 15 * time.Second,
		Concurrency:  3,
		GasLimit:     500_000,
		Logger:       log.New(log.Writer(), "[SettlementWorker] ", log.LstdFlags),
	}
}

// NewSettlementWorker constructs a worker that reads chain B's fill tree
// and settles onto chain A's intent pool contract. ensureSynced, when
// non-nil, is called before every settlement attempt to force the relevant
// root-sync direction to catch up; pass the coordinator's bound SyncNow for
// the direction this worker instance drives.
func NewSettlementWorker(intents *database.IntentRepository, trees *merkle.Manager, clientA, clientB *ethereum.Client, intentPoolA, settlementB common.Address, signerKeyA string, cfg *SettlementConfig, ensureSynced func(context.Context) error) *SettlementWorker {
	if cfg == nil {
		cfg = DefaultSettlementConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[SettlementWorker] ", log.LstdFlags)
	}
	return &SettlementWorker{
		intents:      intents,
		trees:        trees,
		clientA:      clientA,
		clientB:      clientB,
		intentPoolA:  intentPoolA,
		settlementB:  settlementB,
		signerKeyA:   signerKeyA,
		gasLimit:     cfg.GasLimit,
		ensureSynced: ensureSynced,
		pollInterval: cfg.PollInterval,
		concurrency:  cfg.Concurrency,
		sem:          semaphore.NewWeighted(cfg.Concurrency),
		logger:       cfg.Logger,
	}
}

// Start begins the poll loop.
func (w *SettlementWorker) Start(ctx context.Context) error {
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

// Stop halts the poll loop and waits for in-flight settlements to drain.
func (w *SettlementWorker) Stop() error {
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

func (w *SettlementWorker) run(ctx context.Context) {
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

func (w *SettlementWorker) pollOnce(ctx context.Context) {
	pending, err := w.intents.ListByStatus(ctx, "filled", 100)
	if err != nil {
		w.logger.Printf("failed to list filled intents: %v", err)
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
			if err := w.settleWithRetry(ctx, id); err != nil {
				logAttemptFailure(w.logger, "settlement_worker", "settle", id, err)
			}
		}(intent.ID)
	}
	wg.Wait()
}

func (w *SettlementWorker) settleWithRetry(ctx context.Context, intentID string) error {
	var lastErr error
	for attempt := 0; attempt <= len(backoffSchedule); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffSchedule[attempt-1]):
			}
		}
		err := w.settleOnce(ctx, intentID)
		if err == nil {
			return nil
		}
		lastErr = err
		if !relayererr.IsRetriable(err) {
			return err
		}
	}
	return fmt.Errorf("settlement exhausted retries for %s: %w", intentID, lastErr)
}

// settleOnce reads the solver's fill index on chain B's settlement
// contract, regenerates the fill tree's inclusion proof, and submits
// settleIntent on chain A's intent pool.
func (w *SettlementWorker) settleOnce(ctx context.Context, intentID string) error {
	intent, err := w.intents.Get(ctx, intentID)
	if err != nil {
		return relayererr.New(relayererr.KindTransaction, false, err)
	}
	if intent.Status != "filled" {
		return nil
	}
	if !intent.SolverAddress.Valid {
		return relayererr.Resource("intent %s has no recorded solver address yet", intentID)
	}

	// Steps 2-3: the fill root this worker will prove against was built on
	// the destination chain (clientB); ensure the source chain's recorded
	// counter-fill root has caught up before generating a proof against it.
	if w.ensureSynced != nil {
		if err := w.ensureSynced(ctx); err != nil {
			return relayererr.SyncGap("fill root not yet synced for %s: %v", intentID, err)
		}
	}

	key := merkle.Key{Chain: merkle.Chain(w.clientB.Tag), Kind: merkle.KindFills}
	tree, err := w.trees.Tree(key)
	if err != nil {
		return relayererr.Integrity("resolve fill tree: %v", err)
	}

	var id [32]byte
	copy(id[:], common.FromHex(intent.ID))

	fillIndexBig, err := w.clientB.GetFillIndex(ctx, w.settlementB, id)
	if err != nil {
		return relayererr.Transaction("read fill index for %s: %v", intentID, err)
	}
	leafIndex := int(fillIndexBig.Int64())

	proof, err := tree.GenerateProof(leafIndex)
	if err != nil {
		return relayererr.Integrity("generate fill inclusion proof for %s: %v", intentID, err)
	}

	siblings := make([][32]byte, len(proof.Siblings))
	copy(siblings, proof.Siblings)
	solver := common.HexToAddress(intent.SolverAddress.String)

	result, err := w.clientA.SettleIntent(ctx, w.intentPoolA, w.signerKeyA, w.gasLimit, id, solver, siblings, big.NewInt(int64(leafIndex)))
	if err != nil {
		if isAlreadyDone(err) {
			if err := w.intents.UpdateStatus(ctx, intentID, "solver_paid", "", ""); err != nil {
				return err
			}
			metrics.RecordTransition("filled", "solver_paid")
			return nil
		}
		return relayererr.Transaction("settleIntent for %s: %v", intentID, err)
	}

	if err := w.intents.UpdateStatus(ctx, intentID, "solver_paid", "source_complete_txid", result.TxHash); err != nil {
		return err
	}
	metrics.RecordTransition("filled", "solver_paid")
	return nil
}
