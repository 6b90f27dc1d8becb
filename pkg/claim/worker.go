package claim

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/intentbridge/relayer/pkg/database"
	"github.com/intentbridge/relayer/pkg/ethereum"
	"github.com/intentbridge/relayer/pkg/metrics"
	"github.com/intentbridge/relayer/pkg/relayererr"
	"golang.org/x/sync/semaphore"
)

var backoffSchedule = []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}

var alreadyClaimedMarkers = []string{
	"already claimed",
	"already processed",
	"claim already submitted",
}

func isAlreadyClaimed(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range alreadyClaimedMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Config controls the claim worker's poll cadence and concurrency.
type Config struct {
	PollInterval time.Duration
	Concurrency  int64
	GasLimit     uint64
}

// DefaultConfig returns the claim worker's defaults, matching the other
// lifecycle workers' cadence (spec §4.5 "triggered on every SolverPaid").
func DefaultConfig() *Config {
	return &Config{PollInterval: 10 * time.Second, Concurrency: 3, GasLimit: 400_000}
}

// Worker polls for intents in status "solver_paid" and drives each through
// decrypt -> decode -> claimWithdrawal -> "user_claimed", following the
// same ticker/stopCh/doneCh poll-loop shape as the registration and
// settlement workers.
type Worker struct {
	mu         sync.Mutex
	intents    *database.IntentRepository
	privacy    *database.PrivacyParamsRepository
	client     *ethereum.Client
	settlement common.Address
	signerKey  string
	dec        Decrypter
	cfg        *Config
	sem        *semaphore.Weighted
	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	logger     *log.Logger
}

// NewWorker constructs a claim Worker bound to one destination chain's
// settlement contract.
func NewWorker(intents *database.IntentRepository, privacy *database.PrivacyParamsRepository, client *ethereum.Client, settlement common.Address, signerKey string, dec Decrypter, cfg *Config) *Worker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Worker{
		intents:    intents,
		privacy:    privacy,
		client:     client,
		settlement: settlement,
		signerKey:  signerKey,
		dec:        dec,
		cfg:        cfg,
		sem:        semaphore.NewWeighted(cfg.Concurrency),
		logger:     log.New(os.Stdout, "[claim-worker] ", log.LstdFlags),
	}
}

// Start begins the poll loop in a background goroutine.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("claim: worker already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.run(ctx)
	return nil
}

// Stop signals the poll loop to exit and waits for it to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

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

func (w *Worker) pollOnce(ctx context.Context) {
	intents, err := w.intents.ListByStatus(ctx, "solver_paid", 100)
	if err != nil {
		w.logger.Printf("list solver_paid intents: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, intent := range intents {
		if err := w.sem.Acquire(ctx, 1); err != nil {
			return
		}
		wg.Add(1)
		go func(intentID string) {
			defer wg.Done()
			defer w.sem.Release(1)
			if err := w.claimWithRetry(ctx, intentID); err != nil {
				w.logger.Printf("claim %s: %v", intentID, err)
				var tagged *relayererr.Error
				kind, retriable := "unknown", false
				if errors.As(err, &tagged) {
					kind, retriable = string(tagged.Kind), tagged.Retriable
				}
				metrics.RecordError("claim_worker", kind, retriable, time.Now().Unix())
			}
		}(intent.ID)
	}
	wg.Wait()
}

func (w *Worker) claimWithRetry(ctx context.Context, intentID string) error {
	var lastErr error
	for attempt := 0; attempt <= len(backoffSchedule); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffSchedule[attempt-1]):
			}
		}
		err := w.claimOnce(ctx, intentID)
		if err == nil {
			return nil
		}
		lastErr = err
		if !relayererr.IsRetriable(err) {
			return err
		}
	}
	return lastErr
}

func (w *Worker) claimOnce(ctx context.Context, intentID string) error {
	intent, err := w.intents.Get(ctx, intentID)
	if err != nil {
		return relayererr.New(relayererr.KindTransaction, false, err)
	}
	if intent.Status != "solver_paid" {
		return nil
	}

	params, err := w.privacy.Get(ctx, intentID)
	if err != nil {
		return relayererr.Integrity("missing privacy params for claimable intent %s: %v", intentID, err)
	}
	if !params.Nullifier.Valid || !params.Secret.Valid || !params.ClaimSignature.Valid || !params.Recipient.Valid {
		return relayererr.Integrity("incomplete privacy params for claimable intent %s", intentID)
	}

	decoded, err := Decode(w.dec,
		common.FromHex(params.Nullifier.String),
		common.FromHex(params.Secret.String),
		common.HexToAddress(params.Recipient.String),
		common.FromHex(params.ClaimSignature.String),
	)
	if err != nil {
		return relayererr.Decryption("decode claim for %s: %v", intentID, err)
	}

	var id [32]byte
	copy(id[:], common.FromHex(intentID))
	nullifierBytes := common.BytesToHash(decoded.Nullifier.Bytes())

	result, err := w.client.ClaimWithdrawal(ctx, w.settlement, w.signerKey, w.cfg.GasLimit,
		id, nullifierBytes, decoded.Recipient, decoded.Secret, decoded.ClaimAuth)
	if err != nil {
		if isAlreadyClaimed(err) {
			if err := w.intents.UpdateStatus(ctx, intentID, "user_claimed", "", ""); err != nil {
				return err
			}
			metrics.RecordTransition("solver_paid", "user_claimed")
			return nil
		}
		return relayererr.Transaction("claimWithdrawal for %s: %v", intentID, err)
	}

	if err := w.intents.UpdateStatus(ctx, intentID, "user_claimed", "", result.TxHash); err != nil {
		return err
	}
	metrics.RecordTransition("solver_paid", "user_claimed")
	return nil
}
