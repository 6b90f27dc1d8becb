package workers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/semaphore"

	"github.com/intentbridge/relayer/pkg/database"
	"github.com/intentbridge/relayer/pkg/ethereum"
	"github.com/intentbridge/relayer/pkg/metrics"
	"github.com/intentbridge/relayer/pkg/relayererr"
)

// ExpiryWorker finds intents past their deadline that never reached a
// terminal state and refunds them on their source chain (spec §4.5
// "Expired -> Refunded" path). Source-chain refund target is whichever
// chain the intent's id was committed on; both an A-sourced and a
// B-sourced ExpiryWorker run side by side in practice, each scoped to one
// chain's intent pool.
type ExpiryWorker struct {
	mu sync.Mutex

	intents *database.IntentRepository

	client      *ethereum.Client
	intentPool  common.Address
	signerKey   string
	gasLimit    uint64
	sourceChain string // "A" or "B" — which chain this worker refunds on

	pollInterval time.Duration
	concurrency  int64
	sem          *semaphore.Weighted

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	logger *log.Logger
}

// ExpiryConfig configures an ExpiryWorker.
type ExpiryConfig struct {
	PollInterval time.Duration // default 30s
	Concurrency  int64         // default 3
	GasLimit     uint64
	Logger       *log.Logger
}

// DefaultExpiryConfig returns sensible defaults.
func DefaultExpiryConfig() *ExpiryConfig {
	return &ExpiryConfig{
		PollInterval: 30 * time.Second,
		Concurrency:  3,
		GasLimit:     300_000,
		Logger:       log.New(log.Writer(), "[ExpiryWorker] ", log.LstdFlags),
	}
}

// NewExpiryWorker constructs a worker refunding expired intents on one
// chain's intent pool contract.
func NewExpiryWorker(intents *database.IntentRepository, client *ethereum.Client, intentPool common.Address, signerKey, sourceChain string, cfg *ExpiryConfig) *ExpiryWorker {
	if cfg == nil {
		cfg = DefaultExpiryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[ExpiryWorker] ", log.LstdFlags)
	}
	return &ExpiryWorker{
		intents:      intents,
		client:       client,
		intentPool:   intentPool,
		signerKey:    signerKey,
		gasLimit:     cfg.GasLimit,
		sourceChain:  sourceChain,
		pollInterval: cfg.PollInterval,
		concurrency:  cfg.Concurrency,
		sem:          semaphore.NewWeighted(cfg.Concurrency),
		logger:       cfg.Logger,
	}
}

// Start begins the poll loop.
func (w *ExpiryWorker) Start(ctx context.Context) error {
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

	w.logger.Printf("Started (chain %s, polling every %s)", w.sourceChain, w.pollInterval)
	return nil
}

// Stop halts the poll loop.
func (w *ExpiryWorker) Stop() error {
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

func (w *ExpiryWorker) run(ctx context.Context) {
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

func (w *ExpiryWorker) pollOnce(ctx context.Context) {
	expirable, err := w.intents.ListExpirable(ctx, time.Now().Unix(), 100)
	if err != nil {
		w.logger.Printf("failed to list expirable intents: %v", err)
		return
	}
	if len(expirable) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, intent := range expirable {
		if intent.SourceChain != w.sourceChain {
			continue
		}
		if err := w.sem.Acquire(ctx, 1); err != nil {
			return
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer w.sem.Release(1)
			if err := w.refundWithRetry(ctx, id); err != nil {
				w.logger.Printf("refund %s: %v", id, err)
				recordWorkerError("expiry_worker", err)
			}
		}(intent.ID)
	}
	wg.Wait()
}

func (w *ExpiryWorker) refundWithRetry(ctx context.Context, intentID string) error {
	var lastErr error
	for attempt := 0; attempt <= len(backoffSchedule); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffSchedule[attempt-1]):
			}
		}
		err := w.refundOnce(ctx, intentID)
		if err == nil {
			return nil
		}
		lastErr = err
		if !relayererr.IsRetriable(err) {
			return err
		}
	}
	return fmt.Errorf("refund exhausted retries for %s: %w", intentID, lastErr)
}

func (w *ExpiryWorker) refundOnce(ctx context.Context, intentID string) error {
	intent, err := w.intents.Get(ctx, intentID)
	if err != nil {
		return relayererr.New(relayererr.KindTransaction, false, err)
	}
	if intent.Deadline > time.Now().Unix() {
		return nil // not actually expired (stale list read)
	}

	if intent.Status != "expired" {
		if err := w.intents.UpdateStatus(ctx, intentID, "expired", "", ""); err != nil {
			return relayererr.New(relayererr.KindTransaction, true, err)
		}
		metrics.RecordTransition(intent.Status, "expired")
	}

	var id [32]byte
	copy(id[:], common.FromHex(intent.ID))

	_, err = w.client.Refund(ctx, w.intentPool, w.signerKey, w.gasLimit, id)
	if err != nil && !isAlreadyDone(err) {
		return relayererr.Transaction("refund for %s: %v", intentID, err)
	}

	if err := w.intents.UpdateStatus(ctx, intentID, "refunded", "", ""); err != nil {
		return err
	}
	metrics.RecordTransition("expired", "refunded")
	return nil
}
