package solver

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/intentbridge/relayer/pkg/ethereum"
	"github.com/intentbridge/relayer/pkg/metrics"
	"github.com/intentbridge/relayer/pkg/relayererr"
	"github.com/intentbridge/relayer/pkg/token"
	"golang.org/x/time/rate"
)

// defaultRPCRateLimit caps how many RPC calls per second the watcher issues
// against a single chain's provider, so a burst of registrations doesn't
// trip the provider's own rate limiting.
const defaultRPCRateLimit = 5

// ChainWatch bundles everything the Watcher needs to tail one chain's
// settlement contract for newly registered intents.
type ChainWatch struct {
	ChainTag   string // "A" or "B", matches database.Intent.SourceChain/DestChain
	Client     *ethereum.Client
	Settlement common.Address
	ABI        abi.ABI
	Tokens     *token.Table
	Executor   *Executor
	Gate       *CapitalGate
	Limiter    *rate.Limiter // paces RPC calls to this chain's provider; nil uses the watcher default

	lastBlock uint64
}

func (cw *ChainWatch) limiter() *rate.Limiter {
	if cw.Limiter == nil {
		cw.Limiter = rate.NewLimiter(rate.Limit(defaultRPCRateLimit), defaultRPCRateLimit)
	}
	return cw.Limiter
}

// WatcherConfig controls the watcher's poll cadence and fill gating.
type WatcherConfig struct {
	PollInterval time.Duration
	BlockStep    uint64 // max block range scanned per tick, bounds RPC response size
	EvaluatorCfg EvaluatorConfig

	// SourceConfirmationsRequired is how many blocks a registration event
	// needs before a candidate is evaluated (spec §6
	// "source_confirmations_required", spec §4.6 step 4).
	SourceConfirmationsRequired uint64
	// ConfirmationTimeout bounds how long handleCandidate polls for
	// SourceConfirmationsRequired before giving up (spec §4.6 "timeout
	// after 60s of polling").
	ConfirmationTimeout time.Duration
	// MaxIntentAge is the hard ceiling past which a candidate is refused
	// regardless of profitability (spec §6 "max_intent_age_secs").
	MaxIntentAge time.Duration
	// MaxGasPriceGwei caps the destination chain's current gas price a
	// fill will be attempted under (spec §6 "max_gas_price_gwei"); 0
	// disables the cap.
	MaxGasPriceGwei int64
	// DeadlineEpsilon is the minimum slack an intent's on-chain deadline
	// must still have over "now" for the watcher to bother filling it
	// (spec §4.6 step 3, decode and enforce deadline).
	DeadlineEpsilon time.Duration
	// SettlementFeeBps is the relayer fee basis points used to compute
	// fee_amount (spec §4.6, default 200).
	SettlementFeeBps int
}

// DefaultWatcherConfig returns the spec's defaults (spec §6 "Solver").
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{
		PollInterval:                10 * time.Second,
		BlockStep:                   2000,
		EvaluatorCfg:                DefaultEvaluatorConfig(),
		SourceConfirmationsRequired: 2,
		ConfirmationTimeout:         60 * time.Second,
		MaxIntentAge:                1 * time.Hour,
		MaxGasPriceGwei:             100,
		DeadlineEpsilon:             30 * time.Second,
		SettlementFeeBps:            DefaultSettlementFeeBps,
	}
}

// Watcher tails IntentRegistered events on every configured chain, scores
// each candidate, and drives qualifying ones through the Executor. Grounded
// on the teacher's confirmation_tracker poll loop, generalized to fan out
// across an arbitrary number of watched chains instead of a single queue.
type Watcher struct {
	mu        sync.Mutex
	chains    []*ChainWatch
	feed      token.PriceFeed
	processed *ProcessedSet
	cfg       *WatcherConfig
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	logger    *log.Logger
}

// NewWatcher constructs a Watcher over the given chains, sharing one
// ProcessedSet and price feed across all of them (an intent is only ever
// registered on one chain, so there is no cross-chain collision risk in
// sharing the dedup set).
func NewWatcher(chains []*ChainWatch, feed token.PriceFeed, cfg *WatcherConfig) *Watcher {
	if cfg == nil {
		cfg = DefaultWatcherConfig()
	}
	return &Watcher{
		chains:    chains,
		feed:      feed,
		processed: NewProcessedSet(),
		cfg:       cfg,
		logger:    log.New(os.Stdout, "[solver-watcher] ", log.LstdFlags),
	}
}

// Start begins the poll loop in a background goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("solver: watcher already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.run(ctx)
	return nil
}

// Stop signals the poll loop to exit and waits for it to finish.
func (w *Watcher) Stop() error {
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

func (w *Watcher) run(ctx context.Context) {
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
			for _, cw := range w.chains {
				if err := w.pollChain(ctx, cw); err != nil {
					w.logger.Printf("poll chain %s: %v", cw.ChainTag, err)
				}
			}
		}
	}
}

func (w *Watcher) pollChain(ctx context.Context, cw *ChainWatch) error {
	if err := cw.limiter().Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	latest, err := cw.Client.GetLatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}
	if cw.lastBlock == 0 {
		// first tick: start from one step back rather than genesis, so a
		// freshly started solver doesn't replay the chain's full history.
		if uint64(latest) > w.cfg.BlockStep {
			cw.lastBlock = uint64(latest) - w.cfg.BlockStep
		}
	}
	if uint64(latest) <= cw.lastBlock {
		return nil
	}

	toBlock := cw.lastBlock + w.cfg.BlockStep
	if toBlock > uint64(latest) {
		toBlock = uint64(latest)
	}

	if err := cw.limiter().Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	logs, err := cw.Client.ScanLogs(ctx, cw.Settlement, ethereum.EventIntentRegistered, cw.lastBlock+1, toBlock)
	if err != nil {
		return fmt.Errorf("scan IntentRegistered: %w", err)
	}
	cw.lastBlock = toBlock

	for _, lg := range logs {
		w.handleCandidate(ctx, cw, lg)
	}
	return nil
}

// waitForConfirmations polls cw's latest block until txBlock has accrued
// required confirmations, or cfg.ConfirmationTimeout elapses (spec §4.6
// step 4, "wait for k confirmations on the source chain... timeout after
// 60s of polling").
func (w *Watcher) waitForConfirmations(ctx context.Context, cw *ChainWatch, txBlock, required uint64, timeout time.Duration) (uint64, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		latest, err := cw.Client.GetLatestBlockNumber(ctx)
		if err != nil {
			return 0, fmt.Errorf("get latest block: %w", err)
		}
		confirmations := ethereum.Confirmations(uint64(latest), txBlock)
		if confirmations >= required {
			return confirmations, nil
		}
		if time.Now().After(deadline) {
			return confirmations, fmt.Errorf("timed out after %s waiting for %d confirmations (have %d)", timeout, required, confirmations)
		}
		select {
		case <-ctx.Done():
			return confirmations, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) handleCandidate(ctx context.Context, cw *ChainWatch, lg ethereum.Log) {
	intentID := common.BytesToHash(lg.IntentID[:]).Hex()

	if !w.processed.TryAcquire(intentID) {
		return
	}
	succeeded := false
	defer func() {
		if succeeded {
			w.processed.Release(intentID)
		} else {
			w.processed.MarkFailed(intentID)
		}
	}()

	fields, err := ethereum.DecodeEventData(cw.ABI, ethereum.EventIntentRegistered, lg.Data)
	if err != nil {
		w.logger.Printf("decode IntentRegistered for %s: %v", intentID, err)
		return
	}
	tokenAddr, _ := fields["token"].(common.Address)
	amount, _ := fields["amount"].(*big.Int)
	srcChain, _ := fields["srcChain"].(*big.Int)
	deadline, _ := fields["deadline"].(*big.Int)
	if amount == nil || srcChain == nil || deadline == nil {
		w.logger.Printf("IntentRegistered for %s missing decoded fields", intentID)
		return
	}

	// Step 3: decode and enforce deadline before doing anything else with
	// this candidate.
	if time.Unix(deadline.Int64(), 0).Before(time.Now().Add(w.cfg.DeadlineEpsilon)) {
		w.logger.Printf("intent %s deadline too close or passed, skipping", intentID)
		return
	}

	// Step 4: wait for the source event to accrue enough confirmations
	// that it won't be reorged out from under a subsequent fill.
	confirmations, err := w.waitForConfirmations(ctx, cw, lg.BlockNumber, w.cfg.SourceConfirmationsRequired, w.cfg.ConfirmationTimeout)
	if err != nil {
		w.logger.Printf("confirmation wait for intent %s: %v", intentID, err)
		return
	}

	// Cross-check the decoded event against the settlement contract's own
	// view before spending any further evaluation effort on it.
	params, err := cw.Client.GetIntentParams(ctx, cw.Settlement, lg.IntentID)
	if err != nil {
		w.logger.Printf("getIntentParams cross-check for %s: %v", intentID, err)
		return
	}
	if !params.Exists || params.Token != tokenAddr || params.Amount.Cmp(amount) != 0 {
		w.logger.Printf("intent %s failed on-chain cross-check (exists=%v)", intentID, params.Exists)
		return
	}

	symbol, err := cw.Tokens.SymbolForAddress(cw.ChainTag, tokenAddr)
	if err != nil {
		w.logger.Printf("unrecognized token for intent %s: %v", intentID, err)
		return
	}
	isNative := symbol == token.ETH || symbol == token.MNT

	valueUSD, err := USDValueOf(w.feed, amount, symbol)
	if err != nil {
		w.logger.Printf("price lookup for intent %s: %v", intentID, err)
		return
	}

	_, blockTime, err := cw.Client.GetBlockInfo(ctx, int64(lg.BlockNumber))
	if err != nil {
		w.logger.Printf("get block info for intent %s: %v", intentID, err)
		return
	}
	age := time.Since(blockTime)
	if w.cfg.MaxIntentAge > 0 && age > w.cfg.MaxIntentAge {
		w.logger.Printf("intent %s exceeds max age (%s), skipping", intentID, age)
		return
	}

	gasPrice, err := cw.Client.GetGasPrice(ctx)
	if err != nil {
		w.logger.Printf("get gas price for intent %s: %v", intentID, err)
		return
	}
	if w.cfg.MaxGasPriceGwei > 0 {
		capWei := new(big.Int).Mul(big.NewInt(w.cfg.MaxGasPriceGwei), big.NewInt(1_000_000_000))
		if gasPrice.Cmp(capWei) > 0 {
			w.logger.Printf("gas price above cap for intent %s (%s > %s wei), skipping", intentID, gasPrice, capWei)
			return
		}
	}

	if !cw.Gate.Reserve(symbol, amount) {
		w.logger.Printf("capital gate declined intent %s (symbol=%s amount=%s)", intentID, symbol, amount)
		metrics.FillsAttemptedTotal.WithLabelValues("gated").Inc()
		return
	}
	defer cw.Gate.Release(symbol, amount)

	feeUSD, err := USDValueOf(w.feed, FeeAmount(amount, w.cfg.SettlementFeeBps), symbol)
	if err != nil {
		w.logger.Printf("fee valuation for intent %s: %v", intentID, err)
		return
	}
	nativeSymbol, err := cw.Tokens.SymbolForAddress(cw.ChainTag, common.Address{})
	if err != nil {
		w.logger.Printf("native symbol lookup for chain %s: %v", cw.ChainTag, err)
		return
	}
	gasUSD, err := USDValueOf(w.feed, GasEstimate(BaseGas(isNative), gasPrice), nativeSymbol)
	if err != nil {
		w.logger.Printf("gas valuation for intent %s: %v", intentID, err)
		return
	}

	committed, capPerToken := cw.Gate.CapacityUsed(symbol)
	riskScore := RiskScore(age, committed, capPerToken, confirmations, w.cfg.SourceConfirmationsRequired)

	score := Evaluate(Quote{IntentValueUSD: valueUSD, FeeUSD: feeUSD, GasUSD: gasUSD, RiskScore: riskScore})
	if !score.MeetsThreshold(w.cfg.EvaluatorCfg) {
		metrics.FillsAttemptedTotal.WithLabelValues("gated").Inc()
		return
	}

	candidate := Candidate{
		IntentID:   intentID,
		Token:      symbol,
		TokenAddr:  tokenAddr,
		Amount:     amount,
		SrcChain:   srcChain,
		Commitment: lg.Commitment,
		IsNative:   isNative,
	}

	if _, err := cw.Executor.Fill(ctx, candidate); err != nil {
		w.logger.Printf("fill intent %s: %v", intentID, err)
		outcome := "failed"
		if relayererr.KindOf(err) == relayererr.KindSimulation {
			outcome = "lost_race"
		}
		metrics.FillsAttemptedTotal.WithLabelValues(outcome).Inc()
		return
	}
	metrics.FillsAttemptedTotal.WithLabelValues("filled").Inc()
	succeeded = true
}
