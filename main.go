package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/intentbridge/relayer/pkg/claim"
	"github.com/intentbridge/relayer/pkg/config"
	"github.com/intentbridge/relayer/pkg/database"
	"github.com/intentbridge/relayer/pkg/ethereum"
	"github.com/intentbridge/relayer/pkg/merkle"
	"github.com/intentbridge/relayer/pkg/metrics"
	"github.com/intentbridge/relayer/pkg/rootsync"
	"github.com/intentbridge/relayer/pkg/solver"
	"github.com/intentbridge/relayer/pkg/token"
	"github.com/intentbridge/relayer/pkg/workers"
)

// HealthStatus tracks the connectivity of every external dependency this
// process talks to, surfaced at /health for an operator or orchestrator
// liveness probe.
type HealthStatus struct {
	Status        string `json:"status"` // "ok", "degraded", "error"
	Database      string `json:"database"`
	ChainA        string `json:"chain_a"`
	ChainB        string `json:"chain_b"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	startTime     time.Time
	mu            sync.RWMutex
}

var healthStatus = &HealthStatus{
	Status:    "starting",
	Database:  "unknown",
	ChainA:    "unknown",
	ChainB:    "unknown",
	startTime: time.Now(),
}

func (h *HealthStatus) set(field *string, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*field = value
	if h.Database == "connected" && h.ChainA == "connected" && h.ChainB == "connected" {
		h.Status = "ok"
	} else if h.ChainA == "disconnected" || h.ChainB == "disconnected" {
		h.Status = "error"
	} else {
		h.Status = "degraded"
	}
}

func (h *HealthStatus) snapshot() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := *h
	out.UptimeSeconds = int64(time.Since(h.startTime).Seconds())
	return out
}

// exit codes per spec §6: 0 clean shutdown, 1 configuration error, 2 chain
// adapter error.
const (
	exitOK           = 0
	exitConfigError  = 1
	exitChainAdapter = 2
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("Starting intent bridge relayer")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("config validation failed: %v", err)
		os.Exit(exitConfigError)
	}

	log.Println("Connecting to database...")
	dbClient, err := database.NewClient(cfg, database.WithLogger(
		log.New(log.Writer(), "[Database] ", log.LstdFlags),
	))
	if err != nil {
		log.Printf("database connection failed: %v", err)
		os.Exit(exitConfigError)
	}
	healthStatus.set(&healthStatus.Database, "disconnected")
	if err := dbClient.MigrateUp(context.Background()); err != nil {
		log.Printf("migration failed: %v", err)
	}
	healthStatus.set(&healthStatus.Database, "connected")
	log.Println("Connected to database")

	intents := database.NewIntentRepository(dbClient)
	privacy := database.NewPrivacyParamsRepository(dbClient)
	rootSyncRepo := database.NewRootSyncRepository(dbClient)
	_ = database.NewEventRepository(dbClient) // populated by the external indexer, not this process
	_ = database.NewMerkleRepository(dbClient)
	_ = database.NewChainTxLogRepository(dbClient)

	log.Println("Connecting to chain A...")
	clientA, err := ethereum.NewClient("A", cfg.ChainA.RPCURL, cfg.ChainA.ChainID)
	if err != nil {
		log.Printf("chain A connection failed: %v", err)
		os.Exit(exitChainAdapter)
	}
	healthStatus.set(&healthStatus.ChainA, "connected")

	log.Println("Connecting to chain B...")
	clientB, err := ethereum.NewClient("B", cfg.ChainB.RPCURL, cfg.ChainB.ChainID)
	if err != nil {
		log.Printf("chain B connection failed: %v", err)
		os.Exit(exitChainAdapter)
	}
	healthStatus.set(&healthStatus.ChainB, "connected")
	log.Println("Connected to both chains")

	if cfg.Solver.PriorityFeeGwei > 0 {
		priorityFeeWei := new(big.Int).Mul(big.NewInt(cfg.Solver.PriorityFeeGwei), big.NewInt(1_000_000_000))
		clientA.PriorityFeeWei = priorityFeeWei
		clientB.PriorityFeeWei = priorityFeeWei
	}

	intentPoolA := common.HexToAddress(cfg.ChainA.IntentPoolAddress)
	settlementA := common.HexToAddress(cfg.ChainA.SettlementAddress)
	intentPoolB := common.HexToAddress(cfg.ChainB.IntentPoolAddress)
	settlementB := common.HexToAddress(cfg.ChainB.SettlementAddress)

	trees := merkle.NewManager()

	rootSyncCfg := rootsync.DefaultConfig()
	rootSyncCfg.Interval = cfg.RootSyncInterval
	rootSyncCfg.Timeout = cfg.RootSyncTimeout
	coordinator := rootsync.NewCoordinator(trees, clientA, clientB,
		rootsync.ChainTarget{ChainID: cfg.ChainA.ChainID, ContractAddr: settlementA, PrivateKeyHex: cfg.ChainA.PrivateKey, GasLimit: 500_000},
		rootsync.ChainTarget{ChainID: cfg.ChainB.ChainID, ContractAddr: settlementB, PrivateKeyHex: cfg.ChainB.PrivateKey, GasLimit: 500_000},
		rootSyncRepo, rootSyncCfg)

	// Bound SyncNow closures for each worker's direction (spec §4.3 steps
	// 3-4, §4.4 steps 2-3): each worker forces its own root-sync direction
	// to catch up before generating a proof, instead of relying solely on
	// the coordinator's independent 180s poll loop.
	syncRegAtoB := func(ctx context.Context) error { return coordinator.SyncNow(ctx, rootsync.DirAtoBCommitments) }
	syncRegBtoA := func(ctx context.Context) error { return coordinator.SyncNow(ctx, rootsync.DirBtoACommitments) }
	syncSettleBtoA := func(ctx context.Context) error { return coordinator.SyncNow(ctx, rootsync.DirBtoAFills) }
	syncSettleAtoB := func(ctx context.Context) error { return coordinator.SyncNow(ctx, rootsync.DirAtoBFills) }

	registrationCfg := workers.DefaultRegistrationConfig()
	registrationCfg.PollInterval = cfg.RegistrationPoll
	registrationAtoB := workers.NewRegistrationWorker(intents, trees, clientA, clientB, settlementA, settlementB, cfg.ChainB.PrivateKey, registrationCfg, syncRegAtoB)
	registrationBtoA := workers.NewRegistrationWorker(intents, trees, clientB, clientA, settlementB, settlementA, cfg.ChainA.PrivateKey, registrationCfg, syncRegBtoA)

	settlementCfg := workers.DefaultSettlementConfig()
	settlementCfg.PollInterval = cfg.SettlementPoll
	settlementBtoA := workers.NewSettlementWorker(intents, trees, clientA, clientB, intentPoolA, settlementB, cfg.ChainA.PrivateKey, settlementCfg, syncSettleBtoA)
	settlementAtoB := workers.NewSettlementWorker(intents, trees, clientB, clientA, intentPoolB, settlementA, cfg.ChainB.PrivateKey, settlementCfg, syncSettleAtoB)

	expiryA := workers.NewExpiryWorker(intents, clientA, intentPoolA, cfg.ChainA.PrivateKey, "A", nil)
	expiryB := workers.NewExpiryWorker(intents, clientB, intentPoolB, cfg.ChainB.PrivateKey, "B", nil)

	decrypter, err := claim.NewECIESDecrypter(cfg.RelayerECIESPrivateKey)
	if err != nil {
		log.Printf("load relayer ECIES key failed: %v", err)
		os.Exit(exitConfigError)
	}
	claimAtoB := claim.NewWorker(intents, privacy, clientB, settlementB, cfg.ChainB.PrivateKey, decrypter, nil)
	claimBtoA := claim.NewWorker(intents, privacy, clientA, settlementA, cfg.ChainA.PrivateKey, decrypter, nil)

	tokens := buildTokenTable(cfg)
	feed := token.NewStaticPriceFeed(nil)

	maxPerFill := toSymbolAmounts(cfg.Solver.MaxCapitalPerFill)
	minReserve := toSymbolAmounts(cfg.Solver.MinCapitalReserve)
	gate := solver.NewCapitalGate(cfg.Solver.MaxConcurrentFills, maxPerFill, minReserve)

	relayerAddrA, err := ethereum.GetPublicAddress(cfg.ChainA.PrivateKey)
	if err != nil {
		log.Printf("derive chain A solver address failed: %v", err)
		os.Exit(exitConfigError)
	}
	relayerAddrB, err := ethereum.GetPublicAddress(cfg.ChainB.PrivateKey)
	if err != nil {
		log.Printf("derive chain B solver address failed: %v", err)
		os.Exit(exitConfigError)
	}

	executorA := solver.NewExecutor(clientA, settlementA, cfg.ChainA.PrivateKey, 500_000, intents, relayerAddrA)
	executorB := solver.NewExecutor(clientB, settlementB, cfg.ChainB.PrivateKey, 500_000, intents, relayerAddrB)

	settlementABI, err := ethereum.SettlementABI()
	if err != nil {
		log.Printf("parse settlement ABI failed: %v", err)
		os.Exit(exitConfigError)
	}

	watcherCfg := solver.DefaultWatcherConfig()
	watcherCfg.EvaluatorCfg.MinProfitBps = cfg.Solver.MinProfitBps
	watcherCfg.SourceConfirmationsRequired = uint64(cfg.Solver.SourceConfirmationsRequired)
	watcherCfg.MaxIntentAge = time.Duration(cfg.Solver.MaxIntentAgeSecs) * time.Second
	watcherCfg.MaxGasPriceGwei = cfg.Solver.MaxGasPriceGwei
	watcher := solver.NewWatcher([]*solver.ChainWatch{
		{ChainTag: "A", Client: clientA, Settlement: settlementA, ABI: settlementABI, Tokens: tokens, Executor: executorA, Gate: gate},
		{ChainTag: "B", Client: clientB, Settlement: settlementB, ABI: settlementABI, Tokens: tokens, Executor: executorB, Gate: gate},
	}, feed, watcherCfg)

	fillTracker := solver.NewActiveFillTracker()
	monitorA := solver.NewMonitor(fillTracker, clientA)
	monitorB := solver.NewMonitor(fillTracker, clientB)

	ctx, cancel := context.WithCancel(context.Background())

	go runHealthChecks(ctx, clientA, clientB, cfg.Solver.HealthCheckIntervalSecs)
	go runBalanceChecks(ctx, clientA, clientB, relayerAddrA, relayerAddrB, cfg.Solver.BalanceCheckIntervalSecs)

	startables := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"root-sync coordinator", coordinator.Start},
		{"registration worker A->B", registrationAtoB.Start},
		{"registration worker B->A", registrationBtoA.Start},
		{"settlement worker B->A", settlementBtoA.Start},
		{"settlement worker A->B", settlementAtoB.Start},
		{"expiry worker A", expiryA.Start},
		{"expiry worker B", expiryB.Start},
		{"claim worker A->B", claimAtoB.Start},
		{"claim worker B->A", claimBtoA.Start},
		{"solver watcher", watcher.Start},
		{"solver monitor A", monitorA.Start},
		{"solver monitor B", monitorB.Start},
	}
	for _, s := range startables {
		if err := s.fn(ctx); err != nil {
			log.Fatalf("start %s: %v", s.name, err)
		}
		log.Printf("started %s", s.name)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		snap := healthStatus.snapshot()
		w.Header().Set("Content-Type", "application/json")
		if snap.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, `{"status":%q,"database":%q,"chain_a":%q,"chain_b":%q,"uptime_seconds":%d}`,
			snap.Status, snap.Database, snap.ChainA, snap.ChainB, snap.UptimeSeconds)
	})
	mux.HandleFunc("/health/bridge", func(w http.ResponseWriter, r *http.Request) {
		syncTypes := []string{
			string(rootsync.DirAtoBCommitments), string(rootsync.DirBtoACommitments),
			string(rootsync.DirAtoBFills), string(rootsync.DirBtoAFills),
		}
		status, err := dbClient.BridgeHealth(r.Context(), intents, rootSyncRepo, syncTypes, 2*cfg.RootSyncInterval)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"healthy":false,"error":%q}`, err.Error())
			return
		}
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("encode bridge health response: %v", err)
		}
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler: mux,
	}
	go func() {
		log.Printf("HTTP API listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	cancel()
	for _, s := range []interface{ Stop() error }{
		coordinator, registrationAtoB, registrationBtoA, settlementBtoA, settlementAtoB,
		expiryA, expiryB, claimAtoB, claimBtoA, watcher, monitorA, monitorB,
	} {
		if err := s.Stop(); err != nil {
			log.Printf("stop error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := dbClient.Close(); err != nil {
		log.Printf("database close error: %v", err)
	}

	log.Println("Stopped")
	os.Exit(exitOK)
}

// runHealthChecks re-verifies both chain RPC connections on a ticker,
// keeping /health accurate if an endpoint goes stale mid-run instead of
// only reflecting the state at startup (spec §6 "health_check_interval_secs").
func runHealthChecks(ctx context.Context, clientA, clientB *ethereum.Client, intervalSecs int) {
	if intervalSecs <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(intervalSecs) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := clientA.Health(ctx); err != nil {
				healthStatus.set(&healthStatus.ChainA, "error")
				log.Printf("chain A health check failed: %v", err)
			} else {
				healthStatus.set(&healthStatus.ChainA, "connected")
			}
			if err := clientB.Health(ctx); err != nil {
				healthStatus.set(&healthStatus.ChainB, "error")
				log.Printf("chain B health check failed: %v", err)
			} else {
				healthStatus.set(&healthStatus.ChainB, "connected")
			}
		}
	}
}

// runBalanceChecks polls the relayer's native balance on both chains,
// the only signal an operator has that a hot wallet needs topping up
// before it runs dry mid-fill (spec §6 "balance_check_interval_secs").
func runBalanceChecks(ctx context.Context, clientA, clientB *ethereum.Client, addrA, addrB common.Address, intervalSecs int) {
	if intervalSecs <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(intervalSecs) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reportBalance(ctx, clientA, addrA, "A")
			reportBalance(ctx, clientB, addrB, "B")
		}
	}
}

func reportBalance(ctx context.Context, client *ethereum.Client, addr common.Address, chainTag string) {
	bal, err := client.GetBalance(ctx, addr)
	if err != nil {
		log.Printf("chain %s balance check failed: %v", chainTag, err)
		return
	}
	weiFloat, _ := new(big.Float).SetInt(bal).Float64()
	metrics.RelayerNativeBalanceWei.WithLabelValues(chainTag).Set(weiFloat)
}

// buildTokenTable records every recognized token's address on both chains
// from the operator-supplied ETHEREUM_TOKEN_ADDRESSES / MANTLE_TOKEN_ADDRESSES
// maps (spec §4.7's closed token set). Chain A's native asset is ETH and
// chain B's is MNT; both are recorded as the zero address, the convention
// this module uses elsewhere to mean "native coin, not an ERC-20 contract".
func buildTokenTable(cfg *config.Config) *token.Table {
	t := token.NewTable()
	t.Set("A", token.ETH, common.Address{})
	t.Set("B", token.MNT, common.Address{})
	setChainTokenAddresses(t, "A", cfg.ChainA.TokenAddresses)
	setChainTokenAddresses(t, "B", cfg.ChainB.TokenAddresses)
	return t
}

func setChainTokenAddresses(t *token.Table, chain string, addrs map[string]string) {
	for symbol, addr := range addrs {
		if !common.IsHexAddress(addr) {
			log.Printf("token table: ignoring invalid address %q for %s on chain %s", addr, symbol, chain)
			continue
		}
		t.Set(chain, token.Symbol(symbol), common.HexToAddress(addr))
	}
}

// toSymbolAmounts converts a config-level string-keyed amount map into the
// token.Symbol-keyed *big.Int map the capital gate expects.
func toSymbolAmounts(in map[string]int64) map[token.Symbol]*big.Int {
	out := make(map[token.Symbol]*big.Int, len(in))
	for symbol, amount := range in {
		out[token.Symbol(symbol)] = big.NewInt(amount)
	}
	return out
}
