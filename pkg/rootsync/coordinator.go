// Package rootsync periodically pushes each chain's local Merkle roots
// onto its counterpart chain's contracts, so settlement and registration
// can verify inclusion proofs against an on-chain root (spec §4.2
// "Root-sync coordinator").
package rootsync

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/intentbridge/relayer/pkg/database"
	"github.com/intentbridge/relayer/pkg/ethereum"
	"github.com/intentbridge/relayer/pkg/merkle"
	"github.com/intentbridge/relayer/pkg/metrics"
)

// Direction identifies one of the four root pushes the coordinator drives.
type Direction string

const (
	// DirAtoBCommitments pushes chain A's commitment root onto chain B's
	// settlement contract, so B can verify registration proofs.
	DirAtoBCommitments Direction = "A.commitments->B"
	// DirBtoACommitments is the mirror of DirAtoBCommitments.
	DirBtoACommitments Direction = "B.commitments->A"
	// DirAtoBFills pushes chain A's fill root onto chain B's intent pool,
	// so B can verify settlement proofs.
	DirAtoBFills Direction = "A.fills->B"
	// DirBtoAFills is the mirror of DirAtoBFills.
	DirBtoAFills Direction = "B.fills->A"
)

var allDirections = []Direction{DirAtoBCommitments, DirBtoACommitments, DirAtoBFills, DirBtoAFills}

// ChainTarget names the destination contract and chain ID a root push
// writes to, plus the private key that signs it.
type ChainTarget struct {
	ChainID       int64
	ContractAddr  common.Address
	PrivateKeyHex string
	GasLimit      uint64
}

// Coordinator periodically reads local tree roots from a merkle.Manager and
// pushes any that changed onto the counterpart chain, following the
// teacher's ConfirmationTracker poll-loop shape (ticker + stopCh/doneCh).
type Coordinator struct {
	mu sync.RWMutex

	manager *merkle.Manager
	clientA *ethereum.Client
	clientB *ethereum.Client
	targetA ChainTarget // where chain B's pushes land (on A's contracts)
	targetB ChainTarget // where chain A's pushes land (on B's contracts)
	repo    *database.RootSyncRepository

	interval time.Duration
	timeout  time.Duration

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	logger *log.Logger
}

// Config holds coordinator configuration.
type Config struct {
	Interval time.Duration // default 180s
	Timeout  time.Duration // per sync_now call, default 120s
	Logger   *log.Logger
}

// DefaultConfig returns the spec's default timings.
func DefaultConfig() *Config {
	return &Config{
		Interval: 180 * time.Second,
		Timeout:  120 * time.Second,
		Logger:   log.New(log.Writer(), "[RootSync] ", log.LstdFlags),
	}
}

// NewCoordinator constructs a root-sync coordinator. clientA/targetA read
// and write chain A's contracts; clientB/targetB read and write chain B's.
func NewCoordinator(manager *merkle.Manager, clientA, clientB *ethereum.Client, targetA, targetB ChainTarget, repo *database.RootSyncRepository, cfg *Config) *Coordinator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[RootSync] ", log.LstdFlags)
	}
	return &Coordinator{
		manager:  manager,
		clientA:  clientA,
		clientB:  clientB,
		targetA:  targetA,
		targetB:  targetB,
		repo:     repo,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
}

// Start begins the periodic sync loop.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.running = true
	c.mu.Unlock()

	go c.run(ctx)

	c.logger.Printf("Started (syncing every %s, per-push timeout %s)", c.interval, c.timeout)
	return nil
}

// Stop halts the sync loop and waits for the in-flight round to finish.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	close(c.stopCh)
	c.running = false
	c.mu.Unlock()

	<-c.doneCh
	c.logger.Println("Stopped")
	return nil
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.syncAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.syncAll(ctx)
		}
	}
}

// syncAll runs every direction once, best-effort: a failure in one
// direction is logged and does not block the others.
func (c *Coordinator) syncAll(ctx context.Context) {
	for _, dir := range allDirections {
		if err := c.SyncNow(ctx, dir); err != nil {
			c.logger.Printf("sync %s failed: %v", dir, err)
		}
	}
}

// SyncNow forces an immediate, idempotent push for one direction, bounded
// by the coordinator's timeout. It never holds a lock across the RPC
// round-trip: the local root is read, the lock released, then the
// contract call is made. If the on-chain root already equals the local
// root, SyncNow is a no-op (idempotent per spec §4.2).
func (c *Coordinator) SyncNow(ctx context.Context, dir Direction) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	key, srcClient, dstClient, dstTarget, err := c.resolve(dir)
	if err != nil {
		return err
	}

	localRoot, err := c.manager.Root(key)
	if err != nil {
		return fmt.Errorf("rootsync: read local root for %s: %w", key, err)
	}

	onChainRoot, err := c.readOnChainRoot(ctx, dir, dstClient, dstTarget, srcClient.GetChainID())
	if err != nil {
		return fmt.Errorf("rootsync: read on-chain root for %s: %w", dir, err)
	}
	if onChainRoot == localRoot {
		metrics.RootSyncLagSeconds.WithLabelValues(string(dir)).Set(0)
		return nil
	}

	result, err := c.pushRoot(ctx, dir, dstClient, dstTarget, srcClient.GetChainID(), localRoot)
	if err != nil {
		return fmt.Errorf("rootsync: push %s: %w", dir, err)
	}
	metrics.RootSyncLagSeconds.WithLabelValues(string(dir)).Set(0)

	if c.repo != nil {
		rec := &database.RootSyncRecord{
			SyncType: string(dir),
			Root:     fmt.Sprintf("0x%x", localRoot),
			TxHash:   result.TxHash,
		}
		if err := c.repo.Create(ctx, rec); err != nil {
			c.logger.Printf("failed to record root sync %s: %v", dir, err)
		}
	}

	c.logger.Printf("synced %s root %x (tx %s)", dir, localRoot, result.TxHash)
	return nil
}

func (c *Coordinator) resolve(dir Direction) (key merkle.Key, srcClient, dstClient *ethereum.Client, dstTarget ChainTarget, err error) {
	switch dir {
	case DirAtoBCommitments:
		return merkle.Key{Chain: merkle.ChainA, Kind: merkle.KindCommitments}, c.clientA, c.clientB, c.targetB, nil
	case DirBtoACommitments:
		return merkle.Key{Chain: merkle.ChainB, Kind: merkle.KindCommitments}, c.clientB, c.clientA, c.targetA, nil
	case DirAtoBFills:
		return merkle.Key{Chain: merkle.ChainA, Kind: merkle.KindFills}, c.clientA, c.clientB, c.targetB, nil
	case DirBtoAFills:
		return merkle.Key{Chain: merkle.ChainB, Kind: merkle.KindFills}, c.clientB, c.clientA, c.targetA, nil
	default:
		return merkle.Key{}, nil, nil, ChainTarget{}, fmt.Errorf("rootsync: unknown direction %q", dir)
	}
}

// readOnChainRoot reads the counter-chain's recorded root for the
// commitment or fill tree, keyed by the source chain's ID.
func (c *Coordinator) readOnChainRoot(ctx context.Context, dir Direction, dstClient *ethereum.Client, dstTarget ChainTarget, srcChainID *big.Int) ([32]byte, error) {
	switch dir {
	case DirAtoBCommitments, DirBtoACommitments:
		return dstClient.SourceChainCommitmentRoot(ctx, dstTarget.ContractAddr, srcChainID)
	case DirAtoBFills, DirBtoAFills:
		return dstClient.DestChainFillRoot(ctx, dstTarget.ContractAddr, srcChainID)
	default:
		return [32]byte{}, fmt.Errorf("rootsync: unknown direction %q", dir)
	}
}

func (c *Coordinator) pushRoot(ctx context.Context, dir Direction, dstClient *ethereum.Client, dstTarget ChainTarget, srcChainID *big.Int, root [32]byte) (*ethereum.ContractCallResult, error) {
	switch dir {
	case DirAtoBCommitments, DirBtoACommitments:
		return dstClient.SyncSourceChainCommitmentRoot(ctx, dstTarget.ContractAddr, dstTarget.PrivateKeyHex, dstTarget.GasLimit, srcChainID, root)
	case DirAtoBFills, DirBtoAFills:
		return dstClient.SyncDestChainFillRoot(ctx, dstTarget.ContractAddr, dstTarget.PrivateKeyHex, dstTarget.GasLimit, srcChainID, root)
	default:
		return nil, fmt.Errorf("rootsync: unknown direction %q", dir)
	}
}
