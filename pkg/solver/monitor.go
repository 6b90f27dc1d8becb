package solver

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/intentbridge/relayer/pkg/ethereum"
	"github.com/intentbridge/relayer/pkg/metrics"
)

// FillStatus is an active fill's lifecycle state, kept in memory only
// (spec §3 "Active fill") — never persisted, since the database's intent
// status is the durable source of truth.
type FillStatus string

const (
	FillPending   FillStatus = "Pending"
	FillConfirmed FillStatus = "Confirmed"
	FillClaimed   FillStatus = "Claimed"
	FillFailed    FillStatus = "Failed"
	FillExpired   FillStatus = "Expired"
)

// requiredConfirmations is how many blocks a fill transaction needs before
// it is promoted from Confirmed to Claimed (spec §4.6 "monitor loop... >= 6
// confirmations").
const requiredConfirmations = 6

// ActiveFill tracks one in-flight solver fill from submission through
// confirmation.
type ActiveFill struct {
	IntentID    string
	TxHash      string
	Amount      int64 // smallest-unit amount, kept as int64 for the in-memory tracker; database rows carry the precise string
	Token       string
	DestChain   string
	FilledAt    time.Time
	ConfirmedAt time.Time
	Status      FillStatus
	BlockNumber uint64
}

// ActiveFillTracker is the reader-writer-locked in-memory map of active
// fills (spec §5 "In-memory maps... guarded by reader-writer locks").
type ActiveFillTracker struct {
	mu    sync.RWMutex
	fills map[string]*ActiveFill // keyed by IntentID
}

// NewActiveFillTracker constructs an empty tracker.
func NewActiveFillTracker() *ActiveFillTracker {
	return &ActiveFillTracker{fills: make(map[string]*ActiveFill)}
}

// Add registers a freshly submitted fill as Pending.
func (t *ActiveFillTracker) Add(f *ActiveFill) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f.Status = FillPending
	t.fills[f.IntentID] = f
	metrics.ActiveFillsGauge.WithLabelValues(string(FillPending)).Inc()
}

// Get returns the tracked fill for an intent, if any.
func (t *ActiveFillTracker) Get(intentID string) (*ActiveFill, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.fills[intentID]
	return f, ok
}

// SetStatus updates a tracked fill's status in place.
func (t *ActiveFillTracker) SetStatus(intentID string, status FillStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.fills[intentID]; ok {
		prev := f.Status
		f.Status = status
		if status == FillConfirmed {
			f.ConfirmedAt = time.Now()
		}
		metrics.ActiveFillsGauge.WithLabelValues(string(prev)).Dec()
		metrics.ActiveFillsGauge.WithLabelValues(string(status)).Inc()
	}
}

// Remove drops a fill from the tracker, used once it has fully settled
// (Claimed) or been written off (Failed, Expired) and no longer needs
// polling.
func (t *ActiveFillTracker) Remove(intentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.fills[intentID]; ok {
		metrics.ActiveFillsGauge.WithLabelValues(string(f.Status)).Dec()
		delete(t.fills, intentID)
	}
}

// Snapshot returns a copy of every currently tracked fill in the given
// status, safe to range over without holding the tracker's lock.
func (t *ActiveFillTracker) Snapshot(status FillStatus) []*ActiveFill {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*ActiveFill, 0)
	for _, f := range t.fills {
		if f.Status == status {
			clone := *f
			out = append(out, &clone)
		}
	}
	return out
}

// Len reports how many fills are currently tracked, regardless of status.
func (t *ActiveFillTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.fills)
}

// Monitor promotes tracked fills through Pending -> Confirmed -> Claimed by
// polling transaction receipts and block confirmations, following the same
// ticker-driven poll loop shape as the registration/settlement workers.
type Monitor struct {
	mu       sync.Mutex
	tracker  *ActiveFillTracker
	client   *ethereum.Client
	interval time.Duration
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *log.Logger
}

// NewMonitor constructs a Monitor polling client for confirmations on the
// destination chain every 15 seconds (spec §4.6 default).
func NewMonitor(tracker *ActiveFillTracker, client *ethereum.Client) *Monitor {
	return &Monitor{
		tracker:  tracker,
		client:   client,
		interval: 15 * time.Second,
		logger:   log.New(os.Stdout, "[solver-monitor] ", log.LstdFlags),
	}
}

// Start begins the poll loop in a background goroutine.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("solver: monitor already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.run(ctx)
	return nil
}

// Stop signals the poll loop to exit and waits for it to finish.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	close(m.stopCh)
	m.mu.Unlock()

	<-m.doneCh

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

func (m *Monitor) pollOnce(ctx context.Context) {
	latest, err := m.client.GetLatestBlockNumber(ctx)
	if err != nil {
		m.logger.Printf("get latest block: %v", err)
		return
	}

	for _, f := range m.tracker.Snapshot(FillPending) {
		m.checkReceipt(ctx, f, uint64(latest))
	}
	for _, f := range m.tracker.Snapshot(FillConfirmed) {
		if ethereum.Confirmations(uint64(latest), f.BlockNumber) >= requiredConfirmations {
			m.tracker.SetStatus(f.IntentID, FillClaimed)
		}
	}
}

func (m *Monitor) checkReceipt(ctx context.Context, f *ActiveFill, latest uint64) {
	tx, _, err := m.client.GetClient().TransactionByHash(ctx, common.HexToHash(f.TxHash))
	if err != nil || tx == nil {
		return // not yet visible, try again next tick
	}
	receipt, err := m.client.GetClient().TransactionReceipt(ctx, common.HexToHash(f.TxHash))
	if err != nil {
		return // not yet mined
	}

	if receipt.Status == 0 {
		m.tracker.SetStatus(f.IntentID, FillFailed)
		return
	}

	m.mu.Lock()
	f.BlockNumber = receipt.BlockNumber.Uint64()
	m.mu.Unlock()
	m.tracker.mu.Lock()
	if stored, ok := m.tracker.fills[f.IntentID]; ok {
		stored.BlockNumber = receipt.BlockNumber.Uint64()
	}
	m.tracker.mu.Unlock()
	m.tracker.SetStatus(f.IntentID, FillConfirmed)
}
