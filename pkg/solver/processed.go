// Package solver watches for registered intents on both chains, scores
// their profitability, and executes fills under capital and concurrency
// constraints (spec §4.6).
package solver

import (
	"sync"
	"time"
)

// defaultCooldown is how long a failed intent is held out of re-processing
// before another attempt is allowed (spec §4.6 "default 12s").
const defaultCooldown = 12 * time.Second

// ProcessedSet is the in-memory, reader-writer-locked compare-and-insert
// gate that prevents the same intent from being evaluated by more than one
// concurrent fill attempt. Grounded on the teacher's NonceTracker: a
// mutex-guarded map with short critical sections, never a process-wide
// singleton (spec §5 "Global mutable state... owned state inside each task
// actor").
type ProcessedSet struct {
	mu       sync.RWMutex
	entries  map[string]time.Time // intentID -> time it was marked in-flight or failed
	cooldown time.Duration
}

// NewProcessedSet constructs a ProcessedSet with the spec's default
// cooldown.
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{
		entries:  make(map[string]time.Time),
		cooldown: defaultCooldown,
	}
}

// TryAcquire attempts to claim intentID for processing. It returns true if
// the caller now owns processing of this intent (either it was never seen,
// or its cooldown has elapsed); false if another attempt is still in
// flight or in cooldown.
func (p *ProcessedSet) TryAcquire(intentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if markedAt, exists := p.entries[intentID]; exists {
		if time.Since(markedAt) < p.cooldown {
			return false
		}
	}
	p.entries[intentID] = time.Now()
	return true
}

// Release removes intentID from the set immediately, used after a
// successful fill completes (no need to wait out the cooldown once the
// outcome is final).
func (p *ProcessedSet) Release(intentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, intentID)
}

// MarkFailed leaves intentID present but resets its timestamp, so the
// cooldown window restarts from the failure rather than the original
// acquisition.
func (p *ProcessedSet) MarkFailed(intentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[intentID] = time.Now()
}

// Len reports how many intents are currently tracked (in flight or
// cooling down).
func (p *ProcessedSet) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
