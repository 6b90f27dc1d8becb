package solver

import (
	"math/big"
	"sync"

	"github.com/intentbridge/relayer/pkg/token"
)

// balanceSafetyCheck and balanceSafetyPreflight are the two margins the
// spec requires at different points in the fill pipeline (spec §4.6,
// P9): a looser check before committing to evaluate, a tighter one
// immediately before sending the transaction.
var (
	balanceSafetyCheckNum     = big.NewInt(105)
	balanceSafetyPreflightNum = big.NewInt(108)
	balanceSafetyDen          = big.NewInt(100)
)

// CapitalGate tracks in-flight capital commitments per token so the
// solver never double-commits balance across concurrent fills. Guarded by
// a single mutex with short critical sections, per spec §5.
type CapitalGate struct {
	mu                 sync.Mutex
	maxConcurrentFills int
	inFlightCount      int
	committed          map[token.Symbol]*big.Int // capital currently reserved per token
	maxPerFill         map[token.Symbol]*big.Int
	minReserve         map[token.Symbol]*big.Int
}

// NewCapitalGate constructs a gate from the solver's configured capital
// limits (spec §6 "max_capital_per_fill[token]", "min_capital_reserve[token]").
func NewCapitalGate(maxConcurrentFills int, maxPerFill, minReserve map[token.Symbol]*big.Int) *CapitalGate {
	return &CapitalGate{
		maxConcurrentFills: maxConcurrentFills,
		committed:          make(map[token.Symbol]*big.Int),
		maxPerFill:         maxPerFill,
		minReserve:         minReserve,
	}
}

// Reserve attempts to commit amount of symbol toward a new fill, subject
// to the concurrency cap and the per-token max-per-fill limit. Returns
// false without mutating state if either limit would be exceeded.
func (g *CapitalGate) Reserve(symbol token.Symbol, amount *big.Int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlightCount >= g.maxConcurrentFills {
		return false
	}
	if max, ok := g.maxPerFill[symbol]; ok && amount.Cmp(max) > 0 {
		return false
	}

	current, ok := g.committed[symbol]
	if !ok {
		current = big.NewInt(0)
	}
	g.committed[symbol] = new(big.Int).Add(current, amount)
	g.inFlightCount++
	return true
}

// Release returns amount of symbol to the available pool after a fill
// completes or is abandoned.
func (g *CapitalGate) Release(symbol token.Symbol, amount *big.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if current, ok := g.committed[symbol]; ok {
		g.committed[symbol] = new(big.Int).Sub(current, amount)
	}
	if g.inFlightCount > 0 {
		g.inFlightCount--
	}
}

// InFlightCount returns the current number of reserved, unreleased fills.
func (g *CapitalGate) InFlightCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlightCount
}

// CapacityUsed returns the capital currently committed for symbol and its
// configured per-fill cap (nil if unset), used by RiskScore to gauge how
// close a fill pushes a token toward its cap (spec §4.6 "risk score...
// capacity").
func (g *CapitalGate) CapacityUsed(symbol token.Symbol) (committed, capPerFill *big.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.committed[symbol]
	if !ok {
		c = big.NewInt(0)
	}
	return new(big.Int).Set(c), g.maxPerFill[symbol]
}

// HasSafetyMargin reports whether balance covers amount scaled by the
// given safety margin (numerator/denominator), i.e. balance >= amount *
// margin. Pure integer comparison, no floating point.
func HasSafetyMargin(balance, amount *big.Int, marginNum, marginDen *big.Int) bool {
	required := new(big.Int).Mul(amount, marginNum)
	scaledBalance := new(big.Int).Mul(balance, marginDen)
	return scaledBalance.Cmp(required) >= 0
}

// HasPreCheckMargin applies the looser 1.05x margin (spec §4.6 "Live
// balance fetch... >= amount * 1.05"). The watcher's candidate path does
// not call it; the only balance check on the fill path is
// HasPreflightMargin inside Executor.Fill.
func HasPreCheckMargin(balance, amount *big.Int) bool {
	return HasSafetyMargin(balance, amount, balanceSafetyCheckNum, balanceSafetyDen)
}

// HasPreflightMargin applies the tighter 1.08x margin required
// immediately before sending the fill transaction (spec §4.6 "Pre-flight
// balance >= amount * 1.08").
func HasPreflightMargin(balance, amount *big.Int) bool {
	return HasSafetyMargin(balance, amount, balanceSafetyPreflightNum, balanceSafetyDen)
}
