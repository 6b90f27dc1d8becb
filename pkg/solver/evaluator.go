package solver

import (
	"math/big"
	"time"

	"github.com/intentbridge/relayer/pkg/token"
)

// DefaultSettlementFeeBps is the relayer fee charged on every fill, absent
// a per-token override (spec §4.6 "default 200 bps").
const DefaultSettlementFeeBps = 200

// Gas units charged per fill, keyed by whether the intent's token is the
// destination chain's native asset or an ERC-20 (spec §4.6 "base_gas ∈
// {100_000 native, 150_000 erc20}").
const (
	BaseGasNative uint64 = 100_000
	BaseGasERC20  uint64 = 150_000
)

// BaseGas picks the base gas units for a candidate by token kind.
func BaseGas(isNative bool) uint64 {
	if isNative {
		return BaseGasNative
	}
	return BaseGasERC20
}

// FeeAmount computes fee_amount = amount * settlement_fee_bps / 10_000, in
// the intent token's smallest unit (spec §4.6).
func FeeAmount(amount *big.Int, feeBps int) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(int64(feeBps)))
	return out.Div(out, big.NewInt(10_000))
}

// GasEstimate computes gas_estimate = base_gas * gas_price, in wei (spec
// §4.6).
func GasEstimate(baseGas uint64, gasPrice *big.Int) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(baseGas), gasPrice)
}

// ageTiers counts how many of the 5/15/30-minute thresholds age has
// crossed (spec §4.6 "+10 per {5, 15, 30}-min age tier").
func ageTiers(age time.Duration) int {
	tiers := 0
	for _, t := range []time.Duration{5 * time.Minute, 15 * time.Minute, 30 * time.Minute} {
		if age >= t {
			tiers++
		}
	}
	return tiers
}

// RiskScore computes the spec's 0-100 risk score for a candidate fill: +10
// per age tier crossed, +15 once committed capital reaches 50% of the
// token's per-fill cap and +25 at 80%, +30 if the source event still has
// fewer than the required confirmations (spec §4.6 "Risk score"). Capped
// at 100.
func RiskScore(age time.Duration, committed, capPerToken *big.Int, confirmations, requiredConfirmations uint64) int {
	score := ageTiers(age) * 10

	if capPerToken != nil && capPerToken.Sign() > 0 && committed != nil {
		switch {
		case HasSafetyMargin(committed, capPerToken, big.NewInt(80), big.NewInt(100)):
			score += 25
		case HasSafetyMargin(committed, capPerToken, big.NewInt(50), big.NewInt(100)):
			score += 15
		}
	}

	if confirmations < requiredConfirmations {
		score += 30
	}

	if score > 100 {
		score = 100
	}
	return score
}

// Quote holds every input the evaluator needs to score one candidate fill
// (spec §4.6 "Profitability").
type Quote struct {
	IntentValueUSD *big.Int // 1e8-scaled fixed point, matching token.PriceFeed
	FeeUSD         *big.Int // fee_amount converted to USD
	GasUSD         *big.Int // gas_estimate converted to USD
	RiskScore      int      // 0-100, higher is riskier
}

// Score is the evaluator's verdict for a single candidate fill.
type Score struct {
	ProfitUSD *big.Int
	ProfitBps int64
	RiskScore int
}

// EvaluatorConfig holds the profitability and risk thresholds a fill must
// clear (spec §6 "Solver:").
type EvaluatorConfig struct {
	MinProfitBps int
	MaxRiskScore int // default 70
}

// DefaultEvaluatorConfig returns the spec's defaults.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{MinProfitBps: 10, MaxRiskScore: 70}
}

// Evaluate computes a Quote's profit in USD and basis points. profit_usd =
// fee_usd - gas_usd; profit_bps = round(profit_usd / intent_value_usd *
// 10_000). Pure integer arithmetic: bps is scaled up before the division
// to avoid truncating to zero on small margins.
func Evaluate(q Quote) Score {
	profitUSD := new(big.Int).Sub(q.FeeUSD, q.GasUSD)

	var bps int64
	if q.IntentValueUSD != nil && q.IntentValueUSD.Sign() > 0 {
		scaled := new(big.Int).Mul(profitUSD, big.NewInt(10_000))
		quo, rem := new(big.Int).QuoRem(scaled, q.IntentValueUSD, new(big.Int))
		// Round half away from zero.
		if new(big.Int).Mul(new(big.Int).Abs(rem), big.NewInt(2)).Cmp(q.IntentValueUSD) >= 0 {
			quo.Add(quo, big.NewInt(int64(scaled.Sign())))
		}
		bps = quo.Int64()
	}

	return Score{ProfitUSD: profitUSD, ProfitBps: bps, RiskScore: q.RiskScore}
}

// MeetsThreshold reports whether a Score clears both the profitability and
// risk gates (spec §4.6 "Gating").
func (s Score) MeetsThreshold(cfg EvaluatorConfig) bool {
	return s.ProfitBps >= int64(cfg.MinProfitBps) && s.RiskScore <= cfg.MaxRiskScore
}

// USDValueOf converts an amount in a token's smallest unit to its 1e8-scaled
// USD value via feed, used to build a Quote's IntentValueUSD/GasUSD/FeeUSD
// fields from raw on-chain quantities.
func USDValueOf(feed token.PriceFeed, amount *big.Int, symbol token.Symbol) (*big.Int, error) {
	price, err := feed.USDPrice(symbol)
	if err != nil {
		return nil, err
	}
	dec, ok := token.Decimals[symbol]
	if !ok {
		return price, nil
	}
	// usd = amount * price / 10^dec, keeping the 1e8 scale from price.
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(dec)), nil)
	out := new(big.Int).Mul(amount, price)
	return out.Div(out, scale), nil
}
