package solver

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluate_ProfitAboveThreshold(t *testing.T) {
	q := Quote{
		IntentValueUSD: big.NewInt(100_00000000), // $100 at 1e8 scale
		FeeUSD:         big.NewInt(2_00000000),    // $2 fee
		GasUSD:         big.NewInt(50000000),      // $0.50 gas
		RiskScore:      20,
	}
	score := Evaluate(q)
	require.Equal(t, big.NewInt(1_50000000), score.ProfitUSD) // $1.50 profit
	require.Equal(t, int64(150), score.ProfitBps)              // $1.50 / $100 = 150 bps
}

func TestEvaluate_MeetsThreshold(t *testing.T) {
	cfg := DefaultEvaluatorConfig()
	score := Score{ProfitBps: 50, RiskScore: 30}
	require.True(t, score.MeetsThreshold(cfg))

	tooRisky := Score{ProfitBps: 50, RiskScore: 90}
	require.False(t, tooRisky.MeetsThreshold(cfg))

	tooThin := Score{ProfitBps: 5, RiskScore: 10}
	require.False(t, tooThin.MeetsThreshold(cfg))
}

func TestEvaluate_NegativeProfit(t *testing.T) {
	q := Quote{
		IntentValueUSD: big.NewInt(100_00000000),
		FeeUSD:         big.NewInt(1_00000000),
		GasUSD:         big.NewInt(2_00000000),
		RiskScore:      10,
	}
	score := Evaluate(q)
	require.True(t, score.ProfitUSD.Sign() < 0)
	require.False(t, score.MeetsThreshold(DefaultEvaluatorConfig()))
}

func TestFeeAmount(t *testing.T) {
	// 1_000_000 at 200 bps = 20_000
	require.Equal(t, big.NewInt(20_000), FeeAmount(big.NewInt(1_000_000), DefaultSettlementFeeBps))
}

func TestGasEstimate(t *testing.T) {
	gasPrice := big.NewInt(10_000_000_000) // 10 gwei
	require.Equal(t, new(big.Int).Mul(big.NewInt(100_000), gasPrice), GasEstimate(BaseGasNative, gasPrice))
	require.Equal(t, new(big.Int).Mul(big.NewInt(150_000), gasPrice), GasEstimate(BaseGasERC20, gasPrice))
}

func TestBaseGas(t *testing.T) {
	require.Equal(t, BaseGasNative, BaseGas(true))
	require.Equal(t, BaseGasERC20, BaseGas(false))
}

func TestRiskScore_AgeTiers(t *testing.T) {
	require.Equal(t, 0, RiskScore(1*time.Minute, nil, nil, 5, 2))
	require.Equal(t, 10, RiskScore(6*time.Minute, nil, nil, 5, 2))
	require.Equal(t, 20, RiskScore(16*time.Minute, nil, nil, 5, 2))
	require.Equal(t, 30, RiskScore(31*time.Minute, nil, nil, 5, 2))
}

func TestRiskScore_Capacity(t *testing.T) {
	capPerToken := big.NewInt(1_000_000)
	require.Equal(t, 15, RiskScore(0, big.NewInt(500_000), capPerToken, 5, 2))
	require.Equal(t, 25, RiskScore(0, big.NewInt(800_000), capPerToken, 5, 2))
	require.Equal(t, 0, RiskScore(0, big.NewInt(100_000), capPerToken, 5, 2))
}

func TestRiskScore_InsufficientConfirmations(t *testing.T) {
	require.Equal(t, 30, RiskScore(0, nil, nil, 1, 2))
	require.Equal(t, 0, RiskScore(0, nil, nil, 2, 2))
}

func TestRiskScore_Combined(t *testing.T) {
	capPerToken := big.NewInt(1_000_000)
	require.Equal(t, 85, RiskScore(31*time.Minute, big.NewInt(900_000), capPerToken, 0, 2))
}
