package solver

import (
	"math/big"
	"testing"

	"github.com/intentbridge/relayer/pkg/token"
	"github.com/stretchr/testify/require"
)

func TestCapitalGate_ReserveRespectsConcurrency(t *testing.T) {
	g := NewCapitalGate(1, nil, nil)
	require.True(t, g.Reserve(token.USDC, big.NewInt(100)))
	require.False(t, g.Reserve(token.USDC, big.NewInt(100)))
}

func TestCapitalGate_ReserveRespectsMaxPerFill(t *testing.T) {
	g := NewCapitalGate(5, map[token.Symbol]*big.Int{token.USDC: big.NewInt(50)}, nil)
	require.False(t, g.Reserve(token.USDC, big.NewInt(100)))
	require.True(t, g.Reserve(token.USDC, big.NewInt(50)))
}

func TestCapitalGate_ReleaseFreesSlot(t *testing.T) {
	g := NewCapitalGate(1, nil, nil)
	require.True(t, g.Reserve(token.USDC, big.NewInt(100)))
	g.Release(token.USDC, big.NewInt(100))
	require.Equal(t, 0, g.InFlightCount())
	require.True(t, g.Reserve(token.USDC, big.NewInt(100)))
}

func TestCapitalGate_CapacityUsed(t *testing.T) {
	g := NewCapitalGate(5, map[token.Symbol]*big.Int{token.USDC: big.NewInt(1_000)}, nil)
	committed, cap := g.CapacityUsed(token.USDC)
	require.Equal(t, big.NewInt(0), committed)
	require.Equal(t, big.NewInt(1_000), cap)

	require.True(t, g.Reserve(token.USDC, big.NewInt(500)))
	committed, cap = g.CapacityUsed(token.USDC)
	require.Equal(t, big.NewInt(500), committed)
	require.Equal(t, big.NewInt(1_000), cap)
}

func TestHasPreCheckMargin(t *testing.T) {
	require.True(t, HasPreCheckMargin(big.NewInt(105), big.NewInt(100)))
	require.False(t, HasPreCheckMargin(big.NewInt(104), big.NewInt(100)))
}

func TestHasPreflightMargin(t *testing.T) {
	require.True(t, HasPreflightMargin(big.NewInt(108), big.NewInt(100)))
	require.False(t, HasPreflightMargin(big.NewInt(107), big.NewInt(100)))
}
