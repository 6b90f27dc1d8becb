package token

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestConvertAmount_ScalesUpAndDown(t *testing.T) {
	// USDC (6 decimals) -> WETH-decimals (18 decimals): multiply by 1e12.
	amount := big.NewInt(1_000_000) // 1 USDC
	up := ConvertAmount(amount, 6, 18)
	require.Equal(t, new(big.Int).Mul(amount, big.NewInt(1_000_000_000_000)), up)

	// Round trip back down.
	down := ConvertAmount(up, 18, 6)
	require.Equal(t, amount, down)
}

func TestConvertAmount_SameDecimalsIsIdentity(t *testing.T) {
	amount := big.NewInt(42)
	require.Equal(t, amount, ConvertAmount(amount, 18, 18))
}

func TestSameValue_StablecoinsAreOneToOne(t *testing.T) {
	require.True(t, SameValue(USDC, USDT))
	require.True(t, SameValue(ETH, ETH))
	require.False(t, SameValue(ETH, USDC))
}

type fakeFeed struct {
	prices map[Symbol]*big.Int
}

func (f *fakeFeed) USDPrice(s Symbol) (*big.Int, error) {
	return f.prices[s], nil
}

func TestConvertViaUSD_NonStableRoute(t *testing.T) {
	feed := &fakeFeed{prices: map[Symbol]*big.Int{
		ETH:  big.NewInt(3000_00000000), // $3000
		USDC: big.NewInt(1_00000000),    // $1
	}}

	// 1 ETH -> USDC.
	oneETH := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	out, err := ConvertViaUSD(feed, oneETH, ETH, USDC)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3000_000000), out) // 3000 USDC at 6 decimals
}

func TestTable_SetAndLookup(t *testing.T) {
	tbl := NewTable()
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	tbl.Set("A", USDC, addr)

	got, err := tbl.Address("A", USDC)
	require.NoError(t, err)
	require.Equal(t, addr, got)

	sym, err := tbl.SymbolForAddress("A", addr)
	require.NoError(t, err)
	require.Equal(t, USDC, sym)

	_, err = tbl.Address("B", USDC)
	require.Error(t, err)
}
