package token

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticPriceFeed_DefaultsStablecoinsToOneDollar(t *testing.T) {
	f := NewStaticPriceFeed(nil)
	price, err := f.USDPrice(USDC)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100_000_000), price)
}

func TestStaticPriceFeed_SeedOverridesDefault(t *testing.T) {
	f := NewStaticPriceFeed(map[Symbol]*big.Int{ETH: big.NewInt(300_000_000_000)})
	price, err := f.USDPrice(ETH)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300_000_000_000), price)
}

func TestStaticPriceFeed_UnknownSymbolErrors(t *testing.T) {
	f := NewStaticPriceFeed(nil)
	_, err := f.USDPrice(MNT)
	require.Error(t, err)
}

func TestStaticPriceFeed_SetOverridesPrice(t *testing.T) {
	f := NewStaticPriceFeed(nil)
	f.Set(USDC, big.NewInt(99_000_000))
	price, err := f.USDPrice(USDC)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(99_000_000), price)
}
