package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTokenAmountMap(t *testing.T) {
	got := parseTokenAmountMap("ETH=5000000000000000000,USDC=50000000000")
	require.Equal(t, int64(5000000000000000000), got["ETH"])
	require.Equal(t, int64(50000000000), got["USDC"])
	require.Len(t, got, 2)
}

func TestParseTokenAmountMap_EmptyAndMalformed(t *testing.T) {
	require.Empty(t, parseTokenAmountMap(""))

	got := parseTokenAmountMap("ETH=not-a-number,USDC=100, ,WETH")
	require.Equal(t, int64(100), got["USDC"])
	require.NotContains(t, got, "ETH")
	require.NotContains(t, got, "WETH")
}

func TestParseTokenAddressMap(t *testing.T) {
	addr := "0x1111111111111111111111111111111111111111"
	got := parseTokenAddressMap("USDC=" + addr + ",WETH=0x2222222222222222222222222222222222222222")
	require.Equal(t, addr, got["USDC"])
	require.Len(t, got, 2)
}

func TestValidate_RequiresCoreFields(t *testing.T) {
	cfg := &Config{TreeDepth: 20}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "DATABASE_URL")
	require.Contains(t, err.Error(), "RELAYER_ECIES_PRIVATE_KEY")
}

func TestValidate_PassesWithAllRequiredFields(t *testing.T) {
	cfg := &Config{
		DatabaseURL:            "postgres://localhost/test",
		RelayerAddress:         "0xabc",
		RelayerECIESPrivateKey: "deadbeef",
		TreeDepth:              20,
		ChainA: ChainConfig{
			RPCURL:            "http://a",
			PrivateKey:        "keyA",
			IntentPoolAddress: "0x1",
			SettlementAddress: "0x2",
		},
		ChainB: ChainConfig{
			RPCURL:            "http://b",
			PrivateKey:        "keyB",
			IntentPoolAddress: "0x3",
			SettlementAddress: "0x4",
		},
	}
	require.NoError(t, cfg.Validate())
}
