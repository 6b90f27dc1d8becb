package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultWatcherConfig(t *testing.T) {
	cfg := DefaultWatcherConfig()
	require.Equal(t, uint64(2000), cfg.BlockStep)
	require.Equal(t, 10, int(cfg.PollInterval.Seconds()))
	require.Equal(t, 10, cfg.EvaluatorCfg.MinProfitBps)
	require.Equal(t, uint64(2), cfg.SourceConfirmationsRequired)
	require.Equal(t, 60, int(cfg.ConfirmationTimeout.Seconds()))
	require.Equal(t, 1, int(cfg.MaxIntentAge.Hours()))
	require.Equal(t, int64(100), cfg.MaxGasPriceGwei)
	require.Equal(t, 30, int(cfg.DeadlineEpsilon.Seconds()))
	require.Equal(t, DefaultSettlementFeeBps, cfg.SettlementFeeBps)
}

func TestNewWatcher_NilConfigUsesDefault(t *testing.T) {
	w := NewWatcher(nil, nil, nil)
	require.NotNil(t, w.cfg)
	require.Equal(t, uint64(2000), w.cfg.BlockStep)
	require.NotNil(t, w.processed)
}

func TestChainWatch_LimiterLazyInit(t *testing.T) {
	cw := &ChainWatch{ChainTag: "A"}
	require.Nil(t, cw.Limiter)
	l := cw.limiter()
	require.NotNil(t, l)
	require.Same(t, l, cw.limiter())
}
