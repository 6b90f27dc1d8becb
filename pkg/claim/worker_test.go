package claim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsAlreadyClaimed(t *testing.T) {
	require.True(t, isAlreadyClaimed(errors.New("execution reverted: already claimed")))
	require.True(t, isAlreadyClaimed(errors.New("ALREADY PROCESSED")))
	require.False(t, isAlreadyClaimed(errors.New("insufficient funds")))
	require.False(t, isAlreadyClaimed(nil))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, int64(3), cfg.Concurrency)
	require.Equal(t, uint64(400_000), cfg.GasLimit)
}
