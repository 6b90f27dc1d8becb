package relayererr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRetriable(t *testing.T) {
	require.True(t, IsRetriable(Transaction("dropped tx")))
	require.False(t, IsRetriable(Input("bad hex")))
	require.False(t, IsRetriable(errors.New("plain error")))
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("rpc timeout")
	wrapped := New(KindTransaction, true, fmt.Errorf("send: %w", inner))
	require.ErrorIs(t, wrapped, inner)
}
