package solver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyRevert_KnownSelector(t *testing.T) {
	err := errors.New("execution reverted: 0x3b18696e")
	require.Equal(t, "IntentAlreadyFilled()", ClassifyRevert(err))
}

func TestClassifyRevert_UnknownSelector(t *testing.T) {
	err := errors.New("execution reverted: 0xdeadbeef")
	require.Equal(t, "", ClassifyRevert(err))
}

func TestClassifyRevert_NilError(t *testing.T) {
	require.Equal(t, "", ClassifyRevert(nil))
}

func TestIdBytes_RoundTrips32Bytes(t *testing.T) {
	hexID := "0x1100000000000000000000000000000000000000000000000000000000000000"
	b := idBytes(hexID[:66])
	require.Len(t, b, 32)
	require.Equal(t, byte(0x11), b[0])
}
