package ethereum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventTopic_KnownEvents(t *testing.T) {
	for name := range eventSignatures {
		topic, err := EventTopic(name)
		require.NoError(t, err)
		require.NotEqual(t, [32]byte{}, topic)
	}
}

func TestEventTopic_Unknown(t *testing.T) {
	_, err := EventTopic("NotAnEvent")
	require.Error(t, err)
}

func TestConfirmations(t *testing.T) {
	require.Equal(t, uint64(1), Confirmations(100, 100))
	require.Equal(t, uint64(3), Confirmations(102, 100))
	require.Equal(t, uint64(0), Confirmations(50, 100))
}
