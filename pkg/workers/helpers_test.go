package workers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsAlreadyDone(t *testing.T) {
	require.True(t, isAlreadyDone(errors.New("execution reverted: intent already registered")))
	require.True(t, isAlreadyDone(errors.New("ALREADY PROCESSED")))
	require.False(t, isAlreadyDone(errors.New("insufficient funds")))
	require.False(t, isAlreadyDone(nil))
}

func TestBackoffSchedule(t *testing.T) {
	require.Len(t, backoffSchedule, 3)
	for i := 1; i < len(backoffSchedule); i++ {
		require.Greater(t, backoffSchedule[i], backoffSchedule[i-1])
	}
}
