package solver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProcessedSet_AcquireOnce(t *testing.T) {
	p := NewProcessedSet()
	require.True(t, p.TryAcquire("0xaa"))
	require.False(t, p.TryAcquire("0xaa")) // still in flight/cooldown
}

func TestProcessedSet_ReleaseAllowsReacquire(t *testing.T) {
	p := NewProcessedSet()
	require.True(t, p.TryAcquire("0xaa"))
	p.Release("0xaa")
	require.True(t, p.TryAcquire("0xaa"))
}

func TestProcessedSet_CooldownExpires(t *testing.T) {
	p := NewProcessedSet()
	p.cooldown = 10 * time.Millisecond
	require.True(t, p.TryAcquire("0xaa"))
	require.False(t, p.TryAcquire("0xaa"))
	time.Sleep(20 * time.Millisecond)
	require.True(t, p.TryAcquire("0xaa"))
}

func TestProcessedSet_Len(t *testing.T) {
	p := NewProcessedSet()
	p.TryAcquire("0xaa")
	p.TryAcquire("0xbb")
	require.Equal(t, 2, p.Len())
}
