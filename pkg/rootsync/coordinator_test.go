package rootsync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intentbridge/relayer/pkg/merkle"
)

func TestCoordinator_ResolveAllDirections(t *testing.T) {
	c := &Coordinator{}
	for _, dir := range allDirections {
		key, srcClient, dstClient, dstTarget, err := c.resolve(dir)
		require.NoError(t, err)
		require.NotEmpty(t, key.Chain)
		require.NotEmpty(t, key.Kind)
		require.Nil(t, srcClient) // unset on this bare coordinator
		require.Nil(t, dstClient)
		require.Equal(t, ChainTarget{}, dstTarget)
	}
}

func TestCoordinator_ResolveUnknownDirection(t *testing.T) {
	c := &Coordinator{}
	_, _, _, _, err := c.resolve(Direction("bogus"))
	require.Error(t, err)
}

func TestCoordinator_DirectionsCoverBothChainsAndKinds(t *testing.T) {
	seen := map[merkle.Key]bool{}
	c := &Coordinator{}
	for _, dir := range allDirections {
		key, _, _, _, err := c.resolve(dir)
		require.NoError(t, err)
		seen[key] = true
	}
	require.Len(t, seen, 4)
	require.True(t, seen[merkle.Key{Chain: merkle.ChainA, Kind: merkle.KindCommitments}])
	require.True(t, seen[merkle.Key{Chain: merkle.ChainB, Kind: merkle.KindCommitments}])
	require.True(t, seen[merkle.Key{Chain: merkle.ChainA, Kind: merkle.KindFills}])
	require.True(t, seen[merkle.Key{Chain: merkle.ChainB, Kind: merkle.KindFills}])
}
