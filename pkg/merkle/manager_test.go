package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManager_SixTreesAllPresentAndIndependent(t *testing.T) {
	m := NewManager()

	for _, chain := range []Chain{ChainA, ChainB} {
		for _, kind := range []Kind{KindCommitments, KindIntents, KindFills} {
			tr, err := m.Tree(Key{Chain: chain, Kind: kind})
			require.NoError(t, err)
			require.Equal(t, 0, tr.LeafCount())
		}
	}

	_, rootA, err := m.Append(Key{Chain: ChainA, Kind: KindIntents}, leafFor("only-on-A-intents"))
	require.NoError(t, err)

	rootAFills, err := m.Root(Key{Chain: ChainA, Kind: KindFills})
	require.NoError(t, err)
	rootBIntents, err := m.Root(Key{Chain: ChainB, Kind: KindIntents})
	require.NoError(t, err)

	require.NotEqual(t, rootA, rootAFills)
	require.Equal(t, Zero(Depth), rootAFills)
	require.Equal(t, Zero(Depth), rootBIntents)
}

func TestManager_UnknownKeyErrors(t *testing.T) {
	m := NewManager()
	_, err := m.Tree(Key{Chain: "C", Kind: KindIntents})
	require.Error(t, err)
}
