package merkle

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func leafFor(s string) [32]byte {
	return crypto.Keccak256Hash([]byte(s))
}

func TestTree_EmptyRootIsZeroSubtreeAtDepth(t *testing.T) {
	tr := NewTree(Key{Chain: ChainA, Kind: KindIntents})
	require.Equal(t, Zero(Depth), tr.Root())
	require.Equal(t, 0, tr.LeafCount())
}

func TestTree_SingleLeaf(t *testing.T) {
	tr := NewTree(Key{Chain: ChainA, Kind: KindIntents})
	leaf := leafFor("intent-1")

	idx, root, err := tr.Append(leaf)
	require.NoError(t, err)
	require.Equal(t, 0, idx)
	require.Equal(t, 1, tr.LeafCount())

	// A single-leaf tree's root is the leaf folded with Depth zero-siblings,
	// not the bare leaf hash, because the tree has a fixed depth.
	expected := leaf
	for level := 0; level < Depth; level++ {
		expected = hashPair(expected, Zero(level))
	}
	require.Equal(t, expected, root)
	require.Equal(t, expected, tr.Root())
}

func TestTree_TwoLeaves_ProofVerifies(t *testing.T) {
	tr := NewTree(Key{Chain: ChainB, Kind: KindFills})
	leaf1 := leafFor("fill-1")
	leaf2 := leafFor("fill-2")

	_, _, err := tr.Append(leaf1)
	require.NoError(t, err)
	_, root, err := tr.Append(leaf2)
	require.NoError(t, err)

	proof0, err := tr.GenerateProof(0)
	require.NoError(t, err)
	require.True(t, proof0.Verify(root))

	proof1, err := tr.GenerateProof(1)
	require.NoError(t, err)
	require.True(t, proof1.Verify(root))

	// Tampering with the leaf hash invalidates the proof.
	proof0.LeafHash = leafFor("not-fill-1")
	require.False(t, proof0.Verify(root))
}

func TestTree_SortedPairHashing_IsOrderIndependent(t *testing.T) {
	a := leafFor("a")
	b := leafFor("b")
	require.Equal(t, hashPair(a, b), hashPair(b, a))
}

func TestTree_AppendGrowsLeafCountAndChangesRoot(t *testing.T) {
	tr := NewTree(Key{Chain: ChainA, Kind: KindCommitments})
	var lastRoot [32]byte
	for i := 0; i < 5; i++ {
		_, root, err := tr.Append(leafFor(string(rune('a' + i))))
		require.NoError(t, err)
		require.NotEqual(t, lastRoot, root)
		lastRoot = root
	}
	require.Equal(t, 5, tr.LeafCount())
}

func TestTree_RebuildFromMatchesIncrementalAppend(t *testing.T) {
	leaves := [][32]byte{leafFor("x"), leafFor("y"), leafFor("z")}

	incremental := NewTree(Key{Chain: ChainA, Kind: KindIntents})
	for _, l := range leaves {
		_, _, err := incremental.Append(l)
		require.NoError(t, err)
	}

	rebuilt := NewTree(Key{Chain: ChainA, Kind: KindIntents})
	require.NoError(t, rebuilt.RebuildFrom(leaves))

	require.Equal(t, incremental.Root(), rebuilt.Root())
}

func TestTree_GetLeaf_OutOfRange(t *testing.T) {
	tr := NewTree(Key{Chain: ChainA, Kind: KindIntents})
	_, err := tr.GetLeaf(0)
	require.Error(t, err)
}

func TestGenerateProofAtLimit_HistoricalRootDiffersFromLive(t *testing.T) {
	leaves := [][32]byte{leafFor("1"), leafFor("2"), leafFor("3")}
	tr := NewTree(Key{Chain: ChainA, Kind: KindIntents})
	for _, l := range leaves {
		_, _, err := tr.Append(l)
		require.NoError(t, err)
	}

	// Proof against a counter-chain that has only synced the first 2 leaves.
	historicalProof, err := GenerateProofAtLimit(leaves, 0, 2)
	require.NoError(t, err)

	liveProof, err := tr.GenerateProof(0)
	require.NoError(t, err)

	require.NotEqual(t, historicalProof.Root, liveProof.Root)
	require.True(t, historicalProof.Verify(historicalProof.Root))
	require.True(t, liveProof.Verify(tr.Root()))
}

func TestKey_StringAvoidsCollisions(t *testing.T) {
	require.Equal(t, "A.commitments", Key{Chain: ChainA, Kind: KindCommitments}.String())
	require.Equal(t, "B.fills", Key{Chain: ChainB, Kind: KindFills}.String())
	require.NotEqual(t,
		Key{Chain: ChainA, Kind: KindFills}.String(),
		Key{Chain: ChainB, Kind: KindFills}.String(),
	)
}
