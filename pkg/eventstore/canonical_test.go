package eventstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentHash_KeyOrderIndependent(t *testing.T) {
	a := map[string]interface{}{"intent_id": "0x1", "amount": float64(100)}
	b := map[string]interface{}{"amount": float64(100), "intent_id": "0x1"}

	ha, err := ContentHash(a)
	require.NoError(t, err)
	hb, err := ContentHash(b)
	require.NoError(t, err)
	require.Equal(t, ha, hb)
}

func TestContentHash_DifferentPayloadsDiffer(t *testing.T) {
	ha, err := ContentHash(map[string]interface{}{"amount": float64(100)})
	require.NoError(t, err)
	hb, err := ContentHash(map[string]interface{}{"amount": float64(200)})
	require.NoError(t, err)
	require.NotEqual(t, ha, hb)
}

func TestDedupKey_SameLogSamePayloadStable(t *testing.T) {
	payload := map[string]interface{}{"intent_id": "0xabc"}
	k1, err := DedupKey(1, 100, "0xdeadbeef", 2, payload)
	require.NoError(t, err)
	k2, err := DedupKey(1, 100, "0xdeadbeef", 2, payload)
	require.NoError(t, err)
	require.Equal(t, k1, k2)
}

func TestDedupKey_DifferentPayloadDiverges(t *testing.T) {
	k1, err := DedupKey(1, 100, "0xdeadbeef", 2, map[string]interface{}{"v": float64(1)})
	require.NoError(t, err)
	k2, err := DedupKey(1, 100, "0xdeadbeef", 2, map[string]interface{}{"v": float64(2)})
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)
}
