package solver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestActiveFillTracker_AddAndGet(t *testing.T) {
	tr := NewActiveFillTracker()
	tr.Add(&ActiveFill{IntentID: "0xaa", TxHash: "0x01", FilledAt: time.Now()})

	f, ok := tr.Get("0xaa")
	require.True(t, ok)
	require.Equal(t, FillPending, f.Status)
}

func TestActiveFillTracker_SetStatusSetsConfirmedAt(t *testing.T) {
	tr := NewActiveFillTracker()
	tr.Add(&ActiveFill{IntentID: "0xaa"})
	tr.SetStatus("0xaa", FillConfirmed)

	f, _ := tr.Get("0xaa")
	require.Equal(t, FillConfirmed, f.Status)
	require.False(t, f.ConfirmedAt.IsZero())
}

func TestActiveFillTracker_RemoveAndLen(t *testing.T) {
	tr := NewActiveFillTracker()
	tr.Add(&ActiveFill{IntentID: "0xaa"})
	tr.Add(&ActiveFill{IntentID: "0xbb"})
	require.Equal(t, 2, tr.Len())

	tr.Remove("0xaa")
	require.Equal(t, 1, tr.Len())
	_, ok := tr.Get("0xaa")
	require.False(t, ok)
}

func TestActiveFillTracker_SnapshotFiltersByStatus(t *testing.T) {
	tr := NewActiveFillTracker()
	tr.Add(&ActiveFill{IntentID: "0xaa"})
	tr.Add(&ActiveFill{IntentID: "0xbb"})
	tr.SetStatus("0xbb", FillConfirmed)

	pending := tr.Snapshot(FillPending)
	confirmed := tr.Snapshot(FillConfirmed)
	require.Len(t, pending, 1)
	require.Len(t, confirmed, 1)
	require.Equal(t, "0xaa", pending[0].IntentID)
	require.Equal(t, "0xbb", confirmed[0].IntentID)
}

func TestRequiredConfirmationsConstant(t *testing.T) {
	require.Equal(t, 6, requiredConfirmations)
}
