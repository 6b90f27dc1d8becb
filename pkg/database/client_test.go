// Copyright 2025 Certen Protocol
//
// Unit tests for Client's bridge-level health reporting. Requires a live
// Postgres reachable via INTENTBRIDGE_TEST_DB; skipped otherwise, same as
// the repository tests.

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_BridgeHealth_CountsBacklogAndFlagsStaleSync(t *testing.T) {
	if testDB == nil {
		t.Skip("INTENTBRIDGE_TEST_DB not set")
	}
	ctx := context.Background()
	client := testClient()
	intents := NewIntentRepository(client)
	rootSync := NewRootSyncRepository(client)

	pending := &Intent{
		ID:            "0x" + "cc33",
		SourceChain:   "A",
		DestChain:     "B",
		SourceToken:   "0x1111111111111111111111111111111111111111",
		DestToken:     "0x2222222222222222222222222222222222222222",
		SourceAmount:  "1000000",
		DestAmount:    "1000000",
		Commitment:    "0x" + "dd44",
		Deadline:      9999999999,
		RefundAddress: "0x3333333333333333333333333333333333333333",
		Status:        "committed",
	}
	require.NoError(t, intents.Create(ctx, pending))

	status, err := client.BridgeHealth(ctx, intents, rootSync, []string{"A.commitments->B"}, time.Minute)
	require.NoError(t, err)
	require.True(t, status.PendingIntents >= 1)
	require.False(t, status.Healthy) // "A.commitments->B" has never been recorded
	require.Contains(t, status.StaleSyncTypes, "A.commitments->B")

	require.NoError(t, rootSync.Create(ctx, &RootSyncRecord{
		SyncType: "A.commitments->B",
		Root:     "0x" + "ee55",
		TxHash:   "0x" + "ff66",
	}))

	status, err = client.BridgeHealth(ctx, intents, rootSync, []string{"A.commitments->B"}, time.Minute)
	require.NoError(t, err)
	require.Empty(t, status.StaleSyncTypes)
	require.True(t, status.Healthy)
	require.Less(t, status.RootSyncLag["A.commitments->B"], time.Minute)
}
