// Copyright 2025 Certen Protocol
//
// Unit tests for IntentRepository. Requires a live Postgres reachable via
// INTENTBRIDGE_TEST_DB; skipped otherwise (mirrors the teacher's
// proof-artifact repository test harness).

package database

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	connStr := os.Getenv("INTENTBRIDGE_TEST_DB")
	if connStr == "" {
		os.Exit(0)
	}

	var err error
	testDB, err = sql.Open("postgres", connStr)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func testClient() *Client {
	return &Client{db: testDB}
}

func TestIntentRepository_CreateAndGet(t *testing.T) {
	if testDB == nil {
		t.Skip("INTENTBRIDGE_TEST_DB not set")
	}
	ctx := context.Background()
	repo := NewIntentRepository(testClient())

	intent := &Intent{
		ID:            "0x" + "aa11",
		SourceChain:   "A",
		DestChain:     "B",
		SourceToken:   "0x1111111111111111111111111111111111111111",
		DestToken:     "0x2222222222222222222222222222222222222222",
		SourceAmount:  "1000000",
		DestAmount:    "1000000",
		Commitment:    "0x" + "bb22",
		Deadline:      9999999999,
		RefundAddress: "0x3333333333333333333333333333333333333333",
		Status:        "created",
	}

	require.NoError(t, repo.Create(ctx, intent))
	require.ErrorIs(t, repo.Create(ctx, intent), ErrDuplicateIntent)

	got, err := repo.Get(ctx, intent.ID)
	require.NoError(t, err)
	require.Equal(t, intent.Status, got.Status)

	require.NoError(t, repo.UpdateStatus(ctx, intent.ID, "committed", "", ""))
	got, err = repo.Get(ctx, intent.ID)
	require.NoError(t, err)
	require.Equal(t, "committed", got.Status)
}

func TestIntentRepository_GetNotFound(t *testing.T) {
	if testDB == nil {
		t.Skip("INTENTBRIDGE_TEST_DB not set")
	}
	repo := NewIntentRepository(testClient())
	_, err := repo.Get(context.Background(), "0xdoesnotexist")
	require.ErrorIs(t, err, ErrIntentNotFound)
}
