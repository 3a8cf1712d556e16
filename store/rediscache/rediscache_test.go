package rediscache_test

import (
	"context"
	"os"
	"testing"

	"github.com/rcvtab/tabulator/store/rediscache"
	"github.com/rcvtab/tabulator/tabulation"
)

// TestCacheRoundTrip needs a reachable redis; point RCVTAB_TEST_REDIS_ADDR
// at one (e.g. "localhost:6379") to run it.
func TestCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("RCVTAB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RCVTAB_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	cache := rediscache.New(addr, 2)
	defer cache.Close()

	ballots := []tabulation.Ballot{
		{TabulatorID: "t1", BatchID: "b1", RecordID: "r1"},
		{TabulatorID: "t1", BatchID: "b1", RecordID: "r2"},
	}

	if err := cache.SaveBallots(ctx, "contest-1", "b1", ballots); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, found, err := cache.LoadBallots(ctx, "contest-1", "b1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("expected cached batch to be found")
	}
	if len(got) != len(ballots) {
		t.Fatalf("expected %d ballots, got %d", len(ballots), len(got))
	}

	if err := cache.ClearBatch(ctx, "contest-1", "b1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	_, found, err = cache.LoadBallots(ctx, "contest-1", "b1")
	if err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if found {
		t.Error("expected batch to be gone after ClearBatch")
	}
}

func TestLoadBallotsMissingBatchNotFound(t *testing.T) {
	addr := os.Getenv("RCVTAB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RCVTAB_TEST_REDIS_ADDR not set")
	}

	cache := rediscache.New(addr, 2)
	defer cache.Close()

	_, found, err := cache.LoadBallots(context.Background(), "contest-1", "never-cached")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Error("expected no cached batch")
	}
}
