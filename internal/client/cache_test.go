package client

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"scontrini/internal/core"
)

func TestCacheGetReturnsCopy(t *testing.T) {
	c := NewCache()
	c.Set("k", []core.Expense{{ID: 1, Title: "Spesa", Amount: 100}})

	rows, ok := c.Get("k")
	if !ok {
		t.Fatal("key missing")
	}
	rows[0].Title = "Cambiato"

	again, _ := c.Get("k")
	if again[0].Title != "Spesa" {
		t.Fatalf("caller mutation leaked into cache: %+v", again[0])
	}
}

func TestCacheSnapshotRestore(t *testing.T) {
	c := NewCache()
	c.Set("k", []core.Expense{{ID: 1, Title: "Spesa", Amount: 100}})

	snap := c.Snapshot("k")
	c.Set("k", nil)
	c.Restore("k", snap)

	rows, ok := c.Get("k")
	if !ok || len(rows) != 1 || rows[0].ID != 1 {
		t.Fatalf("restore lost data: %+v", rows)
	}
}

func TestCacheRestoreNilClearsKey(t *testing.T) {
	c := NewCache()

	snap := c.Snapshot("k") // unpopulated key
	c.Set("k", []core.Expense{{ID: 1}})
	c.Restore("k", snap)

	if _, ok := c.Get("k"); ok {
		t.Fatal("key should be unpopulated after restoring a nil snapshot")
	}
}

func TestInvalidateRefetches(t *testing.T) {
	c := NewCache()
	calls := 0
	c.RegisterFetcher("k", func(ctx context.Context) ([]core.Expense, error) {
		calls++
		return []core.Expense{{ID: 7, Title: "Dal server", Amount: 1}}, nil
	})

	c.Invalidate(context.Background(), "k")
	if calls != 1 {
		t.Fatalf("fetcher calls = %d", calls)
	}

	rows, ok := c.Get("k")
	if !ok || rows[0].ID != 7 {
		t.Fatalf("refetched rows not stored: %+v", rows)
	}
}

func TestInvalidateKeepsRowsOnFetchFailure(t *testing.T) {
	c := NewCache()
	c.Set("k", []core.Expense{{ID: 1, Title: "Spesa", Amount: 100}})
	c.RegisterFetcher("k", func(ctx context.Context) ([]core.Expense, error) {
		return nil, errors.New("server unreachable")
	})

	c.Invalidate(context.Background(), "k")

	rows, ok := c.Get("k")
	if !ok || len(rows) != 1 {
		t.Fatalf("failed refetch dropped rows: %+v", rows)
	}
}

func TestCancelledRefetchDoesNotWrite(t *testing.T) {
	c := NewCache()
	c.Set("k", []core.Expense{{ID: 1, Title: "Spesa", Amount: 100}})

	c.RegisterFetcher("k", func(ctx context.Context) ([]core.Expense, error) {
		// Simulate a mutation landing while this refetch is in flight.
		c.CancelRefetch("k")
		return []core.Expense{{ID: 99, Title: "Stantio", Amount: 1}}, nil
	})

	c.Invalidate(context.Background(), "k")

	rows, _ := c.Get("k")
	if len(rows) != 1 || rows[0].ID != 1 {
		t.Fatalf("cancelled refetch overwrote the cache: %+v", rows)
	}
}

func TestOverlappingInvalidationsCannotClobberNewMutation(t *testing.T) {
	c := NewCache()

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	c.RegisterFetcher("k", func(ctx context.Context) ([]core.Expense, error) {
		started <- struct{}{}
		select {
		case <-release:
			return []core.Expense{{ID: 1, Title: "Spesa", Amount: 100}}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	// Two settlements invalidate the same key while both refetches are
	// still in flight.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Invalidate(context.Background(), "k")
	}()
	<-started
	go func() {
		defer wg.Done()
		c.Invalidate(context.Background(), "k")
	}()
	<-started

	// A new mutation begins: cancel whatever is in flight, then write the
	// optimistic rows.
	c.CancelRefetch("k")
	optimistic := []core.Expense{{ID: -1, Title: "Ottimista", Amount: 1}}
	c.Set("k", optimistic)

	close(release)
	wg.Wait()

	rows, ok := c.Get("k")
	if !ok || !reflect.DeepEqual(rows, optimistic) {
		t.Fatalf("stale refetch overwrote optimistic rows: %+v", rows)
	}
}

func TestInvalidateWithoutFetcherDropsKey(t *testing.T) {
	c := NewCache()
	c.Set("k", []core.Expense{{ID: 1}})

	c.Invalidate(context.Background(), "k")

	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should be dropped when no fetcher is registered")
	}
}
