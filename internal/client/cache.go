package client

import (
	"context"
	"log/slog"
	"sync"

	"scontrini/internal/core"
)

// ExpensesKey is the cache key for the expense listing.
const ExpensesKey = "expenses"

// FetchFunc loads fresh rows for a cache key from the server.
type FetchFunc func(ctx context.Context) ([]core.Expense, error)

// Cache holds client-side snapshots of server data, keyed by query. It is
// an explicit object handed to whoever needs it, never package state.
//
// Mutations interact with it in a fixed sequence: cancel any in-flight
// refetch for the key, snapshot, apply the optimistic change, and after
// the network settles either restore the snapshot or invalidate the key
// so a refetch reconciles the cache with the server.
type Cache struct {
	mu       sync.Mutex
	entries  map[string][]core.Expense
	fetchers map[string]FetchFunc
	inflight map[string]*refetch
}

// refetch identifies one in-flight fetch. The pointer doubles as an
// ownership token: a finished fetch only clears the registry entry if the
// entry is still its own.
type refetch struct {
	cancel context.CancelFunc
}

func NewCache() *Cache {
	return &Cache{
		entries:  make(map[string][]core.Expense),
		fetchers: make(map[string]FetchFunc),
		inflight: make(map[string]*refetch),
	}
}

// RegisterFetcher binds the loader used when key is invalidated.
func (c *Cache) RegisterFetcher(key string, fetch FetchFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchers[key] = fetch
}

// Get returns the cached rows for key and whether the key is populated.
// The returned slice is a copy; callers may modify it freely.
func (c *Cache) Get(key string) ([]core.Expense, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return copyRows(rows), true
}

// Set replaces the rows stored under key.
func (c *Cache) Set(key string, rows []core.Expense) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = copyRows(rows)
}

// Snapshot returns an independent copy of the current rows under key,
// suitable for restoring later. An unpopulated key snapshots as nil.
func (c *Cache) Snapshot(key string) []core.Expense {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyRows(c.entries[key])
}

// Restore puts a previously taken snapshot back, discarding whatever the
// optimistic update wrote in the meantime.
func (c *Cache) Restore(key string, snapshot []core.Expense) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if snapshot == nil {
		delete(c.entries, key)
		return
	}
	c.entries[key] = copyRows(snapshot)
}

// CancelRefetch aborts any refetch in flight for key. Called before a
// mutation touches the cache so a stale response cannot overwrite the
// optimistic rows.
func (c *Cache) CancelRefetch(key string) {
	c.mu.Lock()
	r := c.inflight[key]
	delete(c.inflight, key)
	c.mu.Unlock()

	if r != nil {
		r.cancel()
	}
}

// Invalidate refetches key through its registered fetcher and stores the
// result. A missing fetcher just drops the entry. Refetch failures leave
// the current rows in place; the next invalidation tries again.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	fetch, ok := c.fetchers[key]
	if !ok {
		delete(c.entries, key)
		c.mu.Unlock()
		return
	}

	// A newer invalidation supersedes any fetch still in flight for the
	// same key; cancel it so at most one fetch is registered at a time.
	if prev := c.inflight[key]; prev != nil {
		prev.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	token := &refetch{cancel: cancel}
	c.inflight[key] = token
	c.mu.Unlock()

	rows, err := fetch(fctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer cancel()

	if fctx.Err() != nil {
		// Cancelled by a newer mutation or invalidation, which owns the
		// cache (and the registry entry) now; discard the server's answer.
		return
	}
	// Only clear our own registration, never a successor's.
	if c.inflight[key] == token {
		delete(c.inflight, key)
	}

	if err != nil {
		slog.Warn("Cache refetch failed, keeping current rows",
			"cache_key", key, "error", err)
		return
	}
	c.entries[key] = copyRows(rows)
}

func copyRows(rows []core.Expense) []core.Expense {
	if rows == nil {
		return nil
	}
	out := make([]core.Expense, len(rows))
	copy(out, rows)
	return out
}
