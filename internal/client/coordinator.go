package client

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"scontrini/internal/core"
)

// MutationState tracks a mutation through its lifecycle.
type MutationState int

const (
	StateIdle MutationState = iota
	StatePending
	StateCommitted
	StateRolledBack
)

func (s MutationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// ExpenseAPI is the network surface the coordinator drives. *Client
// implements it.
type ExpenseAPI interface {
	List(ctx context.Context) ([]core.Expense, error)
	Create(ctx context.Context, in core.CreateExpense) (core.Expense, error)
	Patch(ctx context.Context, id int64, patch core.UpdateExpense) (core.Expense, error)
	Delete(ctx context.Context, id int64) (core.Expense, error)
}

// Coordinator runs mutations against the API while keeping the cache
// optimistically up to date. Every mutation follows the same shape:
//
//  1. cancel any refetch in flight for the listing key
//  2. snapshot the current cache rows
//  3. apply the change optimistically
//  4. send the request
//  5. on rejection, restore the snapshot
//  6. on settlement (success or failure), invalidate the key once so a
//     refetch reconciles the cache with the server
type Coordinator struct {
	api   ExpenseAPI
	cache *Cache

	// tempID counts down from -1; optimistic creates get ids from this
	// range so they can never collide with server-assigned ones.
	tempID atomic.Int64
}

func NewCoordinator(api ExpenseAPI, cache *Cache) *Coordinator {
	c := &Coordinator{api: api, cache: cache}
	cache.RegisterFetcher(ExpensesKey, api.List)
	return c
}

// NextTempID returns a fresh negative placeholder id.
func (c *Coordinator) NextTempID() int64 {
	return -c.tempID.Add(1)
}

// mutation is the per-call bookkeeping: the snapshot taken before the
// optimistic write and the state machine guarding rollback.
type mutation struct {
	cache    *Cache
	key      string
	snapshot []core.Expense

	mu    sync.Mutex
	state MutationState
}

func (c *Coordinator) begin(key string) *mutation {
	c.cache.CancelRefetch(key)
	m := &mutation{
		cache:    c.cache,
		key:      key,
		snapshot: c.cache.Snapshot(key),
		state:    StatePending,
	}
	return m
}

// rollback restores the pre-mutation snapshot. Safe to call more than
// once; only the first call moves state and touches the cache.
func (m *mutation) rollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePending {
		return
	}
	m.state = StateRolledBack
	m.cache.Restore(m.key, m.snapshot)
}

func (m *mutation) commit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StatePending {
		m.state = StateCommitted
	}
}

// settle invalidates the key exactly once, whatever the outcome was.
func (m *mutation) settle(ctx context.Context) {
	m.cache.Invalidate(ctx, m.key)
}

// State reports the mutation's current lifecycle state.
func (m *mutation) State() MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CreateExpense optimistically appends the new row under a temporary
// negative id, then reconciles with the server's answer.
func (c *Coordinator) CreateExpense(ctx context.Context, in core.CreateExpense) (core.Expense, error) {
	m := c.begin(ExpensesKey)
	defer m.settle(ctx)

	optimistic := core.Expense{
		ID:     c.NextTempID(),
		Title:  strings.TrimSpace(in.Title),
		Amount: in.Amount,
	}
	c.cache.Set(ExpensesKey, append(m.snapshot, optimistic))

	created, err := c.api.Create(ctx, in)
	if err != nil {
		m.rollback()
		slog.WarnContext(ctx, "Create rejected, cache rolled back",
			"title", in.Title, "error", err)
		return core.Expense{}, err
	}

	m.commit()
	return created, nil
}

// PatchExpense optimistically merges the patch into the cached row.
func (c *Coordinator) PatchExpense(ctx context.Context, id int64, patch core.UpdateExpense) (core.Expense, error) {
	m := c.begin(ExpensesKey)
	defer m.settle(ctx)

	rows := copyRows(m.snapshot)
	for i, e := range rows {
		if e.ID == id {
			rows[i] = patch.Apply(e)
		}
	}
	c.cache.Set(ExpensesKey, rows)

	updated, err := c.api.Patch(ctx, id, patch)
	if err != nil {
		m.rollback()
		slog.WarnContext(ctx, "Patch rejected, cache rolled back",
			"expense_id", id, "error", err)
		return core.Expense{}, err
	}

	m.commit()
	return updated, nil
}

// DeleteExpense optimistically filters the row out of the cached listing.
func (c *Coordinator) DeleteExpense(ctx context.Context, id int64) (core.Expense, error) {
	m := c.begin(ExpensesKey)
	defer m.settle(ctx)

	rows := make([]core.Expense, 0, len(m.snapshot))
	for _, e := range m.snapshot {
		if e.ID != id {
			rows = append(rows, e)
		}
	}
	c.cache.Set(ExpensesKey, rows)

	deleted, err := c.api.Delete(ctx, id)
	if err != nil {
		m.rollback()
		slog.WarnContext(ctx, "Delete rejected, cache rolled back",
			"expense_id", id, "error", err)
		return core.Expense{}, err
	}

	m.commit()
	return deleted, nil
}
