package services

import (
	"context"
	"errors"
	"testing"

	"scontrini/internal/amqp"
	"scontrini/internal/core"
)

type fakeRepo struct {
	nextID   int64
	expenses map[int64]core.Expense
	order    []int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1, expenses: make(map[int64]core.Expense)}
}

func (f *fakeRepo) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	out := make([]core.Expense, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.expenses[id])
	}
	return out, nil
}

func (f *fakeRepo) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, ok := f.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (f *fakeRepo) CreateExpense(ctx context.Context, in core.CreateExpense) (core.Expense, error) {
	e := core.Expense{ID: f.nextID, Title: in.Title, Amount: in.Amount}
	f.expenses[e.ID] = e
	f.order = append(f.order, e.ID)
	f.nextID++
	return e, nil
}

func (f *fakeRepo) UpdateExpense(ctx context.Context, id int64, patch core.UpdateExpense) (core.Expense, error) {
	e, ok := f.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	merged := patch.Apply(e)
	f.expenses[id] = merged
	return merged, nil
}

func (f *fakeRepo) DeleteExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, ok := f.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	delete(f.expenses, id)
	for i, oid := range f.order {
		if oid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return e, nil
}

type fakePublisher struct {
	events []string
	err    error
}

func (f *fakePublisher) PublishExpenseEvent(ctx context.Context, event string, e core.Expense) error {
	f.events = append(f.events, event)
	return f.err
}

func TestCreatePublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewExpenseService(newFakeRepo(), pub)

	created, err := svc.CreateExpense(context.Background(), core.CreateExpense{Title: "Coffee", Amount: 5})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("missing assigned id: %+v", created)
	}
	if len(pub.events) != 1 || pub.events[0] != amqp.EventExpenseCreated {
		t.Fatalf("expected created event, got %v", pub.events)
	}
}

func TestCreateValidationSkipsStoreAndEvents(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{}
	svc := NewExpenseService(repo, pub)

	_, err := svc.CreateExpense(context.Background(), core.CreateExpense{Title: "ab", Amount: 5})
	if !errors.Is(err, core.ErrTitleTooShort) {
		t.Fatalf("expected title validation error, got %v", err)
	}
	if len(repo.expenses) != 0 || len(pub.events) != 0 {
		t.Fatalf("invalid input reached store or event stream")
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewExpenseService(newFakeRepo(), pub)

	if _, err := svc.CreateExpense(context.Background(), core.CreateExpense{Title: "Coffee", Amount: 5}); err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
}

func TestUpdateAndDeleteEvents(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{}
	svc := NewExpenseService(repo, pub)
	ctx := context.Background()

	created, err := svc.CreateExpense(ctx, core.CreateExpense{Title: "Coffee", Amount: 5})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	amount := int64(9)
	if _, err := svc.UpdateExpense(ctx, created.ID, core.UpdateExpense{Amount: &amount}); err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}
	if _, err := svc.DeleteExpense(ctx, created.ID); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}

	want := []string{amqp.EventExpenseCreated, amqp.EventExpenseUpdated, amqp.EventExpenseDeleted}
	if len(pub.events) != len(want) {
		t.Fatalf("events = %v, want %v", pub.events, want)
	}
	for i := range want {
		if pub.events[i] != want[i] {
			t.Fatalf("events = %v, want %v", pub.events, want)
		}
	}
}

func TestUpdateEmptyPatchRejected(t *testing.T) {
	svc := NewExpenseService(newFakeRepo(), nil)
	_, err := svc.UpdateExpense(context.Background(), 1, core.UpdateExpense{})
	if !errors.Is(err, core.ErrEmptyPatch) {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
}

func TestDeleteUnknownID(t *testing.T) {
	svc := NewExpenseService(newFakeRepo(), &fakePublisher{})
	_, err := svc.DeleteExpense(context.Background(), 999999)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
