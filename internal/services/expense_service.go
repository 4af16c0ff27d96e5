package services

import (
	"context"
	"fmt"
	"log/slog"

	"scontrini/internal/amqp"
	"scontrini/internal/core"
)

// Repository is the slice of the resource store the service needs.
type Repository interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	CreateExpense(ctx context.Context, in core.CreateExpense) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, patch core.UpdateExpense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) (core.Expense, error)
}

// EventPublisher emits expense events for downstream consumers.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, event string, e core.Expense) error
}

// ExpenseService orchestrates expense writes: the row is persisted first,
// then an event is published. Publishing failures are logged and never
// fail the request; the store is the source of truth, the event stream is
// best effort.
type ExpenseService struct {
	repo   Repository
	events EventPublisher
}

func NewExpenseService(repo Repository, events EventPublisher) *ExpenseService {
	return &ExpenseService{repo: repo, events: events}
}

func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.repo.ListExpenses(ctx)
}

func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return s.repo.GetExpense(ctx, id)
}

func (s *ExpenseService) CreateExpense(ctx context.Context, in core.CreateExpense) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	created, err := s.repo.CreateExpense(ctx, in)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	s.publish(ctx, amqp.EventExpenseCreated, created)
	return created, nil
}

func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, patch core.UpdateExpense) (core.Expense, error) {
	if err := patch.Validate(); err != nil {
		return core.Expense{}, err
	}

	merged, err := s.repo.UpdateExpense(ctx, id, patch)
	if err != nil {
		return core.Expense{}, err
	}

	s.publish(ctx, amqp.EventExpenseUpdated, merged)
	return merged, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) (core.Expense, error) {
	deleted, err := s.repo.DeleteExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}

	s.publish(ctx, amqp.EventExpenseDeleted, deleted)
	return deleted, nil
}

func (s *ExpenseService) publish(ctx context.Context, event string, e core.Expense) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishExpenseEvent(ctx, event, e); err != nil {
		// Don't fail the request, the row is already persisted.
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"event", event,
			"expense_id", e.ID,
			"error", err)
	}
}
