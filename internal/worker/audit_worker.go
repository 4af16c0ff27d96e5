package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"scontrini/internal/amqp"
)

// Handler processes one expense event.
type Handler func(ctx context.Context, msg *amqp.ExpenseEventMessage) error

// WithTimeout bounds each handled event so a stuck store write cannot
// stall the consume loop; the broker redelivers after the nack.
func WithTimeout(d time.Duration, handler Handler) Handler {
	return func(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return handler(ctx, msg)
	}
}

// AuditRecorder is the slice of storage the worker writes to.
type AuditRecorder interface {
	RecordAuditEvent(ctx context.Context, event string, expenseID int64, payload string) error
}

// AuditWorker consumes expense events and appends them to the audit log.
// It is deliberately dumb: one event in, one row out; redelivery after a
// failed write is handled by the broker.
type AuditWorker struct {
	recorder AuditRecorder
}

func NewAuditWorker(recorder AuditRecorder) *AuditWorker {
	return &AuditWorker{recorder: recorder}
}

// HandleEvent records a single expense event.
func (w *AuditWorker) HandleEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	payload, err := json.Marshal(msg.Expense)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	if err := w.recorder.RecordAuditEvent(ctx, msg.Event, msg.Expense.ID, string(payload)); err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}

	slog.InfoContext(ctx, "Audit event recorded",
		"event", msg.Event,
		"expense_id", msg.Expense.ID)

	return nil
}
