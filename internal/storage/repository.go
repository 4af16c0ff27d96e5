package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"scontrini/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable store for expense rows. All writers race
// on it with last-write-wins row semantics; it is the single source of
// truth the client cache reconciles against.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListExpenses returns every expense row in insertion order.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, amount, file_url FROM expenses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// GetExpense returns a single row, or core.ErrNotFound.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, amount, file_url FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// CreateExpense inserts a new row and returns it with the assigned id.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, in core.CreateExpense) (core.Expense, error) {
	title := strings.TrimSpace(in.Title)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (title, amount, file_url) VALUES (?, ?, NULL)`,
		title, in.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"expense_id", id,
		"title", title,
		"amount", in.Amount)

	return core.Expense{ID: id, Title: title, Amount: in.Amount}, nil
}

// UpdateExpense merges only the supplied patch fields into the stored row
// and returns the merged result. The read-merge-write runs in one
// transaction so concurrent patches cannot interleave half-applied.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id int64, patch core.UpdateExpense) (core.Expense, error) {
	if patch.IsEmpty() {
		return core.Expense{}, core.Invalid(core.ErrEmptyPatch)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin update tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, title, amount, file_url FROM expenses WHERE id = ?`, id)
	current, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("read expense %d for update: %w", id, err)
	}

	merged := patch.Apply(current)
	if _, err := tx.ExecContext(ctx,
		`UPDATE expenses SET title = ?, amount = ?, file_url = ? WHERE id = ?`,
		merged.Title, merged.Amount, nullable(merged.FileURL), id); err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit update tx: %w", err)
	}

	slog.InfoContext(ctx, "Expense updated",
		"expense_id", id,
		"touches_file", patch.TouchesFile())

	return merged, nil
}

// DeleteExpense removes the row and returns its full prior data.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, title, amount, file_url FROM expenses WHERE id = ?`, id)
	deleted, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("read expense %d for delete: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id); err != nil {
		return core.Expense{}, fmt.Errorf("delete expense %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit delete tx: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted", "expense_id", id)
	return deleted, nil
}

// RecordAuditEvent appends one event row to the audit log. Used by the
// worker consuming expense events from AMQP.
func (r *SQLiteRepository) RecordAuditEvent(ctx context.Context, event string, expenseID int64, payload string) error {
	if payload == "" {
		payload = "{}"
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events (event, expense_id, payload) VALUES (?, ?, ?)`,
		event, expenseID, payload); err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// CountAuditEvents returns the number of recorded events for an expense.
func (r *SQLiteRepository) CountAuditEvents(ctx context.Context, expenseID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_events WHERE expense_id = ?`, expenseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e       core.Expense
		fileURL sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Title, &e.Amount, &fileURL); err != nil {
		return core.Expense{}, err
	}
	if fileURL.Valid {
		e.FileURL = &fileURL.String
	}
	return e, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
