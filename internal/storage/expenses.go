package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"expenses/internal/core"
)

// CreateExpense inserts a new expense owned by ownerID.
func (s *Store) CreateExpense(ctx context.Context, ownerID int64, name string, amount core.Money, category string) (core.Expense, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO expenses (name, amount_cents, category, user_id) VALUES (?, ?, ?, ?)",
		name, amount.Cents, category, ownerID,
	)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense insert id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"expense_id", id,
		"user_id", ownerID,
		"amount_cents", amount.Cents,
		"category", category)

	return s.GetExpense(ctx, id)
}

// GetExpense retrieves a single expense by id.
func (s *Store) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, amount_cents, category, user_id, created_at FROM expenses WHERE id = ?", id)

	var e core.Expense
	if err := row.Scan(&e.ID, &e.Name, &e.Amount.Cents, &e.Category, &e.OwnerID, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, core.ErrExpenseNotFound
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	return e, nil
}

// UpdateExpense rewrites name, amount and category of the expense with the
// given id. The owner column is never touched. Returns
// core.ErrExpenseNotFound when no row matches.
func (s *Store) UpdateExpense(ctx context.Context, id int64, name string, amount core.Money, category string) (core.Expense, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE expenses SET name = ?, amount_cents = ?, category = ? WHERE id = ?",
		name, amount.Cents, category, id,
	)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense rows affected: %w", err)
	}
	if affected == 0 {
		return core.Expense{}, core.ErrExpenseNotFound
	}

	return s.GetExpense(ctx, id)
}

// DeleteExpense removes the expense with the given id. Deleting an id that
// does not exist is not an error.
func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

// ListExpenses returns all expenses owned by ownerID in insertion order.
func (s *Store) ListExpenses(ctx context.Context, ownerID int64) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, amount_cents, category, user_id, created_at FROM expenses WHERE user_id = ? ORDER BY id ASC",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var e core.Expense
		if err := rows.Scan(&e.ID, &e.Name, &e.Amount.Cents, &e.Category, &e.OwnerID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense row: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	return expenses, nil
}

// SummarizeExpenses computes the grand total and per-category sums for one
// owner. An owner with no expenses yields a zero total and no categories.
func (s *Store) SummarizeExpenses(ctx context.Context, ownerID int64) (core.Summary, error) {
	var summary core.Summary

	row := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE user_id = ?", ownerID)
	if err := row.Scan(&summary.Total.Cents); err != nil {
		return core.Summary{}, fmt.Errorf("sum expenses: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT category, SUM(amount_cents) FROM expenses WHERE user_id = ? GROUP BY category ORDER BY category ASC",
		ownerID,
	)
	if err != nil {
		return core.Summary{}, fmt.Errorf("sum expenses by category: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total.Cents); err != nil {
			return core.Summary{}, fmt.Errorf("scan category sum: %w", err)
		}
		summary.ByCategory = append(summary.ByCategory, ct)
	}
	if err := rows.Err(); err != nil {
		return core.Summary{}, fmt.Errorf("iterate category sums: %w", err)
	}

	return summary, nil
}
