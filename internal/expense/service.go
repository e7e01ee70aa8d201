// Package expense implements the expense CRUD and aggregation operations.
package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"expenses/internal/cache"
	"expenses/internal/core"
	"expenses/internal/storage"
)

// Service wraps the store with per-owner summary caching.
//
// Update and Delete take only the expense id and perform no ownership
// check: any authenticated user may touch any expense by id. This is
// intentionally unchecked and locked in by tests; enforcing ownership here
// is a behavior change, not a bug fix.
type Service struct {
	store     *storage.Store
	summaries *cache.LRU[core.Summary]
}

func NewService(store *storage.Store) *Service {
	return &Service{
		store:     store,
		summaries: cache.NewLRU[core.Summary](256, 5*time.Minute),
	}
}

// List returns all expenses owned by ownerID, oldest first. The order is
// stable across calls.
func (s *Service) List(ctx context.Context, ownerID int64) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, ownerID)
}

// Create records a new expense for ownerID. Amount validation happens at
// the request boundary; zero and negative amounts are accepted here.
func (s *Service) Create(ctx context.Context, ownerID int64, name string, amount core.Money, category string) (core.Expense, error) {
	e, err := s.store.CreateExpense(ctx, ownerID, name, amount, category)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	s.invalidateSummary(ownerID)
	return e, nil
}

// Get returns the expense with the given id regardless of owner.
func (s *Service) Get(ctx context.Context, id int64) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

// Update rewrites name, amount and category of the expense with the given
// id. Returns core.ErrExpenseNotFound when the id does not exist.
func (s *Service) Update(ctx context.Context, id int64, name string, amount core.Money, category string) (core.Expense, error) {
	updated, err := s.store.UpdateExpense(ctx, id, name, amount, category)
	if err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense updated",
		"expense_id", id,
		"owner_id", updated.OwnerID,
		"amount_cents", updated.Amount.Cents)

	s.invalidateSummary(updated.OwnerID)
	return updated, nil
}

// Delete removes the expense with the given id. A missing id is silently
// tolerated and leaves storage unchanged.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.store.GetExpense(ctx, id)
	if err != nil {
		// Missing id: nothing to delete, nothing to invalidate.
		if errors.Is(err, core.ErrExpenseNotFound) {
			return nil
		}
		return fmt.Errorf("load expense: %w", err)
	}

	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted", "expense_id", id, "owner_id", existing.OwnerID)

	s.invalidateSummary(existing.OwnerID)
	return nil
}

// Summarize returns the total and per-category sums over ownerID's
// expenses. Results are cached per owner and invalidated on every mutation.
func (s *Service) Summarize(ctx context.Context, ownerID int64) (core.Summary, error) {
	key := summaryKey(ownerID)
	if summary, ok := s.summaries.Get(key); ok {
		slog.DebugContext(ctx, "Summary cache hit", "owner_id", ownerID)
		return summary, nil
	}

	summary, err := s.store.SummarizeExpenses(ctx, ownerID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize expenses: %w", err)
	}

	s.summaries.Set(key, summary)
	return summary, nil
}

func (s *Service) invalidateSummary(ownerID int64) {
	s.summaries.Delete(summaryKey(ownerID))
}

func summaryKey(ownerID int64) string {
	return strconv.FormatInt(ownerID, 10)
}
