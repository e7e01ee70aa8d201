package http

import (
	"errors"
	"net/http"

	"expenses/internal/core"
	applog "expenses/internal/log"
)

type expenseRow struct {
	ID       int64
	Name     string
	Amount   string
	Category string
}

type indexView struct {
	Username string
	Expenses []expenseRow
}

type expenseFormView struct {
	Username string
	Title    string
	Action   string
	Error    string
	Name     string
	Amount   string
	Category string
}

type summaryRow struct {
	Category string
	Amount   string
}

type summaryView struct {
	Username string
	Total    string
	Rows     []summaryRow
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	expenses, err := s.expenses.List(r.Context(), user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Listing expenses failed", applog.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	view := indexView{Username: user.Username, Expenses: make([]expenseRow, 0, len(expenses))}
	for _, e := range expenses {
		view.Expenses = append(view.Expenses, expenseRow{
			ID:       e.ID,
			Name:     e.Name,
			Amount:   e.Amount.String(),
			Category: e.Category,
		})
	}
	s.render(w, http.StatusOK, "index.html", view)
}

func (s *Server) handleAddExpenseForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "expense_form.html", expenseFormView{
		Username: currentUser(r).Username,
		Title:    "Add expense",
		Action:   "/add_expense",
	})
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	form, cents, ok := s.parseExpenseForm(w, r, "Add expense", "/add_expense")
	if !ok {
		return
	}

	if _, err := s.expenses.Create(r.Context(), user.ID, form.Name, core.Money{Cents: cents}, form.Category); err != nil {
		s.logger.ErrorContext(r.Context(), "Creating expense failed", applog.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleEditExpenseForm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.renderError(w, http.StatusNotFound, "Expense not found.")
		return
	}

	expense, err := s.expenses.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrExpenseNotFound) {
			s.renderError(w, http.StatusNotFound, "Expense not found.")
			return
		}
		s.logger.ErrorContext(r.Context(), "Loading expense failed", applog.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	s.render(w, http.StatusOK, "expense_form.html", expenseFormView{
		Username: currentUser(r).Username,
		Title:    "Edit expense",
		Action:   "/edit_expense/" + r.PathValue("id"),
		Name:     expense.Name,
		Amount:   expense.Amount.String(),
		Category: expense.Category,
	})
}

func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.renderError(w, http.StatusNotFound, "Expense not found.")
		return
	}

	form, cents, ok := s.parseExpenseForm(w, r, "Edit expense", "/edit_expense/"+r.PathValue("id"))
	if !ok {
		return
	}

	if _, err := s.expenses.Update(r.Context(), id, form.Name, core.Money{Cents: cents}, form.Category); err != nil {
		if errors.Is(err, core.ErrExpenseNotFound) {
			s.renderError(w, http.StatusNotFound, "Expense not found.")
			return
		}
		s.logger.ErrorContext(r.Context(), "Updating expense failed", applog.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.renderError(w, http.StatusNotFound, "Expense not found.")
		return
	}

	// Deleting an id that no longer exists is a no-op, not an error.
	if err := s.expenses.Delete(r.Context(), id); err != nil {
		s.logger.ErrorContext(r.Context(), "Deleting expense failed", applog.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	summary, err := s.expenses.Summarize(r.Context(), user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Summarizing expenses failed", applog.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	view := summaryView{
		Username: user.Username,
		Total:    summary.Total.String(),
		Rows:     make([]summaryRow, 0, len(summary.ByCategory)),
	}
	for _, ct := range summary.ByCategory {
		view.Rows = append(view.Rows, summaryRow{Category: ct.Category, Amount: ct.Total.String()})
	}
	s.render(w, http.StatusOK, "summary.html", view)
}

// parseExpenseForm validates the shared add/edit form. On a malformed amount
// it re-renders the form with the submitted values and reports ok=false.
func (s *Server) parseExpenseForm(w http.ResponseWriter, r *http.Request, title, action string) (expenseFormView, int64, bool) {
	view := expenseFormView{
		Username: currentUser(r).Username,
		Title:    title,
		Action:   action,
	}

	if err := r.ParseForm(); err != nil {
		view.Error = "Invalid form submission."
		s.render(w, http.StatusBadRequest, "expense_form.html", view)
		return view, 0, false
	}

	view.Name = sanitizeInput(r.PostFormValue("name"))
	view.Amount = sanitizeInput(r.PostFormValue("amount"))
	view.Category = sanitizeInput(r.PostFormValue("category"))

	cents, err := core.ParseDecimalToCents(view.Amount)
	if err != nil {
		view.Error = "Invalid amount."
		s.render(w, http.StatusUnprocessableEntity, "expense_form.html", view)
		return view, 0, false
	}

	return view, cents, true
}
