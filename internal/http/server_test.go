package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"expenses/internal/auth"
	"expenses/internal/expense"
	applog "expenses/internal/log"
	"expenses/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()

	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	authSvc := auth.NewService(store, time.Hour)
	expSvc := expense.NewService(store)
	return NewServer(":0", authSvc, expSvc, false, nil), store
}

func doGet(srv *Server, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func doPost(srv *Server, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

// register creates an account through the HTTP flow and returns its session
// cookie.
func register(t *testing.T, srv *Server, username string) *http.Cookie {
	t.Helper()

	rr := doPost(srv, "/register", url.Values{
		"username": {username},
		"password": {"secret123"},
	}, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("register status = %d, want %d", rr.Code, http.StatusSeeOther)
	}

	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("register did not set a session cookie")
	return nil
}

func addExpense(t *testing.T, srv *Server, cookie *http.Cookie, name, amount, category string) {
	t.Helper()

	rr := doPost(srv, "/add_expense", url.Values{
		"name":     {name},
		"amount":   {amount},
		"category": {category},
	}, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("add expense status = %d, want %d (body: %s)", rr.Code, http.StatusSeeOther, rr.Body.String())
	}
}

func TestUnauthenticatedRequestsRedirectToLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	paths := []string{"/", "/add_expense", "/summary", "/edit_expense/1"}
	for _, path := range paths {
		rr := doGet(srv, path, nil)
		if rr.Code != http.StatusFound {
			t.Errorf("GET %s status = %d, want %d", path, rr.Code, http.StatusFound)
		}
		if loc := rr.Header().Get("Location"); loc != "/login" {
			t.Errorf("GET %s redirects to %q, want /login", path, loc)
		}
	}
}

func TestRegisterLogsNewAccountIn(t *testing.T) {
	srv, _ := newTestServer(t)

	cookie := register(t, srv, "alice")

	rr := doGet(srv, "/", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "alice") {
		t.Error("index does not show the logged-in username")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	srv, _ := newTestServer(t)
	register(t, srv, "alice")

	rr := doPost(srv, "/register", url.Values{
		"username": {"alice"},
		"password": {"other"},
	}, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want %d", rr.Code, http.StatusConflict)
	}
	if !strings.Contains(rr.Body.String(), "already taken") {
		t.Error("duplicate register response missing error message")
	}
}

func TestRegisterRequiresUsernameAndPassword(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doPost(srv, "/register", url.Values{"username": {""}, "password": {""}}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty register status = %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	srv, _ := newTestServer(t)
	register(t, srv, "alice")

	wrongPassword := doPost(srv, "/login", url.Values{
		"username": {"alice"},
		"password": {"not-the-password"},
	}, nil)
	unknownUser := doPost(srv, "/login", url.Values{
		"username": {"nobody"},
		"password": {"whatever"},
	}, nil)

	if wrongPassword.Code != http.StatusUnauthorized || unknownUser.Code != http.StatusUnauthorized {
		t.Fatalf("failure statuses = %d / %d, want both %d",
			wrongPassword.Code, unknownUser.Code, http.StatusUnauthorized)
	}
	if wrongPassword.Body.String() != unknownUser.Body.String() {
		t.Error("wrong password and unknown user produce different response bodies")
	}
}

func TestLoginSuccess(t *testing.T) {
	srv, _ := newTestServer(t)
	register(t, srv, "alice")

	rr := doPost(srv, "/login", url.Values{
		"username": {"alice"},
		"password": {"secret123"},
	}, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d, want %d", rr.Code, http.StatusSeeOther)
	}
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Errorf("login redirects to %q, want /", loc)
	}

	var sessionCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("login did not set a session cookie")
	}
}

func TestAuthPagesRedirectWhenAlreadyLoggedIn(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	for _, path := range []string{"/login", "/register"} {
		rr := doGet(srv, path, cookie)
		if rr.Code != http.StatusFound {
			t.Errorf("GET %s status = %d, want %d", path, rr.Code, http.StatusFound)
		}
		if loc := rr.Header().Get("Location"); loc != "/" {
			t.Errorf("GET %s redirects to %q, want /", path, loc)
		}
	}
}

func TestAddExpenseAppearsInList(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	addExpense(t, srv, cookie, "Coffee", "3.50", "Food")

	rr := doGet(srv, "/", cookie)
	body := rr.Body.String()
	if !strings.Contains(body, "Coffee") || !strings.Contains(body, "3.50") || !strings.Contains(body, "Food") {
		t.Errorf("index does not show the new expense: %s", body)
	}
}

func TestAddExpenseInvalidAmountRerendersForm(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	rr := doPost(srv, "/add_expense", url.Values{
		"name":     {"Coffee"},
		"amount":   {"not-a-number"},
		"category": {"Food"},
	}, cookie)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid amount status = %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Invalid amount") {
		t.Error("form missing the amount error")
	}
	if !strings.Contains(body, "Coffee") {
		t.Error("re-rendered form lost the submitted name")
	}

	// Nothing was stored.
	list := doGet(srv, "/", cookie)
	if strings.Contains(list.Body.String(), "Coffee") {
		t.Error("invalid submission still created an expense")
	}
}

func TestNegativeAndZeroAmountsAccepted(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	addExpense(t, srv, cookie, "Refund", "-5.00", "Shopping")
	addExpense(t, srv, cookie, "Freebie", "0", "Misc")

	body := doGet(srv, "/", cookie).Body.String()
	if !strings.Contains(body, "-5.00") || !strings.Contains(body, "0.00") {
		t.Errorf("negative or zero amount missing from list: %s", body)
	}
}

func TestDeleteExpense(t *testing.T) {
	srv, store := newTestServer(t)
	cookie := register(t, srv, "alice")
	addExpense(t, srv, cookie, "Coffee", "3.50", "Food")

	user, err := store.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("looking up user: %v", err)
	}
	expenses, err := store.ListExpenses(context.Background(), user.ID)
	if err != nil || len(expenses) != 1 {
		t.Fatalf("expected one stored expense, got %d (err %v)", len(expenses), err)
	}

	rr := doPost(srv, "/delete_expense/"+itoa(expenses[0].ID), nil, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("delete status = %d, want %d", rr.Code, http.StatusSeeOther)
	}
	if body := doGet(srv, "/", cookie).Body.String(); strings.Contains(body, "Coffee") {
		t.Error("deleted expense still listed")
	}
}

func TestDeleteMissingExpenseIsNoOp(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")
	addExpense(t, srv, cookie, "Coffee", "3.50", "Food")

	rr := doPost(srv, "/delete_expense/99999", nil, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("delete of missing id status = %d, want %d", rr.Code, http.StatusSeeOther)
	}
	if body := doGet(srv, "/", cookie).Body.String(); !strings.Contains(body, "Coffee") {
		t.Error("existing expense disappeared after a no-op delete")
	}
}

func TestEditExpense(t *testing.T) {
	srv, store := newTestServer(t)
	cookie := register(t, srv, "alice")
	addExpense(t, srv, cookie, "Coffee", "3.50", "Food")

	user, _ := store.GetUserByUsername(context.Background(), "alice")
	expenses, _ := store.ListExpenses(context.Background(), user.ID)
	id := itoa(expenses[0].ID)

	form := doGet(srv, "/edit_expense/"+id, cookie)
	if form.Code != http.StatusOK || !strings.Contains(form.Body.String(), "Coffee") {
		t.Fatalf("edit form status = %d, body missing current values", form.Code)
	}

	rr := doPost(srv, "/edit_expense/"+id, url.Values{
		"name":     {"Espresso"},
		"amount":   {"2.00"},
		"category": {"Food"},
	}, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("edit status = %d, want %d", rr.Code, http.StatusSeeOther)
	}

	body := doGet(srv, "/", cookie).Body.String()
	if !strings.Contains(body, "Espresso") || strings.Contains(body, "Coffee") {
		t.Error("edit did not replace the expense in the list")
	}
}

func TestEditMissingExpenseIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	if rr := doGet(srv, "/edit_expense/99999", cookie); rr.Code != http.StatusNotFound {
		t.Errorf("edit form for missing id status = %d, want 404", rr.Code)
	}
	rr := doPost(srv, "/edit_expense/99999", url.Values{
		"name":     {"Ghost"},
		"amount":   {"1.00"},
		"category": {"Misc"},
	}, cookie)
	if rr.Code != http.StatusNotFound {
		t.Errorf("edit of missing id status = %d, want 404", rr.Code)
	}
}

func TestEditAnotherUsersExpenseSucceeds(t *testing.T) {
	srv, store := newTestServer(t)

	aliceCookie := register(t, srv, "alice")
	bobCookie := register(t, srv, "bob")
	addExpense(t, srv, aliceCookie, "Coffee", "3.50", "Food")

	alice, _ := store.GetUserByUsername(context.Background(), "alice")
	expenses, _ := store.ListExpenses(context.Background(), alice.ID)
	id := itoa(expenses[0].ID)

	rr := doPost(srv, "/edit_expense/"+id, url.Values{
		"name":     {"Hijacked"},
		"amount":   {"9.99"},
		"category": {"Other"},
	}, bobCookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("cross-user edit status = %d, want %d", rr.Code, http.StatusSeeOther)
	}

	// The expense still belongs to alice and shows her the change.
	body := doGet(srv, "/", aliceCookie).Body.String()
	if !strings.Contains(body, "Hijacked") {
		t.Error("cross-user edit did not update the expense")
	}
}

func TestSummary(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	addExpense(t, srv, cookie, "Coffee", "3.50", "Food")
	addExpense(t, srv, cookie, "Lunch", "12.00", "Food")
	addExpense(t, srv, cookie, "Bus", "2.40", "Transport")

	body := doGet(srv, "/summary", cookie).Body.String()
	for _, want := range []string{"17.90", "15.50", "2.40", "Food", "Transport"} {
		if !strings.Contains(body, want) {
			t.Errorf("summary missing %q: %s", want, body)
		}
	}
}

func TestSummaryEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	rr := doGet(srv, "/summary", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("empty summary status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "0.00") {
		t.Error("empty summary does not show a zero total")
	}
}

func TestSummaryScopedToUser(t *testing.T) {
	srv, _ := newTestServer(t)

	aliceCookie := register(t, srv, "alice")
	bobCookie := register(t, srv, "bob")
	addExpense(t, srv, aliceCookie, "Coffee", "3.50", "Food")

	body := doGet(srv, "/summary", bobCookie).Body.String()
	if strings.Contains(body, "3.50") {
		t.Error("summary leaked another user's expenses")
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	rr := doGet(srv, "/logout", cookie)
	if rr.Code != http.StatusFound {
		t.Fatalf("logout status = %d, want %d", rr.Code, http.StatusFound)
	}
	if loc := rr.Header().Get("Location"); !strings.HasPrefix(loc, "/login") {
		t.Errorf("logout redirects to %q, want /login", loc)
	}

	// The old cookie no longer works.
	if rr := doGet(srv, "/", cookie); rr.Code != http.StatusFound {
		t.Errorf("stale session status = %d, want redirect", rr.Code)
	}

	// Logging out twice is harmless.
	if rr := doGet(srv, "/logout", cookie); rr.Code != http.StatusFound {
		t.Errorf("second logout status = %d, want redirect", rr.Code)
	}
}

func TestServerUsesInjectedLogger(t *testing.T) {
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var buf bytes.Buffer
	logger := applog.New(applog.Config{
		Level:     slog.LevelDebug,
		Component: applog.ComponentApp,
		Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})

	srv := NewServer(":0", auth.NewService(store, time.Hour), expense.NewService(store), false, logger)

	doGet(srv, "/login", nil)

	out := buf.String()
	if !strings.Contains(out, "Request handled") {
		t.Fatalf("request log did not reach the injected logger: %s", out)
	}
	if !strings.Contains(out, applog.ComponentHTTP) {
		t.Errorf("request log missing http component tag: %s", out)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doGet(srv, path, nil)
		if rr.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rr.Code)
		}
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
