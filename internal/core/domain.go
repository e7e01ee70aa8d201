package core

import (
	"errors"
	"time"
)

type (
	Money struct {
		Cents int64
	}

	// User is an account that owns expenses. PasswordHash is opaque to
	// everything except the auth service.
	User struct {
		ID           int64
		Username     string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Expense is a single recorded expense. Category is a free-form label,
	// used only for grouping in summaries.
	Expense struct {
		ID        int64
		Name      string
		Amount    Money
		Category  string
		OwnerID   int64
		CreatedAt time.Time
	}

	// Session binds a browser client to an authenticated user until logout
	// or expiry.
	Session struct {
		Token     string
		UserID    int64
		ExpiresAt time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrExpenseNotFound    = errors.New("expense not found")
	ErrSessionNotFound    = errors.New("session not found")
)
