// Package auth provides registration, credential verification and session
// management.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"expenses/internal/core"
	"expenses/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a well-formed bcrypt hash compared against on the
// unknown-username path so that it costs the same key derivation as a real
// password check. A short or malformed literal would fail structurally
// before any hashing happens.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("login-timing-pad"), bcrypt.DefaultCost)

// Service implements the authentication flows on top of the store.
type Service struct {
	store      *storage.Store
	sessionTTL time.Duration
}

func NewService(store *storage.Store, sessionTTL time.Duration) *Service {
	return &Service{
		store:      store,
		sessionTTL: sessionTTL,
	}
}

// Register creates a new account and immediately establishes a session for
// it (auto-login, no confirmation step). A taken username yields
// core.ErrDuplicateUsername.
func (s *Service) Register(ctx context.Context, username, password string) (core.User, core.Session, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return core.User{}, core.Session{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, hash)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateUsername) {
			return core.User{}, core.Session{}, core.ErrDuplicateUsername
		}
		return core.User{}, core.Session{}, fmt.Errorf("create user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return core.User{}, core.Session{}, fmt.Errorf("create session: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID, "username", username)
	return user, session, nil
}

// Login verifies the credentials and establishes a session. An unknown
// username and a wrong password both yield core.ErrInvalidCredentials; the
// caller must not be able to tell which one happened.
func (s *Service) Login(ctx context.Context, username, password string) (core.Session, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			// Burn a full hash comparison anyway so the two failure
			// paths cannot be told apart by response time.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return core.Session{}, core.ErrInvalidCredentials
		}
		return core.Session{}, fmt.Errorf("lookup user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return core.Session{}, core.ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return core.Session{}, fmt.Errorf("create session: %w", err)
	}

	slog.InfoContext(ctx, "User logged in", "user_id", user.ID)
	return session, nil
}

// Logout destroys the session for token. It is idempotent: an unknown or
// empty token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// UserFromSession resolves a session token to its user. Expired and unknown
// tokens both yield core.ErrSessionNotFound.
func (s *Service) UserFromSession(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, core.ErrSessionNotFound
	}

	session, err := s.store.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return core.User{}, core.ErrSessionNotFound
		}
		return core.User{}, fmt.Errorf("lookup session: %w", err)
	}

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return core.User{}, fmt.Errorf("lookup session user: %w", err)
	}
	return user, nil
}

// SessionTTL exposes the configured session lifetime, used for cookie
// max-age.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// CleanupExpired removes expired sessions and returns the number reaped.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSessions(ctx)
}

func (s *Service) createSession(ctx context.Context, userID int64) (core.Session, error) {
	session := core.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, session.Token, userID, session.ExpiresAt); err != nil {
		return core.Session{}, err
	}
	return session, nil
}

// HashPassword derives a salted one-way hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
