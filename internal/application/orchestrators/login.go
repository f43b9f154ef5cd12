package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"newsroom/internal/domain/account"
	"newsroom/internal/domain/subscriber"
)

// AccountStoreForLogin defines the store interface needed by Login.
type AccountStoreForLogin interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	Email    string
	Password string
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	AccountStore AccountStoreForLogin
}

// ErrInvalidCredentials is the single answer for any failed login, so that
// callers cannot discover which emails have accounts.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ExecuteLogin validates credentials and returns the principal to put in a session.
// PRE: Valid email and password provided
// POST: Returns the principal on success, ErrInvalidCredentials otherwise
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (account.Principal, error) {
	email := subscriber.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return account.Anonymous, ErrInvalidCredentials
	}

	acct, err := deps.AccountStore.GetByEmail(ctx, email)
	if err != nil {
		slog.Info("auth_event", "event", "login_failed", "email", email, "reason", "not_found")
		return account.Anonymous, ErrInvalidCredentials
	}

	if err := acct.CheckPassword(input.Password); err != nil {
		slog.Info("auth_event", "event", "login_failed", "email", email, "reason", "wrong_password")
		return account.Anonymous, ErrInvalidCredentials
	}

	slog.Info("auth_event", "event", "login_success", "email", email, "role", acct.Role)
	return account.PrincipalFor(acct), nil
}

// requireAdmin is the gate every privileged orchestrator calls first.
func requireAdmin(p account.Principal, op string) error {
	if !p.IsAdmin() {
		slog.Info("auth_event", "event", "denied", "op", op, "account_id", p.AccountID, "role", p.Role)
		return ErrUnauthorized
	}
	return nil
}
