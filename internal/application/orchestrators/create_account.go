package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"newsroom/internal/domain/account"
	"newsroom/internal/domain/subscriber"
)

// AccountStoreForCreate defines the store interface needed by CreateAccount.
type AccountStoreForCreate interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
	Count(ctx context.Context) (int, error)
}

// CreateAccountInput carries input for the orchestrator.
type CreateAccountInput struct {
	Email    string
	Name     string
	Password string
	Role     string
}

// CreateAccountDeps holds dependencies for CreateAccount.
type CreateAccountDeps struct {
	AccountStore AccountStoreForCreate
	GenerateID   func() string
	Now          func() time.Time
}

// ExecuteCreateAccount coordinates account creation.
// PRE: Valid email, password >= 12 chars, valid role
// POST: Account created with hashed password
// INVARIANT: Email must be unique
func ExecuteCreateAccount(ctx context.Context, input CreateAccountInput, deps CreateAccountDeps) (string, error) {
	email := subscriber.NormalizeEmail(input.Email)

	_, err := deps.AccountStore.GetByEmail(ctx, email)
	if err == nil {
		return "", conflict("an account with this email already exists")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", storeErr("get account", err)
	}

	acct := account.Account{
		ID:        deps.GenerateID(),
		Email:     email,
		Name:      input.Name,
		Role:      input.Role,
		CreatedAt: deps.Now(),
	}
	if err := acct.Validate(); err != nil {
		field := "email"
		if err == account.ErrInvalidRole {
			field = "role"
		}
		return "", invalid(field, err)
	}
	if err := acct.SetPassword(input.Password); err != nil {
		return "", invalid("password", err)
	}

	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return "", duplicateOr("save account", "an account with this email already exists", err)
	}

	slog.Info("auth_event", "event", "account_created", "email", email, "role", input.Role)
	return acct.ID, nil
}

// ExecuteSeedAdmin creates the first admin account if no accounts exist.
// PRE: Database is migrated
// POST: Admin account created if count == 0; a no-op otherwise
func ExecuteSeedAdmin(ctx context.Context, deps CreateAccountDeps, email, password string) error {
	count, err := deps.AccountStore.Count(ctx)
	if err != nil {
		return storeErr("count accounts", err)
	}
	if count > 0 {
		return nil
	}

	_, err = ExecuteCreateAccount(ctx, CreateAccountInput{
		Email:    email,
		Name:     "Administrator",
		Password: password,
		Role:     account.RoleAdmin,
	}, deps)
	if err != nil {
		return err
	}

	slog.Info("auth_event", "event", "admin_seeded", "email", email)
	return nil
}
