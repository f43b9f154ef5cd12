package account

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"newsroom/internal/adapters/storage"
	domain "newsroom/internal/domain/account"
)

const selectColumns = "SELECT id, email, name, password_hash, role, created_at FROM account"

// SQLStore implements Store on SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new account store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByID retrieves an Account by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping sql.ErrNoRows if not found
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = $1", id)
	entity, err := scanAccount(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Account{}, fmt.Errorf("account not found: %w", err)
	}
	return entity, err
}

// GetByEmail retrieves an Account by email.
// PRE: email is non-empty
// POST: Returns the entity or an error wrapping sql.ErrNoRows if not found
func (s *SQLStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE email = $1", email)
	entity, err := scanAccount(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Account{}, fmt.Errorf("account not found: %w", err)
	}
	return entity, err
}

// Save persists an Account to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update); a taken email yields storage.ErrDuplicate
func (s *SQLStore) Save(ctx context.Context, entity domain.Account) error {
	fields := []string{"id", "email", "name", "password_hash", "role", "created_at"}
	placeholders := []string{"$1", "$2", "$3", "$4", "$5", "$6"}
	updates := []string{
		"email=excluded.email",
		"name=excluded.name",
		"password_hash=excluded.password_hash",
		"role=excluded.role",
	}

	query := fmt.Sprintf(
		"INSERT INTO account (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)

	_, err := s.db.ExecContext(ctx, query,
		entity.ID,
		entity.Email,
		entity.Name,
		entity.PasswordHash,
		entity.Role,
		storage.FormatTime(entity.CreatedAt),
	)
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("account email %s: %w", entity.Email, storage.ErrDuplicate)
	}
	return err
}

// List retrieves Accounts based on the filter.
// PRE: filter has valid parameters
// POST: Returns matching entities, newest first
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Account, error) {
	var queryBuilder strings.Builder
	var args []any

	queryBuilder.WriteString(selectColumns)
	if filter.Role != "" {
		args = append(args, filter.Role)
		fmt.Fprintf(&queryBuilder, " WHERE role = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)
	fmt.Fprintf(&queryBuilder, " ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Account
	for rows.Next() {
		entity, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the total number of accounts.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM account").Scan(&count)
	return count, err
}

// scanAccount extracts an Account from a row scanner function.
func scanAccount(scan func(dest ...any) error) (domain.Account, error) {
	var entity domain.Account
	var createdAt string
	err := scan(
		&entity.ID,
		&entity.Email,
		&entity.Name,
		&entity.PasswordHash,
		&entity.Role,
		&createdAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	entity.CreatedAt, _ = storage.ParseTime(createdAt)
	return entity, nil
}
