package subscriber

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"newsroom/internal/adapters/storage"
	domain "newsroom/internal/domain/subscriber"
)

const selectColumns = "SELECT id, email, name, verified, subscribed, created_at, updated_at FROM subscriber"

// SQLStore implements Store on SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new subscriber store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByEmail retrieves a Subscriber by normalized email.
// PRE: email is normalized
// POST: Returns the entity or an error wrapping sql.ErrNoRows if not found
func (s *SQLStore) GetByEmail(ctx context.Context, email string) (domain.Subscriber, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE email = $1", email)
	entity, err := scanSubscriber(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Subscriber{}, fmt.Errorf("subscriber not found: %w", err)
	}
	return entity, err
}

// Create inserts a new Subscriber.
// PRE: entity is new and its email normalized
// POST: Row inserted, or storage.ErrDuplicate if the email is taken
func (s *SQLStore) Create(ctx context.Context, entity domain.Subscriber) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriber (id, email, name, verified, subscribed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entity.ID,
		entity.Email,
		entity.Name,
		storage.BoolInt(entity.Verified),
		storage.BoolInt(entity.Subscribed),
		storage.FormatTime(entity.CreatedAt),
		storage.FormatTime(entity.UpdatedAt),
	)
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("subscriber %s: %w", entity.Email, storage.ErrDuplicate)
	}
	return err
}

// Save updates the mutable fields of an existing Subscriber.
// PRE: entity exists
// POST: name, flags and updated_at are persisted
func (s *SQLStore) Save(ctx context.Context, entity domain.Subscriber) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE subscriber SET name = $1, verified = $2, subscribed = $3, updated_at = $4 WHERE id = $5`,
		entity.Name,
		storage.BoolInt(entity.Verified),
		storage.BoolInt(entity.Subscribed),
		storage.FormatTime(entity.UpdatedAt),
		entity.ID,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("subscriber %s: %w", entity.ID, sql.ErrNoRows)
	}
	return nil
}

// ListEligible returns every verified and subscribed Subscriber, oldest first.
// POST: Every returned subscriber satisfies IsEligible
func (s *SQLStore) ListEligible(ctx context.Context) ([]domain.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" WHERE verified = 1 AND subscribed = 1 ORDER BY created_at ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// List retrieves Subscribers based on the filter, newest first.
// PRE: filter has valid parameters
// POST: Returns matching entities
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Subscriber, error) {
	var queryBuilder strings.Builder
	var args []any

	queryBuilder.WriteString(selectColumns)
	if filter.SubscribedOnly {
		queryBuilder.WriteString(" WHERE subscribed = 1")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit, filter.Offset)
	queryBuilder.WriteString(" ORDER BY created_at DESC LIMIT $1 OFFSET $2")

	rows, err := s.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// Count returns the total number of subscribers.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subscriber").Scan(&count)
	return count, err
}

func collect(rows *sql.Rows) ([]domain.Subscriber, error) {
	var results []domain.Subscriber
	for rows.Next() {
		entity, err := scanSubscriber(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// scanSubscriber extracts a Subscriber from a row scanner function.
func scanSubscriber(scan func(dest ...any) error) (domain.Subscriber, error) {
	var entity domain.Subscriber
	var verified, subscribed int
	var createdAt, updatedAt string
	err := scan(
		&entity.ID,
		&entity.Email,
		&entity.Name,
		&verified,
		&subscribed,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Subscriber{}, err
	}
	entity.Verified = verified != 0
	entity.Subscribed = subscribed != 0
	entity.CreatedAt, _ = storage.ParseTime(createdAt)
	entity.UpdatedAt, _ = storage.ParseTime(updatedAt)
	return entity, nil
}
