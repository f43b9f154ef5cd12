package category

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"newsroom/internal/adapters/storage"
	domain "newsroom/internal/domain/post"
)

const selectColumns = "SELECT id, name, slug, created_at FROM category"

// SQLStore implements Store on SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new category store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetBySlug retrieves a Category by slug.
// POST: Returns the entity or an error wrapping sql.ErrNoRows if not found
func (s *SQLStore) GetBySlug(ctx context.Context, slug string) (domain.Category, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE slug = $1", slug)
	entity, err := scanCategory(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Category{}, fmt.Errorf("category not found: %w", err)
	}
	return entity, err
}

// GetByIDs retrieves the Categories whose id is in ids.
// POST: Missing ids are silently absent from the result
func (s *SQLStore) GetByIDs(ctx context.Context, ids []string) ([]domain.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := selectColumns + " WHERE id IN (" + strings.Join(placeholders, ", ") + ") ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// Create inserts a new Category.
// PRE: entity has been validated
// POST: Row inserted, or storage.ErrDuplicate if name or slug is taken
func (s *SQLStore) Create(ctx context.Context, entity domain.Category) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO category (id, name, slug, created_at) VALUES ($1, $2, $3, $4)",
		entity.ID, entity.Name, entity.Slug, storage.FormatTime(entity.CreatedAt),
	)
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("category %s: %w", entity.Slug, storage.ErrDuplicate)
	}
	return err
}

// Delete removes a Category and its post memberships.
// PRE: id is non-empty
// POST: Category gone, or an error wrapping sql.ErrNoRows if the id is unknown
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM post_category WHERE category_id = $1", id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM category WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", id, sql.ErrNoRows)
	}
	return tx.Commit()
}

// List returns all Categories ordered by name.
func (s *SQLStore) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows *sql.Rows) ([]domain.Category, error) {
	var results []domain.Category
	for rows.Next() {
		entity, err := scanCategory(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

func scanCategory(scan func(dest ...any) error) (domain.Category, error) {
	var entity domain.Category
	var createdAt string
	if err := scan(&entity.ID, &entity.Name, &entity.Slug, &createdAt); err != nil {
		return domain.Category{}, err
	}
	entity.CreatedAt, _ = storage.ParseTime(createdAt)
	return entity, nil
}
