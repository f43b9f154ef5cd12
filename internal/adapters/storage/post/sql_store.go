package post

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"newsroom/internal/adapters/storage"
	domain "newsroom/internal/domain/post"
)

const selectColumns = "SELECT p.id, p.title, p.content, p.slug, p.published, p.author_id, COALESCE(a.name, ''), p.created_at, p.updated_at" +
	" FROM post p LEFT JOIN account a ON a.id = p.author_id"

// SQLStore implements Store on SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new post store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByID retrieves a Post with its categories.
// POST: Returns the entity or an error wrapping sql.ErrNoRows if not found
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Post, error) {
	return s.getOne(ctx, " WHERE p.id = $1", id)
}

// GetBySlug retrieves a Post with its categories by slug.
// POST: Returns the entity or an error wrapping sql.ErrNoRows if not found
func (s *SQLStore) GetBySlug(ctx context.Context, slug string) (domain.Post, error) {
	return s.getOne(ctx, " WHERE p.slug = $1", slug)
}

func (s *SQLStore) getOne(ctx context.Context, where string, arg string) (domain.Post, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+where, arg)
	entity, err := scanPost(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Post{}, fmt.Errorf("post not found: %w", err)
	}
	if err != nil {
		return domain.Post{}, err
	}
	posts := []domain.Post{entity}
	if err := s.attachCategories(ctx, posts); err != nil {
		return domain.Post{}, err
	}
	return posts[0], nil
}

// Create inserts a Post and its category memberships in one transaction.
// PRE: entity has been validated; CategoryIDs exist
// POST: Rows inserted, or storage.ErrDuplicate if the slug is taken
func (s *SQLStore) Create(ctx context.Context, entity domain.Post) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO post (id, title, content, slug, published, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entity.ID,
		entity.Title,
		entity.Content,
		entity.Slug,
		storage.BoolInt(entity.Published),
		entity.AuthorID,
		storage.FormatTime(entity.CreatedAt),
		storage.FormatTime(entity.UpdatedAt),
	)
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("post slug %s: %w", entity.Slug, storage.ErrDuplicate)
	}
	if err != nil {
		return err
	}
	if err := insertMemberships(ctx, tx, entity.ID, entity.CategoryIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// Update rewrites a Post and replaces its category memberships.
// PRE: entity has been validated; CategoryIDs exist
// POST: Row and memberships updated, or an error wrapping sql.ErrNoRows
func (s *SQLStore) Update(ctx context.Context, entity domain.Post) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE post SET title = $1, content = $2, slug = $3, published = $4, updated_at = $5 WHERE id = $6`,
		entity.Title,
		entity.Content,
		entity.Slug,
		storage.BoolInt(entity.Published),
		storage.FormatTime(entity.UpdatedAt),
		entity.ID,
	)
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("post slug %s: %w", entity.Slug, storage.ErrDuplicate)
	}
	if err != nil {
		return err
	}
	if err := requireOneRow(result, entity.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM post_category WHERE post_id = $1", entity.ID); err != nil {
		return err
	}
	if err := insertMemberships(ctx, tx, entity.ID, entity.CategoryIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a Post and its category memberships.
// PRE: id is non-empty
// POST: Rows gone, or an error wrapping sql.ErrNoRows if the id is unknown
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM post_category WHERE post_id = $1", id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM post WHERE id = $1", id)
	if err != nil {
		return err
	}
	if err := requireOneRow(result, id); err != nil {
		return err
	}
	return tx.Commit()
}

// List retrieves Posts with author names and categories, newest first.
// PRE: filter has valid parameters
// POST: Returns matching entities
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Post, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(selectColumns)
	if filter.PublishedOnly {
		queryBuilder.WriteString(" WHERE p.published = 1")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	queryBuilder.WriteString(" ORDER BY p.created_at DESC LIMIT $1 OFFSET $2")

	rows, err := s.db.QueryContext(ctx, queryBuilder.String(), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	var results []domain.Post
	for rows.Next() {
		entity, err := scanPost(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		results = append(results, entity)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.attachCategories(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

// Count returns the total number of posts.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM post").Scan(&count)
	return count, err
}

// attachCategories loads memberships for posts with a single query.
// The post rows must already be closed; SQLite runs on one connection.
func (s *SQLStore) attachCategories(ctx context.Context, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	index := make(map[string]int, len(posts))
	placeholders := make([]string, len(posts))
	args := make([]any, len(posts))
	for i, p := range posts {
		index[p.ID] = i
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = p.ID
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT pc.post_id, c.id, c.name, c.slug, c.created_at FROM post_category pc"+
			" JOIN category c ON c.id = pc.category_id"+
			" WHERE pc.post_id IN ("+strings.Join(placeholders, ", ")+") ORDER BY c.name",
		args...,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var postID, createdAt string
		var c domain.Category
		if err := rows.Scan(&postID, &c.ID, &c.Name, &c.Slug, &createdAt); err != nil {
			return err
		}
		c.CreatedAt, _ = storage.ParseTime(createdAt)
		i := index[postID]
		posts[i].Categories = append(posts[i].Categories, c)
		posts[i].CategoryIDs = append(posts[i].CategoryIDs, c.ID)
	}
	return rows.Err()
}

func insertMemberships(ctx context.Context, tx *sql.Tx, postID string, categoryIDs []string) error {
	for _, categoryID := range categoryIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO post_category (post_id, category_id) VALUES ($1, $2)",
			postID, categoryID,
		); err != nil {
			return err
		}
	}
	return nil
}

func requireOneRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("post %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// scanPost extracts a Post from a row scanner function.
func scanPost(scan func(dest ...any) error) (domain.Post, error) {
	var entity domain.Post
	var published int
	var createdAt, updatedAt string
	err := scan(
		&entity.ID,
		&entity.Title,
		&entity.Content,
		&entity.Slug,
		&published,
		&entity.AuthorID,
		&entity.AuthorName,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Post{}, err
	}
	entity.Published = published != 0
	entity.CreatedAt, _ = storage.ParseTime(createdAt)
	entity.UpdatedAt, _ = storage.ParseTime(updatedAt)
	return entity, nil
}
