package orchestrators

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"newsroom/internal/domain/account"
	"newsroom/internal/domain/post"
)

// CategoryStoreForAdmin defines the store interface needed by the category orchestrators.
type CategoryStoreForAdmin interface {
	Create(ctx context.Context, c post.Category) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]post.Category, error)
}

// CategoryDeps holds dependencies for the category orchestrators.
type CategoryDeps struct {
	CategoryStore CategoryStoreForAdmin
	GenerateID    func() string
	Now           func() time.Time
}

// CategoryInput carries input for creating a category.
type CategoryInput struct {
	Name string
	Slug string
}

// ExecuteCreateCategory stores a new category.
// PRE: principal is an admin
// POST: Category persisted; slug derived from name when empty
// INVARIANT: Names and slugs are unique
func ExecuteCreateCategory(ctx context.Context, principal account.Principal, input CategoryInput, deps CategoryDeps) (post.Category, error) {
	if err := requireAdmin(principal, "create_category"); err != nil {
		return post.Category{}, err
	}

	c := post.Category{
		ID:        deps.GenerateID(),
		Name:      strings.TrimSpace(input.Name),
		Slug:      strings.TrimSpace(input.Slug),
		CreatedAt: deps.Now(),
	}
	if c.Slug == "" {
		c.Slug = post.Slugify(c.Name)
	}
	if err := c.Validate(); err != nil {
		field := "name"
		if err == post.ErrInvalidSlug {
			field = "slug"
		}
		return post.Category{}, invalid(field, err)
	}

	if err := deps.CategoryStore.Create(ctx, c); err != nil {
		return post.Category{}, duplicateOr("create category", "A category with this name or slug already exists", err)
	}

	slog.Info("post_event", "event", "category_created", "category_id", c.ID, "slug", c.Slug)
	return c, nil
}

// ExecuteDeleteCategory removes a category and its post memberships.
// PRE: principal is an admin
// POST: Category gone; posts keep their other categories
func ExecuteDeleteCategory(ctx context.Context, principal account.Principal, id string, deps CategoryDeps) error {
	if err := requireAdmin(principal, "delete_category"); err != nil {
		return err
	}
	if id == "" {
		return &ValidationError{Field: "id", Message: "Category ID is required"}
	}
	if err := deps.CategoryStore.Delete(ctx, id); err != nil {
		return storeErr("delete category", err)
	}
	slog.Info("post_event", "event", "category_deleted", "category_id", id)
	return nil
}

// ExecuteListCategories returns all categories by name.
// PRE: principal is an admin
func ExecuteListCategories(ctx context.Context, principal account.Principal, deps CategoryDeps) ([]post.Category, error) {
	if err := requireAdmin(principal, "list_categories"); err != nil {
		return nil, err
	}
	cats, err := deps.CategoryStore.List(ctx)
	if err != nil {
		return nil, storeErr("list categories", err)
	}
	return cats, nil
}
