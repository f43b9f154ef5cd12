package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	postStore "newsroom/internal/adapters/storage/post"
	"newsroom/internal/domain/account"
	"newsroom/internal/domain/post"
)

// PostStoreForAdmin defines the store interface needed by the post orchestrators.
type PostStoreForAdmin interface {
	GetByID(ctx context.Context, id string) (post.Post, error)
	GetBySlug(ctx context.Context, slug string) (post.Post, error)
	Create(ctx context.Context, p post.Post) error
	Update(ctx context.Context, p post.Post) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter postStore.ListFilter) ([]post.Post, error)
}

// CategoryStoreForPosts defines the category lookups posts need.
type CategoryStoreForPosts interface {
	GetByIDs(ctx context.Context, ids []string) ([]post.Category, error)
}

// PostDeps holds dependencies for the post orchestrators.
type PostDeps struct {
	PostStore     PostStoreForAdmin
	CategoryStore CategoryStoreForPosts
	GenerateID    func() string
	Now           func() time.Time
}

// PostInput carries the editable fields of a post.
type PostInput struct {
	Title       string
	Content     string
	Slug        string
	Published   bool
	CategoryIDs []string
}

const msgSlugTaken = "A post with this slug already exists"

// ExecuteCreatePost stores a new post authored by the principal.
// PRE: principal is an admin
// POST: Post and its category memberships persisted; slug derived from title when empty
// INVARIANT: Slugs are unique
func ExecuteCreatePost(ctx context.Context, principal account.Principal, input PostInput, deps PostDeps) (post.Post, error) {
	if err := requireAdmin(principal, "create_post"); err != nil {
		return post.Post{}, err
	}

	now := deps.Now()
	p := post.Post{
		ID:        deps.GenerateID(),
		AuthorID:  principal.AccountID,
		CreatedAt: now,
	}
	if err := applyPostInput(ctx, &p, input, now, deps); err != nil {
		return post.Post{}, err
	}

	if err := deps.PostStore.Create(ctx, p); err != nil {
		return post.Post{}, duplicateOr("create post", msgSlugTaken, err)
	}

	slog.Info("post_event", "event", "created", "post_id", p.ID, "slug", p.Slug, "published", p.Published)
	return p, nil
}

// ExecuteUpdatePost replaces a post's fields and category memberships.
// PRE: principal is an admin; id names an existing post
// POST: Post updated; author and creation time unchanged
func ExecuteUpdatePost(ctx context.Context, principal account.Principal, id string, input PostInput, deps PostDeps) (post.Post, error) {
	if err := requireAdmin(principal, "update_post"); err != nil {
		return post.Post{}, err
	}
	if id == "" {
		return post.Post{}, &ValidationError{Field: "id", Message: "Post ID is required"}
	}

	p, err := deps.PostStore.GetByID(ctx, id)
	if err != nil {
		return post.Post{}, notFoundOr("get post", err)
	}
	if err := applyPostInput(ctx, &p, input, deps.Now(), deps); err != nil {
		return post.Post{}, err
	}

	if err := deps.PostStore.Update(ctx, p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return post.Post{}, notFoundOr("update post", err)
		}
		return post.Post{}, duplicateOr("update post", msgSlugTaken, err)
	}

	slog.Info("post_event", "event", "updated", "post_id", p.ID, "slug", p.Slug)
	return p, nil
}

func applyPostInput(ctx context.Context, p *post.Post, input PostInput, now time.Time, deps PostDeps) error {
	p.Title = strings.TrimSpace(input.Title)
	p.Content = input.Content
	p.Published = input.Published
	p.UpdatedAt = now
	p.Slug = strings.TrimSpace(input.Slug)
	if p.Slug == "" {
		p.Slug = post.Slugify(p.Title)
	}
	if err := p.Validate(); err != nil {
		field := "title"
		if err == post.ErrInvalidSlug {
			field = "slug"
		}
		return invalid(field, err)
	}

	ids := dedupe(input.CategoryIDs)
	p.CategoryIDs = ids
	p.Categories = nil
	if len(ids) == 0 {
		return nil
	}
	cats, err := deps.CategoryStore.GetByIDs(ctx, ids)
	if err != nil {
		return storeErr("get categories", err)
	}
	if len(cats) != len(ids) {
		return &ValidationError{Field: "categoryIds", Message: fmt.Sprintf("%d of %d categories do not exist", len(ids)-len(cats), len(ids))}
	}
	p.Categories = cats
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ExecuteDeletePost removes a post and its memberships.
// PRE: principal is an admin
// POST: Post gone; an unknown id surfaces as a StoreError
func ExecuteDeletePost(ctx context.Context, principal account.Principal, id string, deps PostDeps) error {
	if err := requireAdmin(principal, "delete_post"); err != nil {
		return err
	}
	if id == "" {
		return &ValidationError{Field: "id", Message: "Post ID is required"}
	}
	if err := deps.PostStore.Delete(ctx, id); err != nil {
		return storeErr("delete post", err)
	}
	slog.Info("post_event", "event", "deleted", "post_id", id)
	return nil
}

// ExecuteListPosts returns every post with author name and categories, newest first.
// PRE: principal is an admin
func ExecuteListPosts(ctx context.Context, principal account.Principal, filter postStore.ListFilter, deps PostDeps) ([]post.Post, error) {
	if err := requireAdmin(principal, "list_posts"); err != nil {
		return nil, err
	}
	posts, err := deps.PostStore.List(ctx, filter)
	if err != nil {
		return nil, storeErr("list posts", err)
	}
	return posts, nil
}
