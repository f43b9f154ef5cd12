package post

import (
	"context"

	domain "newsroom/internal/domain/post"
)

// Store persists Post state and category membership.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Post, error)
	GetBySlug(ctx context.Context, slug string) (domain.Post, error)
	Create(ctx context.Context, value domain.Post) error
	Update(ctx context.Context, value domain.Post) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Post, error)
	Count(ctx context.Context) (int, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Limit         int
	Offset        int
	PublishedOnly bool
}
