package category

import (
	"context"

	domain "newsroom/internal/domain/post"
)

// Store persists Category state.
type Store interface {
	GetBySlug(ctx context.Context, slug string) (domain.Category, error)
	// GetByIDs returns the categories that exist among ids.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Category, error)
	Create(ctx context.Context, value domain.Category) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Category, error)
}
