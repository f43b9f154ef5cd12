package subscriber

import (
	"context"

	domain "newsroom/internal/domain/subscriber"
)

// Store persists Subscriber state.
type Store interface {
	GetByEmail(ctx context.Context, email string) (domain.Subscriber, error)
	// Create inserts a new row; an existing email yields storage.ErrDuplicate.
	Create(ctx context.Context, value domain.Subscriber) error
	Save(ctx context.Context, value domain.Subscriber) error
	ListEligible(ctx context.Context) ([]domain.Subscriber, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Subscriber, error)
	Count(ctx context.Context) (int, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Limit          int
	Offset         int
	SubscribedOnly bool
}
