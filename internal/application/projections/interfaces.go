package projections

import (
	"context"

	"newsroom/internal/adapters/storage/newsletter"
	"newsroom/internal/adapters/storage/post"
	domainNewsletter "newsroom/internal/domain/newsletter"
	domainPost "newsroom/internal/domain/post"
)

// SubscriberCounter interface for subscriber totals.
type SubscriberCounter interface {
	Count(ctx context.Context) (int, error)
}

// PostStore interface for post queries.
type PostStore interface {
	List(ctx context.Context, filter post.ListFilter) ([]domainPost.Post, error)
	Count(ctx context.Context) (int, error)
}

// NewsletterStore interface for newsletter queries.
type NewsletterStore interface {
	List(ctx context.Context, filter newsletter.ListFilter) ([]domainNewsletter.WithAnalytics, error)
	Count(ctx context.Context) (int, error)
}
