package newsletter

import (
	"context"
	"time"

	domain "newsroom/internal/domain/newsletter"
)

// Store persists Newsletter state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Newsletter, error)
	Create(ctx context.Context, value domain.Newsletter) error
	Update(ctx context.Context, value domain.Newsletter) error
	// Delete removes the newsletter and its analytics row.
	// A missing id is an error wrapping sql.ErrNoRows.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.WithAnalytics, error)
	Count(ctx context.Context) (int, error)
	// ClaimForDispatch moves the newsletter to SENDING in one conditional
	// update. It reports false when the status was not DRAFT or SCHEDULED.
	ClaimForDispatch(ctx context.Context, id string, at time.Time) (bool, error)
	// FinishDispatch writes the terminal status of a SENDING newsletter.
	FinishDispatch(ctx context.Context, value domain.Newsletter) error
	// ReleaseStalled returns SENDING newsletters last touched before
	// staleBefore to DRAFT and reports their ids.
	ReleaseStalled(ctx context.Context, staleBefore, at time.Time) ([]string, error)
}

// AnalyticsStore persists Analytics rows.
type AnalyticsStore interface {
	CreateAnalytics(ctx context.Context, value domain.Analytics) error
	GetAnalytics(ctx context.Context, newsletterID string) (domain.Analytics, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Limit  int
	Offset int
	Status string
}
