package projections

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"newsroom/internal/adapters/storage/newsletter"
	"newsroom/internal/adapters/storage/post"
	"newsroom/internal/application/orchestrators"
	"newsroom/internal/domain/account"
)

// RecentLimit is how many recent posts and newsletters the dashboard shows.
const RecentLimit = 5

// GetDashboardDeps holds dependencies for the dashboard projection.
type GetDashboardDeps struct {
	SubscriberStore SubscriberCounter
	PostStore       PostStore
	NewsletterStore NewsletterStore
}

// RecentItem is one row of a dashboard "recent" list.
type RecentItem struct {
	ID        string
	Title     string
	Status    string // newsletters only
	Published bool   // posts only
	CreatedAt time.Time
}

// DashboardResult carries the output of the dashboard projection.
type DashboardResult struct {
	SubscriberCount   int
	PostCount         int
	NewsletterCount   int
	RecentPosts       []RecentItem
	RecentNewsletters []RecentItem
}

// GetDashboard collects admin overview stats. The five reads are independent
// and run concurrently; the first failure cancels the rest.
// PRE: principal is an admin
// POST: Returns counts and up to RecentLimit recent posts and newsletters
func GetDashboard(ctx context.Context, principal account.Principal, deps GetDashboardDeps) (DashboardResult, error) {
	if !principal.IsAdmin() {
		return DashboardResult{}, orchestrators.ErrUnauthorized
	}

	var result DashboardResult
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := deps.SubscriberStore.Count(gctx)
		if err != nil {
			return fmt.Errorf("count subscribers: %w", err)
		}
		result.SubscriberCount = n
		return nil
	})
	g.Go(func() error {
		n, err := deps.PostStore.Count(gctx)
		if err != nil {
			return fmt.Errorf("count posts: %w", err)
		}
		result.PostCount = n
		return nil
	})
	g.Go(func() error {
		n, err := deps.NewsletterStore.Count(gctx)
		if err != nil {
			return fmt.Errorf("count newsletters: %w", err)
		}
		result.NewsletterCount = n
		return nil
	})
	g.Go(func() error {
		posts, err := deps.PostStore.List(gctx, post.ListFilter{Limit: RecentLimit})
		if err != nil {
			return fmt.Errorf("recent posts: %w", err)
		}
		for _, p := range posts {
			result.RecentPosts = append(result.RecentPosts, RecentItem{ID: p.ID, Title: p.Title, Published: p.Published, CreatedAt: p.CreatedAt})
		}
		return nil
	})
	g.Go(func() error {
		list, err := deps.NewsletterStore.List(gctx, newsletter.ListFilter{Limit: RecentLimit})
		if err != nil {
			return fmt.Errorf("recent newsletters: %w", err)
		}
		for _, n := range list {
			result.RecentNewsletters = append(result.RecentNewsletters, RecentItem{ID: n.ID, Title: n.Title, Status: n.Status, CreatedAt: n.CreatedAt})
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return DashboardResult{}, &orchestrators.StoreError{Op: "dashboard", Err: err}
	}
	return result, nil
}
