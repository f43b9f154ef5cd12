package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	newsletterStore "newsroom/internal/adapters/storage/newsletter"
	"newsroom/internal/domain/account"
	"newsroom/internal/domain/newsletter"
)

// NewsletterStoreForAdmin defines the store interface needed by the newsletter CRUD orchestrators.
type NewsletterStoreForAdmin interface {
	GetByID(ctx context.Context, id string) (newsletter.Newsletter, error)
	Create(ctx context.Context, n newsletter.Newsletter) error
	Update(ctx context.Context, n newsletter.Newsletter) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter newsletterStore.ListFilter) ([]newsletter.WithAnalytics, error)
}

// NewsletterDeps holds dependencies for the newsletter CRUD orchestrators.
type NewsletterDeps struct {
	NewsletterStore NewsletterStoreForAdmin
	GenerateID      func() string
	Now             func() time.Time
}

// NewsletterInput carries the editable fields of a newsletter.
// A zero ScheduledFor means "no schedule" and yields a DRAFT.
type NewsletterInput struct {
	Title        string
	Content      string
	ScheduledFor time.Time
	Template     string
}

// --- Create ---

// ExecuteCreateNewsletter stores a new DRAFT or SCHEDULED newsletter authored by the principal.
// PRE: principal is an admin
// POST: Newsletter persisted; Status is SCHEDULED iff ScheduledFor was given
func ExecuteCreateNewsletter(ctx context.Context, principal account.Principal, input NewsletterInput, deps NewsletterDeps) (newsletter.Newsletter, error) {
	if err := requireAdmin(principal, "create_newsletter"); err != nil {
		return newsletter.Newsletter{}, err
	}

	now := deps.Now()
	n := newsletter.Newsletter{
		ID:        deps.GenerateID(),
		Title:     strings.TrimSpace(input.Title),
		Content:   input.Content,
		Template:  newsletter.NormalizeTemplate(input.Template),
		AuthorID:  principal.AccountID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyNewsletterInput(&n, input, now); err != nil {
		return newsletter.Newsletter{}, err
	}

	if err := deps.NewsletterStore.Create(ctx, n); err != nil {
		return newsletter.Newsletter{}, storeErr("create newsletter", err)
	}

	slog.Info("newsletter_event", "event", "created", "newsletter_id", n.ID, "status", n.Status, "template", n.Template)
	return n, nil
}

// --- Update ---

// ExecuteUpdateNewsletter edits a DRAFT or SCHEDULED newsletter.
// PRE: principal is an admin; id is non-empty
// POST: Fields replaced and status re-derived from ScheduledFor
// INVARIANT: SENDING, SENT and FAILED newsletters are never edited
func ExecuteUpdateNewsletter(ctx context.Context, principal account.Principal, id string, input NewsletterInput, deps NewsletterDeps) (newsletter.Newsletter, error) {
	if err := requireAdmin(principal, "update_newsletter"); err != nil {
		return newsletter.Newsletter{}, err
	}
	if id == "" {
		return newsletter.Newsletter{}, &ValidationError{Field: "id", Message: "Newsletter ID is required"}
	}

	n, err := deps.NewsletterStore.GetByID(ctx, id)
	if err != nil {
		return newsletter.Newsletter{}, notFoundOr("get newsletter", err)
	}
	if !n.CanEdit() {
		return newsletter.Newsletter{}, conflict(newsletter.ErrNotEditable.Error())
	}

	now := deps.Now()
	n.Title = strings.TrimSpace(input.Title)
	n.Content = input.Content
	n.Template = newsletter.NormalizeTemplate(input.Template)
	n.UpdatedAt = now
	if err := applyNewsletterInput(&n, input, now); err != nil {
		return newsletter.Newsletter{}, err
	}

	if err := deps.NewsletterStore.Update(ctx, n); err != nil {
		// The conditional update misses when a dispatch claimed the row in between.
		if errors.Is(err, sql.ErrNoRows) {
			return newsletter.Newsletter{}, conflict(newsletter.ErrNotEditable.Error())
		}
		return newsletter.Newsletter{}, storeErr("update newsletter", err)
	}

	slog.Info("newsletter_event", "event", "updated", "newsletter_id", n.ID, "status", n.Status)
	return n, nil
}

func applyNewsletterInput(n *newsletter.Newsletter, input NewsletterInput, now time.Time) error {
	if err := n.ApplySchedule(input.ScheduledFor, now); err != nil {
		return invalid("scheduledFor", err)
	}
	if err := n.Validate(); err != nil {
		return invalid(newsletterField(err), err)
	}
	return nil
}

func newsletterField(err error) string {
	switch err {
	case newsletter.ErrEmptyTitle, newsletter.ErrTitleTooLong:
		return "title"
	case newsletter.ErrEmptyContent:
		return "content"
	case newsletter.ErrInvalidTemplate:
		return "template"
	default:
		return ""
	}
}

// --- Delete ---

// ExecuteDeleteNewsletter removes a newsletter and its analytics row.
// PRE: principal is an admin
// POST: Newsletter gone; an unknown id surfaces as a StoreError
func ExecuteDeleteNewsletter(ctx context.Context, principal account.Principal, id string, deps NewsletterDeps) error {
	if err := requireAdmin(principal, "delete_newsletter"); err != nil {
		return err
	}
	if id == "" {
		return &ValidationError{Field: "id", Message: "Newsletter ID is required"}
	}

	if err := deps.NewsletterStore.Delete(ctx, id); err != nil {
		return storeErr("delete newsletter", err)
	}

	slog.Info("newsletter_event", "event", "deleted", "newsletter_id", id)
	return nil
}

// --- Read ---

// ExecuteListNewsletters returns all newsletters with analytics, newest first.
// PRE: principal is an admin
func ExecuteListNewsletters(ctx context.Context, principal account.Principal, filter newsletterStore.ListFilter, deps NewsletterDeps) ([]newsletter.WithAnalytics, error) {
	if err := requireAdmin(principal, "list_newsletters"); err != nil {
		return nil, err
	}
	if filter.Status != "" {
		filter.Status = strings.ToUpper(filter.Status)
	}
	list, err := deps.NewsletterStore.List(ctx, filter)
	if err != nil {
		return nil, storeErr("list newsletters", err)
	}
	return list, nil
}

// ExecuteGetNewsletter returns one newsletter.
// PRE: principal is an admin
func ExecuteGetNewsletter(ctx context.Context, principal account.Principal, id string, deps NewsletterDeps) (newsletter.Newsletter, error) {
	if err := requireAdmin(principal, "get_newsletter"); err != nil {
		return newsletter.Newsletter{}, err
	}
	n, err := deps.NewsletterStore.GetByID(ctx, id)
	if err != nil {
		return newsletter.Newsletter{}, notFoundOr("get newsletter", err)
	}
	return n, nil
}
