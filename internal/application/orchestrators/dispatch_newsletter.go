package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"newsroom/internal/adapters/email"
	"newsroom/internal/adapters/metrics"
	"newsroom/internal/adapters/render"
	"newsroom/internal/adapters/storage"
	"newsroom/internal/domain/account"
	"newsroom/internal/domain/newsletter"
	"newsroom/internal/domain/subscriber"
)

// DispatchBatchSize bounds the number of concurrent outbound sends.
const DispatchBatchSize = 50

// Delivery outcomes recorded per recipient.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
)

// NewsletterStoreForDispatch defines the store interface needed by DispatchNewsletter.
type NewsletterStoreForDispatch interface {
	GetByID(ctx context.Context, id string) (newsletter.Newsletter, error)
	ClaimForDispatch(ctx context.Context, id string, at time.Time) (bool, error)
	FinishDispatch(ctx context.Context, n newsletter.Newsletter) error
	CreateAnalytics(ctx context.Context, a newsletter.Analytics) error
}

// SubscriberStoreForDispatch defines the subscriber query used by DispatchNewsletter.
type SubscriberStoreForDispatch interface {
	ListEligible(ctx context.Context) ([]subscriber.Subscriber, error)
}

// NewsletterRenderer renders one recipient's copy of a newsletter.
type NewsletterRenderer interface {
	Render(layout string, data render.NewsletterData) (string, error)
}

// DispatchDeps holds dependencies for DispatchNewsletter.
type DispatchDeps struct {
	NewsletterStore NewsletterStoreForDispatch
	SubscriberStore SubscriberStoreForDispatch
	Sender          email.Sender
	Renderer        NewsletterRenderer
	GenerateID      func() string
	Now             func() time.Time
	BatchSize       int // 0 means DispatchBatchSize

	// UnsubscribeLink returns the one-click unsubscribe URL for a recipient.
	// Nil sends without List-Unsubscribe headers.
	UnsubscribeLink func(email string) (string, error)
}

// DeliveryResult is the outcome of one recipient's send.
type DeliveryResult struct {
	Email     string
	Outcome   string
	Error     string
	MessageID string
}

// DispatchResult summarises a dispatch.
type DispatchResult struct {
	NewsletterID   string
	Status         string
	RecipientCount int
	DeliveredCount int
	FailedCount    int
	Results        []DeliveryResult
}

// ExecuteDispatchNewsletter sends a newsletter to every eligible subscriber.
// PRE: principal is an admin; newsletterID names a DRAFT or SCHEDULED newsletter
// POST: Analytics row exists; newsletter is SENT or FAILED; one DeliveryResult per recipient
// INVARIANT: At most DispatchBatchSize sends are in flight; batches run in sequence
// INVARIANT: Only one dispatch per newsletter gets past the SENDING claim
func ExecuteDispatchNewsletter(ctx context.Context, principal account.Principal, newsletterID string, deps DispatchDeps) (DispatchResult, error) {
	if err := requireAdmin(principal, "dispatch_newsletter"); err != nil {
		return DispatchResult{}, err
	}
	if newsletterID == "" {
		return DispatchResult{}, &ValidationError{Field: "newsletterId", Message: "Newsletter ID is required"}
	}
	start := time.Now()

	// Load the newsletter and the recipients concurrently.
	var (
		n          newsletter.Newsletter
		recipients []subscriber.Subscriber
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		n, err = deps.NewsletterStore.GetByID(gctx, newsletterID)
		if err != nil {
			return notFoundOr("get newsletter", err)
		}
		return nil
	})
	g.Go(func() error {
		subs, err := deps.SubscriberStore.ListEligible(gctx)
		if err != nil {
			return storeErr("list eligible subscribers", err)
		}
		recipients = subscriber.FilterEligible(subs)
		return nil
	})
	if err := g.Wait(); err != nil {
		return DispatchResult{}, err
	}

	if err := n.CheckDispatchable(); err != nil {
		return DispatchResult{}, conflict(err.Error())
	}
	// Once claimed, the dispatch runs to completion even if the client goes away.
	ctx = context.WithoutCancel(ctx)
	claimed, err := deps.NewsletterStore.ClaimForDispatch(ctx, n.ID, deps.Now())
	if err != nil {
		return DispatchResult{}, storeErr("claim newsletter", err)
	}
	if !claimed {
		slog.Info("newsletter_event", "event", "dispatch_rejected", "newsletter_id", n.ID, "reason", "claimed")
		return DispatchResult{}, conflict(newsletter.ErrAlreadyDispatching.Error())
	}
	n.Status = newsletter.StatusSending

	slog.Info("newsletter_event", "event", "dispatch_started", "newsletter_id", n.ID, "recipients", len(recipients))

	result := DispatchResult{NewsletterID: n.ID, RecipientCount: len(recipients)}

	a := newsletter.NewAnalytics(deps.GenerateID(), n.ID, deps.Now())
	if err := deps.NewsletterStore.CreateAnalytics(ctx, a); err != nil && !errors.Is(err, storage.ErrDuplicate) {
		return result, finishFailed(ctx, &n, &result, storeErr("create analytics", err), start, deps)
	}

	result.Results = sendInBatches(ctx, n, recipients, deps)
	for _, r := range result.Results {
		switch r.Outcome {
		case OutcomeDelivered:
			result.DeliveredCount++
		case OutcomeFailed:
			result.FailedCount++
		}
	}

	if len(recipients) > 0 && result.DeliveredCount == 0 {
		return result, finishFailed(ctx, &n, &result, errors.New("every delivery failed"), start, deps)
	}

	n.MarkSent(deps.Now())
	if err := deps.NewsletterStore.FinishDispatch(ctx, n); err != nil {
		return result, &DispatchError{NewsletterID: n.ID, Err: storeErr("finish dispatch", err)}
	}
	result.Status = n.Status
	metrics.ObserveDispatch(n.Status, time.Since(start))

	slog.Info("newsletter_event", "event", "dispatch_finished",
		"newsletter_id", n.ID,
		"status", n.Status,
		"delivered", result.DeliveredCount,
		"failed", result.FailedCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// sendInBatches sends to recipients DispatchBatchSize at a time. A failed
// send is recorded against its recipient and never stops the loop.
// POST: len(results) == len(recipients)
func sendInBatches(ctx context.Context, n newsletter.Newsletter, recipients []subscriber.Subscriber, deps DispatchDeps) []DeliveryResult {
	size := deps.BatchSize
	if size <= 0 {
		size = DispatchBatchSize
	}
	results := make([]DeliveryResult, 0, len(recipients))
	year := deps.Now().Year()

	for startIdx := 0; startIdx < len(recipients); startIdx += size {
		end := min(startIdx+size, len(recipients))
		batch := recipients[startIdx:end]
		out := make([]DeliveryResult, len(batch))

		var wg sync.WaitGroup
		for i, sub := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				out[i] = deliver(ctx, n, sub, year, deps)
			}()
		}
		wg.Wait()

		results = append(results, out...)
		slog.Debug("newsletter_event", "event", "batch_sent", "newsletter_id", n.ID, "from", startIdx, "to", end)
	}
	return results
}

func deliver(ctx context.Context, n newsletter.Newsletter, sub subscriber.Subscriber, year int, deps DispatchDeps) DeliveryResult {
	res := DeliveryResult{Email: sub.Email}

	html, err := deps.Renderer.Render(n.Template, render.NewsletterData{
		Title:           n.Title,
		Content:         n.Content,
		SubscriberName:  sub.DisplayName(),
		SubscriberEmail: sub.Email,
		Year:            year,
	})
	if err == nil {
		var sent email.SendResult
		sent, err = deps.Sender.Send(ctx, email.SendRequest{
			To:      []string{sub.Email},
			Subject: n.Title,
			HTML:    html,
			Headers: unsubscribeHeaders(n.ID, sub.Email, deps),
			Tags:    map[string]string{"newsletter_id": n.ID},
		})
		res.MessageID = sent.MessageID
	}
	if err != nil {
		terr := &TransportError{Recipient: sub.Email, Err: err}
		slog.Warn("newsletter_event", "event", "delivery_failed", "newsletter_id", n.ID, "error", terr)
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		metrics.IncDelivery(OutcomeFailed)
		return res
	}
	res.Outcome = OutcomeDelivered
	metrics.IncDelivery(OutcomeDelivered)
	return res
}

// unsubscribeHeaders builds the RFC 8058 one-click headers, or nil when no
// link can be issued.
func unsubscribeHeaders(newsletterID, addr string, deps DispatchDeps) map[string]string {
	if deps.UnsubscribeLink == nil {
		return nil
	}
	link, err := deps.UnsubscribeLink(addr)
	if err != nil {
		slog.Warn("newsletter_event", "event", "unsubscribe_link_failed", "newsletter_id", newsletterID, "error", err)
		return nil
	}
	return map[string]string{
		"List-Unsubscribe":      "<" + link + ">",
		"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
	}
}

// finishFailed marks the newsletter FAILED and returns the DispatchError for cause.
func finishFailed(ctx context.Context, n *newsletter.Newsletter, result *DispatchResult, cause error, start time.Time, deps DispatchDeps) error {
	n.MarkFailed(deps.Now())
	result.Status = n.Status
	if err := deps.NewsletterStore.FinishDispatch(ctx, *n); err != nil {
		slog.Error("newsletter_event", "event", "mark_failed_error", "newsletter_id", n.ID, "error", err)
	}
	metrics.ObserveDispatch(n.Status, time.Since(start))
	slog.Error("newsletter_event", "event", "dispatch_failed",
		"newsletter_id", n.ID,
		"delivered", result.DeliveredCount,
		"failed", result.FailedCount,
		"error", cause,
	)
	return &DispatchError{NewsletterID: n.ID, Err: cause}
}
