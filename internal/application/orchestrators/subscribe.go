package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"newsroom/internal/adapters/guard"
	"newsroom/internal/adapters/metrics"
	"newsroom/internal/adapters/storage"
	subscriberStore "newsroom/internal/adapters/storage/subscriber"
	"newsroom/internal/domain/account"
	"newsroom/internal/domain/subscriber"
)

// SubscriberStoreForIntake defines the store interface needed by Subscribe and Unsubscribe.
type SubscriberStoreForIntake interface {
	GetByEmail(ctx context.Context, email string) (subscriber.Subscriber, error)
	Create(ctx context.Context, s subscriber.Subscriber) error
	Save(ctx context.Context, s subscriber.Subscriber) error
}

// SubscribeInput carries input for the public subscribe endpoint.
type SubscribeInput struct {
	Email string
	Name  string
}

// SubscribeDeps holds dependencies for Subscribe and Unsubscribe.
type SubscribeDeps struct {
	SubscriberStore SubscriberStoreForIntake
	Guard           guard.Guard
	GenerateID      func() string
	Now             func() time.Time
}

// SubscribeResult tells the caller which branch was taken.
type SubscribeResult struct {
	Subscriber  subscriber.Subscriber
	Reactivated bool
}

// Subscription outcomes counted by metrics.
const (
	subscribeCreated     = "created"
	subscribeReactivated = "reactivated"
	subscribeConflict    = "conflict"
	subscribeInvalid     = "invalid"
)

// ExecuteSubscribe adds or reactivates a subscriber.
// PRE: none; this is a public operation
// POST: A new subscriber is active and unverified, or a lapsed one is active again
// INVARIANT: At most one row per email; concurrent identical requests are serialised by the guard
func ExecuteSubscribe(ctx context.Context, input SubscribeInput, deps SubscribeDeps) (SubscribeResult, error) {
	email := subscriber.NormalizeEmail(input.Email)
	if err := subscriber.ValidateEmail(email); err != nil {
		metrics.IncSubscription(subscribeInvalid)
		return SubscribeResult{}, invalid("email", err)
	}

	release, ok, err := deps.Guard.Acquire(ctx, email)
	if err != nil {
		return SubscribeResult{}, storeErr("acquire subscribe guard", err)
	}
	defer release()
	if !ok {
		slog.Info("subscribe_event", "event", "guard_busy", "email", email)
		metrics.IncSubscription(subscribeConflict)
		return SubscribeResult{}, conflict("A subscription request for this email is already in progress")
	}

	now := deps.Now()
	existing, err := deps.SubscriberStore.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if rerr := existing.Reactivate(now); rerr != nil {
			metrics.IncSubscription(subscribeConflict)
			return SubscribeResult{}, conflict(rerr.Error())
		}
		if err := deps.SubscriberStore.Save(ctx, existing); err != nil {
			return SubscribeResult{}, storeErr("save subscriber", err)
		}
		slog.Info("subscribe_event", "event", "reactivated", "subscriber_id", existing.ID)
		metrics.IncSubscription(subscribeReactivated)
		return SubscribeResult{Subscriber: existing, Reactivated: true}, nil

	case errors.Is(err, sql.ErrNoRows):
		sub := subscriber.New(deps.GenerateID(), email, input.Name, now)
		if err := deps.SubscriberStore.Create(ctx, sub); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				metrics.IncSubscription(subscribeConflict)
				return SubscribeResult{}, conflict(subscriber.ErrAlreadySubscribed.Error())
			}
			return SubscribeResult{}, storeErr("create subscriber", err)
		}
		// Verification email delivery belongs to a separate service; the row stays unverified.
		slog.Info("subscribe_event", "event", "created", "subscriber_id", sub.ID)
		metrics.IncSubscription(subscribeCreated)
		return SubscribeResult{Subscriber: sub}, nil

	default:
		return SubscribeResult{}, storeErr("get subscriber", err)
	}
}

// ExecuteUnsubscribe turns a subscription off. Repeating it is not an error.
// PRE: email is a known subscriber
// POST: Subscribed is false; unknown email yields ErrNotFound
func ExecuteUnsubscribe(ctx context.Context, emailAddr string, deps SubscribeDeps) error {
	email := subscriber.NormalizeEmail(emailAddr)
	if err := subscriber.ValidateEmail(email); err != nil {
		return invalid("email", err)
	}

	sub, err := deps.SubscriberStore.GetByEmail(ctx, email)
	if err != nil {
		return notFoundOr("get subscriber", err)
	}
	if !sub.Unsubscribe(deps.Now()) {
		return nil
	}
	if err := deps.SubscriberStore.Save(ctx, sub); err != nil {
		return storeErr("save subscriber", err)
	}

	slog.Info("subscribe_event", "event", "unsubscribed", "subscriber_id", sub.ID)
	return nil
}

// SubscriberStoreForAdmin defines the store interface needed by ListSubscribers.
type SubscriberStoreForAdmin interface {
	List(ctx context.Context, filter subscriberStore.ListFilter) ([]subscriber.Subscriber, error)
}

// ExecuteListSubscribers returns subscribers newest first.
// PRE: principal is an admin
func ExecuteListSubscribers(ctx context.Context, principal account.Principal, filter subscriberStore.ListFilter, store SubscriberStoreForAdmin) ([]subscriber.Subscriber, error) {
	if err := requireAdmin(principal, "list_subscribers"); err != nil {
		return nil, err
	}
	subs, err := store.List(ctx, filter)
	if err != nil {
		return nil, storeErr("list subscribers", err)
	}
	return subs, nil
}
