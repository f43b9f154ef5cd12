package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"newsroom/internal/domain/account"
)

// DefaultStaleDispatch is how long a newsletter may sit in SENDING before it
// counts as stalled.
const DefaultStaleDispatch = 30 * time.Minute

// NewsletterStoreForRecovery defines the store interface needed by RecoverStalledDispatches.
type NewsletterStoreForRecovery interface {
	ReleaseStalled(ctx context.Context, staleBefore, at time.Time) ([]string, error)
}

// RecoverDeps holds dependencies for RecoverStalledDispatches.
type RecoverDeps struct {
	NewsletterStore NewsletterStoreForRecovery
	Now             func() time.Time
	StaleAfter      time.Duration // 0 means DefaultStaleDispatch
}

// ExecuteRecoverStalledDispatches returns stalled SENDING newsletters to DRAFT
// so an editor can review and resend them.
// PRE: principal is an admin
// POST: Every newsletter SENDING for longer than StaleAfter is DRAFT; their ids are returned
func ExecuteRecoverStalledDispatches(ctx context.Context, principal account.Principal, deps RecoverDeps) ([]string, error) {
	if err := requireAdmin(principal, "recover_stalled_dispatches"); err != nil {
		return nil, err
	}
	return releaseStalled(ctx, deps, "admin")
}

// ExecuteStartupRecovery is the startup sweep for dispatches a previous
// process left behind. It runs without a principal.
// PRE: Database is migrated
// POST: Same as ExecuteRecoverStalledDispatches
func ExecuteStartupRecovery(ctx context.Context, deps RecoverDeps) ([]string, error) {
	return releaseStalled(ctx, deps, "startup")
}

func releaseStalled(ctx context.Context, deps RecoverDeps, trigger string) ([]string, error) {
	staleAfter := deps.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleDispatch
	}
	now := deps.Now()
	ids, err := deps.NewsletterStore.ReleaseStalled(ctx, now.Add(-staleAfter), now)
	if err != nil {
		return ids, storeErr("release stalled newsletters", err)
	}
	for _, id := range ids {
		// Delivery progress of the stalled run is unknown; a resend may repeat mail.
		slog.Warn("newsletter_event", "event", "dispatch_released", "newsletter_id", id, "trigger", trigger)
	}
	return ids, nil
}
