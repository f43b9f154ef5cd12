package orchestrators

import (
	"context"
	"errors"
	"sync"
	"testing"

	"newsroom/internal/adapters/guard"
	subscriberStore "newsroom/internal/adapters/storage/subscriber"
	"newsroom/internal/domain/subscriber"
)

func subscribeDeps(store *mockSubscriberStore) SubscribeDeps {
	return SubscribeDeps{
		SubscriberStore: store,
		Guard:           guard.NewLocalGuard(),
		GenerateID:      idSeq("sub"),
		Now:             clock,
	}
}

// TestSubscribe_New verifies a fresh email creates an active, unverified row.
func TestSubscribe_New(t *testing.T) {
	store := newMockSubscriberStore()
	res, err := ExecuteSubscribe(context.Background(), SubscribeInput{Email: "  Reader@Example.com ", Name: " Ada "}, subscribeDeps(store))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if res.Reactivated {
		t.Error("new subscriber reported as reactivated")
	}
	s := store.byEmail["reader@example.com"]
	if !s.Subscribed || s.Verified || s.Name != "Ada" {
		t.Errorf("stored = %+v", s)
	}
	if store.creates != 1 {
		t.Errorf("creates = %d", store.creates)
	}
}

// TestSubscribe_AlreadyActiveConflicts verifies no duplicate row is written.
func TestSubscribe_AlreadyActiveConflicts(t *testing.T) {
	store := newMockSubscriberStore(subscriber.New("s1", "reader@example.com", "", fixedNow))
	_, err := ExecuteSubscribe(context.Background(), SubscribeInput{Email: "reader@example.com"}, subscribeDeps(store))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if ConflictMessage(err) != "This email is already subscribed" {
		t.Errorf("message = %q", ConflictMessage(err))
	}
	if store.creates != 0 || store.saves != 0 {
		t.Error("no writes expected")
	}
}

// TestSubscribe_Reactivates verifies a lapsed row is turned back on in place.
func TestSubscribe_Reactivates(t *testing.T) {
	lapsed := subscriber.New("s1", "reader@example.com", "", fixedNow)
	lapsed.Subscribed = false
	store := newMockSubscriberStore(lapsed)

	res, err := ExecuteSubscribe(context.Background(), SubscribeInput{Email: "reader@example.com"}, subscribeDeps(store))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !res.Reactivated || res.Subscriber.ID != "s1" {
		t.Errorf("result = %+v", res)
	}
	if !store.byEmail["reader@example.com"].Subscribed || store.creates != 0 {
		t.Error("expected in-place reactivation")
	}
}

// TestSubscribe_Validation verifies the email checks.
func TestSubscribe_Validation(t *testing.T) {
	for _, in := range []string{"", "   ", "not-an-email"} {
		_, err := ExecuteSubscribe(context.Background(), SubscribeInput{Email: in}, subscribeDeps(newMockSubscriberStore()))
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != "email" {
			t.Errorf("%q: err = %v, want ValidationError", in, err)
		}
	}
	_, err := ExecuteSubscribe(context.Background(), SubscribeInput{}, subscribeDeps(newMockSubscriberStore()))
	if err.Error() != "Email is required" {
		t.Errorf("message = %q", err.Error())
	}
}

// TestSubscribe_GuardBusyConflicts verifies a held guard rejects the request.
func TestSubscribe_GuardBusyConflicts(t *testing.T) {
	store := newMockSubscriberStore()
	deps := subscribeDeps(store)
	release, _, _ := deps.Guard.Acquire(context.Background(), "reader@example.com")
	defer release()

	_, err := ExecuteSubscribe(context.Background(), SubscribeInput{Email: "reader@example.com"}, deps)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	if store.creates != 0 {
		t.Error("no row expected while the guard is held")
	}
}

// TestSubscribe_ConcurrentSameEmail verifies exactly one row is created.
func TestSubscribe_ConcurrentSameEmail(t *testing.T) {
	store := newMockSubscriberStore()
	deps := subscribeDeps(store)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ExecuteSubscribe(context.Background(), SubscribeInput{Email: "race@example.com"}, deps)
		}()
	}
	wg.Wait()

	if store.creates != 1 || len(store.byEmail) != 1 {
		t.Errorf("creates = %d rows = %d, want 1/1", store.creates, len(store.byEmail))
	}
}

// TestSubscribe_StoreFailure verifies store errors are wrapped.
func TestSubscribe_StoreFailure(t *testing.T) {
	store := newMockSubscriberStore()
	store.createErr = errors.New("disk full")
	_, err := ExecuteSubscribe(context.Background(), SubscribeInput{Email: "reader@example.com"}, subscribeDeps(store))
	var se *StoreError
	if !errors.As(err, &se) {
		t.Errorf("err = %v, want StoreError", err)
	}
}

// TestUnsubscribe verifies the flag flip, idempotence and unknown emails.
func TestUnsubscribe(t *testing.T) {
	store := newMockSubscriberStore(subscriber.New("s1", "reader@example.com", "", fixedNow))
	deps := subscribeDeps(store)

	if err := ExecuteUnsubscribe(context.Background(), "READER@example.com", deps); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if store.byEmail["reader@example.com"].Subscribed {
		t.Error("still subscribed")
	}
	if err := ExecuteUnsubscribe(context.Background(), "reader@example.com", deps); err != nil {
		t.Errorf("second unsubscribe: %v", err)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
	if err := ExecuteUnsubscribe(context.Background(), "nobody@example.com", deps); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestListSubscribers_RequiresAdmin verifies the gate.
func TestListSubscribers_RequiresAdmin(t *testing.T) {
	store := newMockSubscriberStore(subscriber.New("s1", "reader@example.com", "", fixedNow))
	if _, err := ExecuteListSubscribers(context.Background(), reader, subscriberStore.ListFilter{}, store); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	subs, err := ExecuteListSubscribers(context.Background(), admin, subscriberStore.ListFilter{}, store)
	if err != nil || len(subs) != 1 {
		t.Errorf("list = %v, %v", subs, err)
	}
}
