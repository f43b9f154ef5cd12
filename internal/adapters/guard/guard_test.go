package guard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

// TestRedisGuard_ExclusiveUntilRelease verifies a second holder is refused.
func TestRedisGuard_ExclusiveUntilRelease(t *testing.T) {
	mr, client := setupRedis(t)
	g := NewRedisGuard(client, "subscribe", time.Minute)
	ctx := context.Background()

	release, ok, err := g.Acquire(ctx, "reader@example.com")
	if err != nil || !ok {
		t.Fatalf("first Acquire = %v, %v", ok, err)
	}
	if !mr.Exists("subscribe:reader@example.com") {
		t.Error("expected key in redis")
	}

	_, ok, err = g.Acquire(ctx, "reader@example.com")
	if err != nil || ok {
		t.Errorf("second Acquire = %v, %v; want false, nil", ok, err)
	}

	release()
	if mr.Exists("subscribe:reader@example.com") {
		t.Error("expected key removed after release")
	}
	if _, ok, _ := g.Acquire(ctx, "reader@example.com"); !ok {
		t.Error("expected Acquire to succeed after release")
	}
}

// TestRedisGuard_TTLExpiry verifies a crashed holder's key expires.
func TestRedisGuard_TTLExpiry(t *testing.T) {
	mr, client := setupRedis(t)
	g := NewRedisGuard(client, "subscribe", 5*time.Second)
	ctx := context.Background()

	g.Acquire(ctx, "k")
	mr.FastForward(6 * time.Second)

	if _, ok, _ := g.Acquire(ctx, "k"); !ok {
		t.Error("expected Acquire to succeed after TTL")
	}
}

// TestRedisGuard_ReleaseDoesNotStealNewHolder verifies token-checked release.
func TestRedisGuard_ReleaseDoesNotStealNewHolder(t *testing.T) {
	mr, client := setupRedis(t)
	g := NewRedisGuard(client, "subscribe", 5*time.Second)
	ctx := context.Background()

	staleRelease, _, _ := g.Acquire(ctx, "k")
	mr.FastForward(6 * time.Second)
	_, ok, _ := g.Acquire(ctx, "k")
	if !ok {
		t.Fatal("expected new holder")
	}

	staleRelease()
	if !mr.Exists("subscribe:k") {
		t.Error("stale release must not delete the new holder's key")
	}
}

// TestRedisGuard_Unavailable verifies connection errors are returned.
func TestRedisGuard_Unavailable(t *testing.T) {
	mr, client := setupRedis(t)
	mr.Close()
	g := NewRedisGuard(client, "subscribe", time.Second)

	release, ok, err := g.Acquire(context.Background(), "k")
	if err == nil || ok {
		t.Errorf("Acquire = %v, %v; want false and an error", ok, err)
	}
	release()
}

// TestLocalGuard verifies in-process exclusivity and idempotent release.
func TestLocalGuard(t *testing.T) {
	g := NewLocalGuard()
	ctx := context.Background()

	release, ok, _ := g.Acquire(ctx, "k")
	if !ok {
		t.Fatal("first Acquire failed")
	}
	if _, ok, _ := g.Acquire(ctx, "k"); ok {
		t.Error("second Acquire should fail while held")
	}
	if _, ok, _ := g.Acquire(ctx, "other"); !ok {
		t.Error("different key should be independent")
	}
	release()
	release()
	if _, ok, _ := g.Acquire(ctx, "k"); !ok {
		t.Error("Acquire should succeed after release")
	}
}
