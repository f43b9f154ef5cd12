package guard

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard serialises work on a key. Acquire never blocks: a key already held
// by another caller reports ok=false and the caller should back off.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// DefaultTTL bounds how long a crashed holder can keep a Redis key.
const DefaultTTL = 10 * time.Second

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisGuard holds keys in Redis with SET NX and a TTL, so that every
// process sharing the Redis instance sees the same holder.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisGuard creates a guard whose keys are namespaced by prefix.
func NewRedisGuard(client *redis.Client, prefix string, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, prefix: prefix, ttl: ttl}
}

// Acquire tries to take key.
// POST: ok is true iff this call now holds key; release is never nil
func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), bool, error) {
	b := make([]byte, 16)
	rand.Read(b)
	token := hex.EncodeToString(b)
	fullKey := fmt.Sprintf("%s:%s", g.prefix, key)

	ok, err := g.client.SetNX(ctx, fullKey, token, g.ttl).Result()
	if err != nil {
		return func() {}, false, fmt.Errorf("acquire %s: %w", fullKey, err)
	}
	if !ok {
		return func() {}, false, nil
	}
	release := func() {
		// Release with a fresh context so a cancelled request still frees the key.
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		releaseScript.Run(ctx, g.client, []string{fullKey}, token)
	}
	return release, true, nil
}

// LocalGuard is the in-process fallback used when no Redis is configured.
type LocalGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalGuard creates an empty in-process guard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[string]struct{})}
}

// Acquire tries to take key.
// POST: ok is true iff this call now holds key; release is never nil
func (g *LocalGuard) Acquire(_ context.Context, key string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[key]; busy {
		return func() {}, false, nil
	}
	g.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, true, nil
}
