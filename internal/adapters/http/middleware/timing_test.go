package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type observed struct {
	method string
	route  string
	status int
	d      time.Duration
	slow   bool
}

type recorder struct {
	mu      sync.Mutex
	entries []observed
}

func (r *recorder) observe(method, route string, status int, d time.Duration, slow bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, observed{method, route, status, d, slow})
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// TestTimingMiddleware_EmitsEntry verifies that a request entry is recorded.
func TestTimingMiddleware_EmitsEntry(t *testing.T) {
	rec := &recorder{}
	handler := Timing(time.Second, rec.observe)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/test", nil))

	if rec.count() != 1 {
		t.Errorf("recorded = %d, want 1", rec.count())
	}
}

// TestTimingMiddleware_SkipsMetrics verifies the scrape endpoint is excluded.
func TestTimingMiddleware_SkipsMetrics(t *testing.T) {
	rec := &recorder{}
	handler := Timing(time.Second, rec.observe)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	if rec.count() != 0 {
		t.Errorf("recorded = %d, want 0 (metrics excluded)", rec.count())
	}
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

// TestTimingMiddleware_CapturesStatusCode verifies the status code is captured.
func TestTimingMiddleware_CapturesStatusCode(t *testing.T) {
	rec := &recorder{}
	handler := Timing(time.Second, rec.observe)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/missing", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if rec.entries[0].status != http.StatusNotFound {
		t.Errorf("observed status = %d, want 404", rec.entries[0].status)
	}
}

// TestTimingMiddleware_NilObserver verifies middleware works without an observer.
func TestTimingMiddleware_NilObserver(t *testing.T) {
	handler := Timing(0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/test", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

// TestTimingMiddleware_RoutePattern verifies the chi pattern, not the raw path, is reported.
func TestTimingMiddleware_RoutePattern(t *testing.T) {
	rec := &recorder{}
	r := chi.NewRouter()
	r.Use(Timing(time.Second, rec.observe))
	r.Get("/api/posts/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/posts/hello-world", nil))

	if rec.count() != 1 {
		t.Fatalf("recorded = %d, want 1", rec.count())
	}
	got := rec.entries[0]
	if got.method != "GET" || got.route != "/api/posts/{slug}" || got.status != http.StatusCreated {
		t.Errorf("entry = %+v", got)
	}
}

// TestTimingMiddleware_SlowFlag verifies requests over the threshold are flagged.
func TestTimingMiddleware_SlowFlag(t *testing.T) {
	rec := &recorder{}
	handler := Timing(time.Millisecond, rec.observe)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/slow", nil))

	if !rec.entries[0].slow {
		t.Errorf("entry = %+v, want slow", rec.entries[0])
	}
	if rec.entries[0].d < 5*time.Millisecond {
		t.Errorf("duration = %v, want >= 5ms", rec.entries[0].d)
	}
}

// --- Resilience: Handler Panic ---

// TestTimingMiddleware_HandlerPanic verifies that a panicking handler does not
// prevent the deferred timing logic from running and does not corrupt the pool.
// Recovery is the Recoverer middleware's job.
func TestTimingMiddleware_HandlerPanic(t *testing.T) {
	rec := &recorder{}
	handler := Timing(time.Second, rec.observe)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic to propagate, got nil")
		}
		if rec.count() != 1 {
			t.Errorf("recorded = %d, want 1 (defer must run even on panic)", rec.count())
		}
	}()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/panic", nil))
}

// --- Resilience: Pool State Isolation ---

// TestTimingMiddleware_PoolNoStateLeak verifies that statusWriter pool reuse
// does not leak status codes between requests.
func TestTimingMiddleware_PoolNoStateLeak(t *testing.T) {
	rec := &recorder{}

	handler500 := Timing(time.Second, rec.observe)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler500.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/fail", nil))

	// Second handler never calls WriteHeader; a leaked 500 would show here.
	handler200 := Timing(time.Second, rec.observe)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	rr2 := httptest.NewRecorder()
	handler200.ServeHTTP(rr2, httptest.NewRequest("GET", "/api/ok", nil))

	if rr2.Code != 200 || rec.entries[1].status != 200 {
		t.Errorf("request 2 status = %d / %d, want 200 (pool must not leak 500)", rr2.Code, rec.entries[1].status)
	}
}

// BenchmarkTimingMiddleware measures per-request overhead.
func BenchmarkTimingMiddleware(b *testing.B) {
	handler := Timing(time.Second, func(string, string, int, time.Duration, bool) {})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest("GET", "/api/bench", nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
