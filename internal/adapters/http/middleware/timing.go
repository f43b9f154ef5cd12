package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// DefaultSlowRequest is the default threshold for slow request warnings.
const DefaultSlowRequest = 500 * time.Millisecond

// RequestObserver receives one call per finished request. route is the
// matched chi pattern, or "" when nothing matched.
type RequestObserver func(method, route string, status int, d time.Duration, slow bool)

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the underlying ResponseWriter.
// PRE: code is a valid HTTP status code
// POST: status stored, header written to underlying ResponseWriter
func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// statusWriterPool reduces allocations on the hot path.
var statusWriterPool = sync.Pool{
	New: func() any {
		return &statusWriter{}
	},
}

// Timing returns middleware that logs request duration and reports it to observe.
// Normal requests log at DEBUG; slow requests (at or above threshold) log at WARN.
// /metrics is not timed.
func Timing(threshold time.Duration, observe RequestObserver) func(http.Handler) http.Handler {
	if threshold <= 0 {
		threshold = DefaultSlowRequest
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := statusWriterPool.Get().(*statusWriter)
			sw.ResponseWriter = w
			sw.status = http.StatusOK
			defer func() {
				d := time.Since(start)
				slow := d >= threshold
				route := ""
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					route = rctx.RoutePattern()
				}

				attrs := []any{
					"request_id", chimw.GetReqID(r.Context()),
					"method", r.Method,
					"path", path,
					"route", route,
					"status", sw.status,
					"duration_ms", float64(d.Microseconds()) / 1000.0,
				}
				if slow {
					slog.Warn("slow_request", attrs...)
				} else {
					slog.Debug("request", attrs...)
				}

				if observe != nil {
					observe(r.Method, route, sw.status, d, slow)
				}

				sw.ResponseWriter = nil
				statusWriterPool.Put(sw)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
