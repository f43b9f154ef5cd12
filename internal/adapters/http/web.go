package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"newsroom/internal/adapters/email"
	"newsroom/internal/adapters/guard"
	"newsroom/internal/adapters/http/middleware"
	accountStore "newsroom/internal/adapters/storage/account"
	categoryStore "newsroom/internal/adapters/storage/category"
	newsletterStore "newsroom/internal/adapters/storage/newsletter"
	postStore "newsroom/internal/adapters/storage/post"
	subscriberStore "newsroom/internal/adapters/storage/subscriber"
	"newsroom/internal/application/orchestrators"
)

// NewsletterStore is the newsletter store plus its analytics rows.
type NewsletterStore interface {
	newsletterStore.Store
	newsletterStore.AnalyticsStore
}

// Pinger reports database reachability for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds everything the handlers call into.
type Deps struct {
	DB              Pinger
	AccountStore    accountStore.Store
	SubscriberStore subscriberStore.Store
	NewsletterStore NewsletterStore
	PostStore       postStore.Store
	CategoryStore   categoryStore.Store

	Sender   email.Sender
	Renderer orchestrators.NewsletterRenderer
	Markdown func(string) (string, error)
	Guard    guard.Guard
	Sessions *middleware.Sessions

	// Unsubscribe signs one-click links. UnsubscribeBase is the absolute
	// endpoint they point at; empty sends newsletters without links.
	Unsubscribe             *middleware.UnsubscribeTokens
	UnsubscribeBase         string
	RequireUnsubscribeToken bool

	GenerateID func() string
	Now        func() time.Time

	// StaleDispatch is how long a newsletter may stay SENDING before
	// recovery releases it; 0 means the orchestrator default.
	StaleDispatch time.Duration
}

// Options tunes the middleware stack.
type Options struct {
	Secure             bool // HTTPS deployment: secure cookies, HSTS, strict origin checks
	CSRFKey            []byte
	TrustedOrigins     []string
	RateLimitPerSecond int
	SlowRequest        time.Duration
	ObserveRequest     middleware.RequestObserver
	Metrics            http.Handler // mounted at /metrics when non-nil
}

// App is the HTTP surface of the service.
type App struct {
	deps    Deps
	router  chi.Router
	limiter *middleware.RateLimiter
}

// New wires routes and middleware.
// PRE: every store in deps is non-nil; opts.CSRFKey is 32 bytes
// POST: Returns an App ready to serve; call Close on shutdown
func New(deps Deps, opts Options) *App {
	rate := opts.RateLimitPerSecond
	if rate <= 0 {
		rate = 10
	}
	a := &App{
		deps:    deps,
		router:  chi.NewRouter(),
		limiter: middleware.NewRateLimiter(rate, time.Second),
	}

	r := a.router
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		middleware.Timing(opts.SlowRequest, opts.ObserveRequest),
		chimw.Recoverer,
		middleware.SecurityHeaders(opts.Secure),
		middleware.Auth(deps.Sessions),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", a.handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	limited := middleware.RateLimit(a.limiter)
	// CSRF runs after the admin check so a missing session is a 401, not a 403.
	csrfProtect := middleware.CSRF(middleware.CSRFOptions{
		AuthKey:        opts.CSRFKey,
		Secure:         opts.Secure,
		TrustedOrigins: opts.TrustedOrigins,
	})
	r.Route("/api", func(r chi.Router) {
		r.With(limited, csrfProtect).Post("/auth/login", a.handleLogin)
		r.With(csrfProtect).Post("/auth/logout", a.handleLogout)
		r.With(csrfProtect).Get("/auth/csrf", a.handleCSRFToken)

		r.With(limited, csrfProtect).Post("/subscribe", a.handleSubscribe)
		r.With(limited, csrfProtect).Post("/unsubscribe", a.handleUnsubscribe)
		// The signed token authenticates the one-click POST mail clients
		// send without a CSRF token.
		r.With(limited).Post("/unsubscribe/one-click", a.handleUnsubscribeOneClick)
		r.Get("/posts", a.handlePublicPosts)
		r.Get("/posts/{slug}", a.handlePublicPost)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin, csrfProtect)

			r.Get("/dashboard", a.handleDashboard)

			r.Get("/newsletters", a.handleNewslettersGet)
			r.Post("/newsletters", a.handleNewsletterCreate)
			r.Put("/newsletters", a.handleNewsletterUpdate)
			r.Delete("/newsletters", a.handleNewsletterDelete)
			r.Post("/newsletters/send", a.handleNewsletterSend)
			r.Post("/newsletters/recover", a.handleNewsletterRecover)

			r.Get("/posts", a.handlePostsList)
			r.Post("/posts", a.handlePostCreate)
			r.Put("/posts", a.handlePostUpdate)
			r.Delete("/posts", a.handlePostDelete)

			r.Get("/categories", a.handleCategoriesList)
			r.Post("/categories", a.handleCategoryCreate)
			r.Delete("/categories", a.handleCategoryDelete)

			r.Get("/subscribers", a.handleSubscribersList)
		})
	})

	return a
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Close stops background work owned by the App.
func (a *App) Close() {
	a.limiter.Stop()
}
