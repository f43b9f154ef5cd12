package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"newsroom/internal/adapters/email"
	"newsroom/internal/adapters/guard"
	web "newsroom/internal/adapters/http"
	"newsroom/internal/adapters/http/middleware"
	"newsroom/internal/adapters/metrics"
	"newsroom/internal/adapters/render"
	"newsroom/internal/adapters/storage"
	accountStore "newsroom/internal/adapters/storage/account"
	categoryStore "newsroom/internal/adapters/storage/category"
	newsletterStore "newsroom/internal/adapters/storage/newsletter"
	postStore "newsroom/internal/adapters/storage/post"
	subscriberStore "newsroom/internal/adapters/storage/subscriber"
	"newsroom/internal/application/orchestrators"
	"newsroom/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("startup_failed", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.MigrateDB(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)
	timedDB := storage.NewTimedDB(db, cfg.SlowQuery(), metrics.ObserveQuery)

	accounts := accountStore.NewSQLStore(timedDB)
	if cfg.AdminEmail != "" {
		seedDeps := orchestrators.CreateAccountDeps{AccountStore: accounts, GenerateID: uuid.NewString, Now: time.Now}
		if err := orchestrators.ExecuteSeedAdmin(ctx, seedDeps, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	newsletters := newsletterStore.NewSQLStore(timedDB)
	released, err := orchestrators.ExecuteStartupRecovery(ctx, orchestrators.RecoverDeps{
		NewsletterStore: newsletters,
		Now:             time.Now,
		StaleAfter:      cfg.StaleDispatch,
	})
	if err != nil {
		return fmt.Errorf("recover stalled dispatches: %w", err)
	}
	if len(released) > 0 {
		slog.Warn("startup_recovery", "released", len(released), "newsletter_ids", released)
	}

	identity := email.Identity{
		FromName:    cfg.Email.FromName,
		FromAddress: cfg.Email.FromAddress,
		ReplyTo:     cfg.Email.ReplyTo,
	}
	sender, err := newSender(ctx, cfg, identity)
	if err != nil {
		return err
	}
	subscribeGuard, closeGuard, err := newGuard(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeGuard()

	renderer, err := render.NewNewsletterRenderer()
	if err != nil {
		return fmt.Errorf("newsletter layouts: %w", err)
	}

	sessionKey, err := cfg.SessionKey()
	if err != nil {
		return err
	}
	csrfKey, err := cfg.CSRFAuthKey()
	if err != nil {
		return err
	}
	if cfg.SessionSecret == "" || cfg.CSRFKey == "" {
		slog.Warn("config_warning", "detail", "using random session or CSRF key; sessions will not survive restart")
	}
	if cfg.PublicURL == "" {
		slog.Warn("config_warning", "detail", "PUBLIC_URL unset; newsletters go out without unsubscribe links")
	}

	app := web.New(web.Deps{
		DB:              timedDB,
		AccountStore:    accounts,
		SubscriberStore: subscriberStore.NewSQLStore(timedDB),
		NewsletterStore: newsletters,
		PostStore:       postStore.NewSQLStore(timedDB),
		CategoryStore:   categoryStore.NewSQLStore(timedDB),
		Sender:          sender,
		Renderer:        renderer,
		Markdown:        render.Markdown,
		Guard:           subscribeGuard,
		Sessions:        middleware.NewSessions(sessionKey, cfg.IsProduction()),

		Unsubscribe:             middleware.NewUnsubscribeTokens(sessionKey),
		UnsubscribeBase:         cfg.UnsubscribeBase(),
		RequireUnsubscribeToken: cfg.RequireUnsubscribeToken,

		GenerateID:    uuid.NewString,
		Now:           time.Now,
		StaleDispatch: cfg.StaleDispatch,
	}, web.Options{
		Secure:             cfg.IsProduction(),
		CSRFKey:            csrfKey,
		TrustedOrigins:     cfg.TrustedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		SlowRequest:        cfg.SlowRequest(),
		ObserveRequest:     metrics.ObserveRequest,
		Metrics:            metrics.Handler(),
	})
	defer app.Close()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      app,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting",
			"version", version,
			"addr", cfg.HTTPAddr,
			"env", cfg.Env,
			"dialect", string(dialect),
			"schema", storage.LatestSchemaVersion(),
			"email_provider", cfg.EmailProvider(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server_stopped")
	return nil
}

// newSender picks the outbound transport named by the config. Every
// message is signed as id unless it names its own sender.
func newSender(ctx context.Context, cfg config.Config, id email.Identity) (email.Sender, error) {
	switch cfg.EmailProvider() {
	case config.ProviderResend:
		slog.Info("email_sender_configured", "provider", "resend", "from", id.From())
		return email.NewResendSender(cfg.Email.ResendAPIKey, id), nil
	case config.ProviderSES:
		sender, err := email.NewSESSender(ctx, email.SESConfig{
			Region:          cfg.Email.AWSRegion,
			AccessKeyID:     cfg.Email.SESAccessKey,
			SecretAccessKey: cfg.Email.SESSecretKey,
		}, id)
		if err != nil {
			return nil, fmt.Errorf("ses sender: %w", err)
		}
		slog.Info("email_sender_configured", "provider", "ses", "region", cfg.Email.AWSRegion, "from", id.From())
		return sender, nil
	default:
		if cfg.IsProduction() {
			slog.Warn("email_sender_configured", "provider", "noop", "detail", "email delivery is DISABLED")
		} else {
			slog.Info("email_sender_configured", "provider", "noop")
		}
		return email.NewNoopSender(), nil
	}
}

// newGuard returns the Redis guard when REDIS_ADDR is set, otherwise an
// in-process one. The returned func closes any client it opened.
func newGuard(ctx context.Context, cfg config.Config) (guard.Guard, func(), error) {
	if cfg.Redis.Addr == "" {
		return guard.NewLocalGuard(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	slog.Info("subscribe_guard_configured", "backend", "redis", "addr", cfg.Redis.Addr)
	return guard.NewRedisGuard(client, "newsroom:subscribe", cfg.Redis.GuardTTL), func() { client.Close() }, nil
}
