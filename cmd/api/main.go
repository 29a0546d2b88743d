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

	"github.com/fern-folio/bookstore-api/internal/application/auth"
	"github.com/fern-folio/bookstore-api/internal/application/cart"
	"github.com/fern-folio/bookstore-api/internal/application/catalog"
	"github.com/fern-folio/bookstore-api/internal/application/notify"
	"github.com/fern-folio/bookstore-api/internal/application/order"
	"github.com/fern-folio/bookstore-api/internal/application/registration"
	"github.com/fern-folio/bookstore-api/internal/application/user"
	"github.com/fern-folio/bookstore-api/internal/config"
	"github.com/fern-folio/bookstore-api/internal/infrastructure/googlebooks"
	jwtinfra "github.com/fern-folio/bookstore-api/internal/infrastructure/jwt"
	s3infra "github.com/fern-folio/bookstore-api/internal/infrastructure/s3"
	"github.com/fern-folio/bookstore-api/internal/infrastructure/smtp"
	"github.com/fern-folio/bookstore-api/internal/infrastructure/sns"
	"github.com/fern-folio/bookstore-api/internal/pkg/async"
	"github.com/fern-folio/bookstore-api/internal/ratelimit"
	transporthttp "github.com/fern-folio/bookstore-api/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}
	cfg := config.Load()

	if err := run(cfg); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}

	limiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	dispatcher := async.NewDispatcher(cfg.MailWorkers, cfg.MailQueueSize)
	notifyDeps := notify.Deps{
		Dispatcher: dispatcher,
		Mailer:     smtp.NewMailer(cfg),
		BaseURL:    cfg.PublicBaseURL,
	}
	if cfg.SNSOrderTopic != "" {
		events, err := sns.NewPublisher(ctx, cfg)
		if err != nil {
			return fmt.Errorf("sns publisher: %w", err)
		}
		notifyDeps.Events = events
	}
	notifier := notify.New(notifyDeps)

	lookup, err := googlebooks.NewClient(ctx, cfg.GoogleBooksAPIKey, cfg.GoogleBooksRPS)
	if err != nil {
		return fmt.Errorf("google books client: %w", err)
	}
	catalogDeps := catalog.ServiceDeps{BookRepo: st.books, GenreRepo: st.genres, Lookup: lookup}
	if cfg.S3BucketName != "" {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("s3 client: %w", err)
		}
		catalogDeps.Archive = s3infra.NewStore(s3Client, cfg.S3BucketName)
	}

	orders := order.NewService(order.ServiceDeps{
		OrderRepo: st.orders,
		BookRepo:  st.books,
		UserRepo:  st.users,
		Notifier:  notifier,
	})
	deps := &transporthttp.Deps{
		Auth: auth.NewService(auth.ServiceDeps{UserRepo: st.users, TokenIssuer: jwtProvider}),
		Registration: registration.NewService(registration.ServiceDeps{
			UserRepo:              st.users,
			PendingRepo:           st.pending,
			Mailer:                notifier,
			TTL:                   cfg.VerificationTTL,
			AllowPrivilegedSignup: cfg.AllowPrivilegedSignup,
		}),
		Users:   user.NewService(user.ServiceDeps{UserRepo: st.users}),
		Catalog: catalog.NewService(catalogDeps),
		Carts: cart.NewService(cart.ServiceDeps{
			CartRepo:     st.carts,
			BookRepo:     st.books,
			OrderService: orders,
		}),
		Orders:      orders,
		JWTProvider: jwtProvider,
		Limiter:     limiter,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv,
			"store", cfg.StoreBackend, "ratelimit", cfg.RateLimit.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
	}
	// Queued mails still go out after the listener closes.
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		slog.Error("background jobs abandoned", "err", err)
	}
	slog.Info("server stopped")
	return nil
}

// newLimiter builds the limiter on the configured backend. The memory
// backend's janitor stops when ctx is cancelled.
func newLimiter(ctx context.Context, cfg *config.Config) (*ratelimit.Limiter, error) {
	policy := ratelimit.Policy{MaxRequests: cfg.RateLimit.MaxRequests, Window: cfg.RateLimit.Window}
	switch cfg.RateLimit.Backend {
	case "memory":
		store, err := ratelimit.NewMemoryStore(policy, ratelimit.WithCapacity(cfg.RateLimit.MaxClients))
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		go store.RunJanitor(ctx, cfg.RateLimit.Window, time.Now)
		return ratelimit.New(store), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable at startup, limiter will fail open", "addr", cfg.RateLimit.RedisAddr, "err", err)
		}
		store, err := ratelimit.NewRedisStore(rdb, policy)
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		return ratelimit.New(store), nil
	default:
		return nil, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", cfg.RateLimit.Backend)
	}
}
