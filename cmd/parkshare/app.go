package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/parkshare/internal/application"
	"github.com/example/parkshare/internal/cache"
	"github.com/example/parkshare/internal/config"
	httptransport "github.com/example/parkshare/internal/http"
	"github.com/example/parkshare/internal/notify"
	"github.com/example/parkshare/internal/persistence"
	"github.com/example/parkshare/internal/persistence/migration"
	"github.com/example/parkshare/internal/persistence/postgres"
	"github.com/example/parkshare/internal/persistence/sqlite"
)

// store is the method set shared by the SQLite and PostgreSQL storages.
type store interface {
	persistence.UserRepository
	persistence.SessionRepository
	persistence.SpaceRepository
	persistence.BookingRepository
	Migrate(ctx context.Context) error
	MigrationStatus(ctx context.Context) (*migration.Status, error)
	Close() error
}

// app holds the wired services of one process.
type app struct {
	logger   *slog.Logger
	store    store
	users    *application.UserService
	auth     *application.AuthService
	spaces   *application.SpaceService
	bookings *application.BookingService
	closers  []func() error
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		return postgres.OpenWithConfig(ctx, postgres.DefaultConfig(cfg.PostgresURL), logger)
	case config.DriverSQLite, "":
		return sqlite.OpenWithConfig(sqlite.DefaultConfig(cfg.SQLiteDSN), logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

// newApp opens storage and wires every service. Callers must Close the app.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a := &app{logger: logger, store: st, closers: []func() error{st.Close}}

	listingCache, err := newListingCache(ctx, cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if closer, ok := listingCache.(io.Closer); ok {
		a.closers = append(a.closers, closer.Close)
	}

	userRepo := newUserRepositoryAdapter(st)
	sessionRepo := newSessionRepositoryAdapter(st)
	spaceRepo := newSpaceRepositoryAdapter(st)
	bookingRepo := newBookingRepositoryAdapter(st)

	a.users = application.NewUserServiceWithLogger(userRepo, nil, uuid.NewString, time.Now, logger)
	a.auth = application.NewAuthServiceWithLogger(userRepo, sessionRepo, nil, newSessionToken, time.Now, cfg.SessionTTL, logger)
	a.spaces = application.NewSpaceServiceWithLogger(spaceRepo, listingCache, uuid.NewString, time.Now, logger)

	notifier, err := a.newNotifier(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.bookings = application.NewBookingServiceWithLogger(bookingRepo, spaceRepo, notifier, uuid.NewString, time.Now, logger)

	return a, nil
}

// listingCloser adapts a Redis-backed cache so the app can release its client.
type listingCloser struct {
	*cache.RedisListingCache
	close func() error
}

func (c listingCloser) Close() error { return c.close() }

func newListingCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (application.ListingCache, error) {
	if cfg.RedisURL == "" {
		return cache.NewMemoryListingCache(cfg.ListingCacheTTL, time.Now), nil
	}

	client, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("listing cache backed by redis")
	return listingCloser{
		RedisListingCache: cache.NewRedisListingCache(client, cfg.ListingCacheTTL),
		close:             client.Close,
	}, nil
}

// newNotifier always logs events and adds the configured outbound channel
// behind a circuit breaker.
func (a *app) newNotifier(cfg config.Config) (application.Notifier, error) {
	notifiers := notify.Multi{notify.NewLogNotifier(a.logger)}

	switch cfg.Notifier {
	case config.NotifierAMQP:
		publisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, publisher.Close)
		notifiers = append(notifiers, notify.NewBreakerNotifier(
			notify.NewEventNotifier(publisher),
			notify.DefaultBreakerConfig("amqp"),
			a.logger,
		))
	case config.NotifierSMTP:
		client, err := notify.NewSMTPClient(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, notify.NewBreakerNotifier(
			notify.NewEmailNotifier(client, a.users, cfg.SMTPFrom),
			notify.DefaultBreakerConfig("smtp"),
			a.logger,
		))
	}
	return notifiers, nil
}

// handler builds the HTTP API with request logging and session checks.
func (a *app) handler() http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(a.auth, a.users, a.logger),
		Spaces:         httptransport.NewSpaceHandler(a.spaces, a.logger),
		Bookings:       httptransport.NewBookingHandler(a.bookings, a.logger),
		RequireSession: httptransport.RequireSession(a.auth, a.logger),
		Middleware:     []func(http.Handler) http.Handler{httptransport.RequestLogger(a.logger)},
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newSessionToken() string {
	return randomHex(32)
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
