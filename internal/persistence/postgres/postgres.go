package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/parkshare/internal/persistence"
	"github.com/example/parkshare/internal/persistence/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeNotNullViolation     = "23502"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	URL string
	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32
	// TxRetries bounds how often a space transaction is re-run after a
	// serialisation failure or deadlock.
	TxRetries int
}

// DefaultConfig returns the settings used by the service for url.
func DefaultConfig(url string) Config {
	return Config{URL: url, MaxConns: 10, TxRetries: 5}
}

// Validate reports configuration values the store cannot use.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("postgres: URL cannot be empty")
	}
	if c.MaxConns < 0 {
		return errors.New("postgres: MaxConns cannot be negative")
	}
	if c.TxRetries < 0 {
		return errors.New("postgres: TxRetries cannot be negative")
	}
	return nil
}

// dbExecutor is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Storage bundles the PostgreSQL repositories over one pgx pool.
type Storage struct {
	*UserRepository
	*SessionRepository
	*SpaceRepository
	*BookingRepository

	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to url using DefaultConfig.
func Open(ctx context.Context, url string) (*Storage, error) {
	return OpenWithConfig(ctx, DefaultConfig(url), nil)
}

// OpenWithConfig connects using the supplied settings.
func OpenWithConfig(ctx context.Context, config Config, logger *slog.Logger) (*Storage, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse database URL: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: create connection pool: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Storage{
		UserRepository:    &UserRepository{db: pool},
		SessionRepository: &SessionRepository{db: pool},
		SpaceRepository:   &SpaceRepository{pool: pool},
		BookingRepository: &BookingRepository{pool: pool, retries: config.TxRetries, logger: logger},
		pool:              pool,
		logger:            logger,
	}, nil
}

// Close releases the pool.
func (s *Storage) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := s.migrationManager().RunMigrations(ctx); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (*migration.Status, error) {
	return s.migrationManager().Status(ctx)
}

func (s *Storage) migrationManager() *migration.Manager {
	return migration.NewManager(
		migration.NewFileScanner(migrationFiles),
		&migrationExecutor{pool: s.pool},
		"migrations",
		s.logger,
	)
}

// withTx runs fn in a transaction with the given options, committing on
// success and rolling back otherwise.
func withTx(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(tx pgx.Tx) error) (err error) {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return mapError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// mapError translates pgx errors into persistence sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", persistence.ErrDuplicate, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", persistence.ErrForeignKeyViolation, pgErr.ConstraintName)
		case codeCheckViolation, codeNotNullViolation:
			return fmt.Errorf("%w: %s", persistence.ErrConstraintViolation, pgErr.Message)
		}
	}
	return err
}

// isRetryable reports whether err is a serialisation failure or deadlock
// after which the whole transaction may be re-run.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

func requireAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
