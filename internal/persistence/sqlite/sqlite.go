package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/parkshare/internal/persistence/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	*UserRepository
	*SessionRepository
	*SpaceRepository
	*BookingRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Open returns a Storage for the database at dsn using DefaultConfig.
func Open(dsn string) (*Storage, error) {
	return OpenWithConfig(DefaultConfig(dsn), nil)
}

// OpenWithConfig returns a Storage using the supplied connection settings.
func OpenWithConfig(config Config, logger *slog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Storage{
		UserRepository:    NewUserRepository(pool),
		SessionRepository: NewSessionRepository(pool),
		SpaceRepository:   NewSpaceRepository(pool),
		BookingRepository: NewBookingRepository(pool),
		pool:              pool,
		logger:            logger,
	}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := s.migrationManager()
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
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
		newMigrationExecutor(s.pool.DB()),
		"migrations",
		s.logger,
	)
}
