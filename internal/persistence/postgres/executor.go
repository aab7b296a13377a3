package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/parkshare/internal/persistence/migration"
)

// migrationExecutor applies schema migrations through pgx.
type migrationExecutor struct {
	pool *pgxpool.Pool
}

func (e *migrationExecutor) ExecuteMigration(ctx context.Context, m migration.Migration) error {
	return pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
		for _, stmt := range migration.SplitStatements(m.SQL) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return migration.NewDatabaseError(m.Version, stmt, "execute statement", err)
			}
		}
		return nil
	})
}

func (e *migrationExecutor) InitializeVersionTable(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL,
			checksum TEXT,
			execution_time_ms BIGINT
		)`
	if _, err := e.pool.Exec(ctx, query); err != nil {
		return migration.NewDatabaseError("", query, "create schema_migrations table", err)
	}
	return nil
}

func (e *migrationExecutor) RecordMigration(ctx context.Context, m migration.Migration, executionTime time.Duration) error {
	const query = `INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES ($1, $2, $3, $4)`
	if _, err := e.pool.Exec(ctx, query, m.Version, time.Now().UTC(), m.Checksum, executionTime.Milliseconds()); err != nil {
		return migration.NewDatabaseError(m.Version, query, "record migration", err)
	}
	return nil
}

func (e *migrationExecutor) GetAppliedVersions(ctx context.Context) ([]migration.AppliedMigration, error) {
	const query = `
		SELECT version, applied_at, COALESCE(checksum, ''), COALESCE(execution_time_ms, 0)
		FROM schema_migrations
		ORDER BY version ASC`

	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		return nil, migration.NewDatabaseError("", query, "get applied versions", err)
	}
	defer rows.Close()

	var applied []migration.AppliedMigration
	for rows.Next() {
		var (
			record    migration.AppliedMigration
			elapsedMs int64
		)
		if err := rows.Scan(&record.Version, &record.AppliedAt, &record.Checksum, &elapsedMs); err != nil {
			return nil, migration.NewDatabaseError("", query, "scan applied migration", err)
		}
		record.AppliedAt = record.AppliedAt.UTC()
		record.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, record)
	}
	if err := rows.Err(); err != nil {
		return nil, migration.NewDatabaseError("", query, "iterate applied migrations", err)
	}
	return applied, nil
}
