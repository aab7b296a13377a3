package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/parkshare/internal/persistence/migration"
)

// migrationExecutor applies schema migrations through database/sql.
type migrationExecutor struct {
	db *sql.DB
}

func newMigrationExecutor(db *sql.DB) *migrationExecutor {
	return &migrationExecutor{db: db}
}

func (e *migrationExecutor) ExecuteMigration(ctx context.Context, m migration.Migration) (err error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return migration.NewDatabaseError(m.Version, "", "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range migration.SplitStatements(m.SQL) {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return migration.NewDatabaseError(m.Version, stmt, "execute statement", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return migration.NewDatabaseError(m.Version, "", "commit transaction", err)
	}
	return nil
}

func (e *migrationExecutor) InitializeVersionTable(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT,
			execution_time_ms INTEGER
		)`
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return migration.NewDatabaseError("", query, "create schema_migrations table", err)
	}
	return nil
}

func (e *migrationExecutor) RecordMigration(ctx context.Context, m migration.Migration, executionTime time.Duration) error {
	const query = `INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`
	if _, err := e.db.ExecContext(ctx, query, m.Version, formatTime(time.Now()), m.Checksum, executionTime.Milliseconds()); err != nil {
		return migration.NewDatabaseError(m.Version, query, "record migration", err)
	}
	return nil
}

func (e *migrationExecutor) GetAppliedVersions(ctx context.Context) ([]migration.AppliedMigration, error) {
	const query = `
		SELECT version, applied_at, COALESCE(checksum, ''), COALESCE(execution_time_ms, 0)
		FROM schema_migrations
		ORDER BY version ASC`

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, migration.NewDatabaseError("", query, "get applied versions", err)
	}
	defer rows.Close()

	var applied []migration.AppliedMigration
	for rows.Next() {
		var (
			record    migration.AppliedMigration
			appliedAt string
			elapsedMs int64
		)
		if err := rows.Scan(&record.Version, &appliedAt, &record.Checksum, &elapsedMs); err != nil {
			return nil, migration.NewDatabaseError("", query, "scan applied migration", err)
		}
		if record.AppliedAt, err = parseTime(appliedAt); err != nil {
			return nil, migration.NewDatabaseError(record.Version, query, "parse applied_at", err)
		}
		record.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, record)
	}
	if err := rows.Err(); err != nil {
		return nil, migration.NewDatabaseError("", query, "iterate applied migrations", err)
	}
	return applied, nil
}
