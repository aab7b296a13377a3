// Package migration applies versioned SQL schema files to a database.
//
// Migration files are read from an fs.FS (usually an embed.FS owned by the
// storage package) and must follow the naming convention
// {version}_{description}.sql, for example "001_initial_schema.sql".
// Applied versions are tracked in a schema_migrations table maintained by the
// driver specific Executor.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewFileScanner(files), executor, "migrations", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
