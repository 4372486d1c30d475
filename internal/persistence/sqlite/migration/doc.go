// Package migration applies versioned SQL migrations to SQLite databases.
//
// Migration files follow the naming convention {version}_{description}.sql
// (for example "001_initial_schema.sql") and are read from an fs.FS, usually
// an embed.FS compiled into the binary. Applied versions and their checksums
// are tracked in the schema_migrations table; each file runs in its own
// transaction.
//
//	db, err := migration.Open(ctx, migration.DefaultSQLiteConfig("calendar.db"))
//	manager := migration.NewManager(migration.NewFSSource(files, "migrations"), migration.NewSQLiteExecutor(db), logger)
//	applied, err := manager.Run(ctx)
package migration
