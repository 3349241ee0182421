// Package database provides SQLite connectivity for vif run history.
//
// This package manages:
//   - Opening the database file with busy timeout and optional WAL mode
//   - Forward-only schema migrations from an embedded filesystem
//   - Connection lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package and are named
// YYYYMMDD_HHMMSS_description.up.sql. Down files are kept alongside for
// manual rollback but are never applied automatically.
package database
