// Package database provides the SQLite connection behind the gamepad
// assignment journal.
//
// It manages:
//   - The connection, with WAL mode and a busy timeout
//   - Versioned migrations embedded in the binary
//   - Health checks
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql. Tables are declared STRICT.
package database
