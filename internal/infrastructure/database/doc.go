// Package database provides the SQLite connection used by the command audit log.
//
// The pool is pinned to a single connection (SQLite allows one writer) and WAL
// mode is enabled for file-backed databases. Schema changes are versioned SQL
// files applied by Migrate from any fs.FS; the production set is embedded by
// the top-level migrations package.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Audit)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
