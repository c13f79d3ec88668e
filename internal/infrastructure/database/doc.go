// Package database provides SQLite connectivity for the fluxline run log.
//
// It wraps database/sql with the mattn/go-sqlite3 driver, handling
// directory creation, pragmas (WAL, busy timeout, foreign keys), file
// permissions, and health checks.
//
// The run log is the only SQLite consumer in fluxline; points never touch
// this database — they live in InfluxDB only.
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        "./data/fluxline.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
package database
