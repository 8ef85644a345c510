// ABOUTME: database/sql drivers available to SQLiteStore.
// ABOUTME: modernc.org/sqlite is pure Go; mattn/go-sqlite3 needs cgo.

package store

import (
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverSQLite is the pure-Go modernc.org/sqlite driver.
	DriverSQLite = "sqlite"

	// DriverSQLite3 is the cgo mattn/go-sqlite3 driver.
	DriverSQLite3 = "sqlite3"
)
