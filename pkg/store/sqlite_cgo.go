//go:build cgo

package store

import (
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// CgoSQLiteDriver is the mattn/go-sqlite3 driver name, available in cgo builds.
const CgoSQLiteDriver = "sqlite3"

func init() {
	sqliteDrivers[CgoSQLiteDriver] = true
}
