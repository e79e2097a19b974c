// Package migrations embeds the ledger schema for both supported stores.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Store names accepted by Up.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Up applies every pending migration for store to db. The caller keeps
// ownership of db.
func Up(db *sql.DB, store string) (uint, error) {
	var (
		driver database.Driver
		err    error
	)
	switch store {
	case Postgres:
		driver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	case SQLite:
		driver, err = sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	default:
		return 0, fmt.Errorf("migrations: unknown store %q", store)
	}
	if err != nil {
		return 0, fmt.Errorf("migrations: %s driver: %w", store, err)
	}
	src, err := iofs.New(files, store)
	if err != nil {
		return 0, fmt.Errorf("migrations: source: %w", err)
	}
	defer src.Close()

	m, err := migrate.NewWithInstance("iofs", src, store, driver)
	if err != nil {
		return 0, fmt.Errorf("migrations: init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrations: up: %w", err)
	}
	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("migrations: version: %w", err)
	}
	return version, nil
}
