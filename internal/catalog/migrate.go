package catalog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/entwine-go/entwine/pkg/log"
)

//go:embed migrations/*
var migrationFiles embed.FS

// migrateDB brings db up to the latest schema version using the embedded
// sqlite3 migrations. A fresh database and a database already at the
// latest version both return nil; only a genuine migration failure is an
// error.
func migrateDB(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("catalog: sqlite3 migration driver: %w", err)
	}

	src, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return fmt.Errorf("catalog: reading embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("catalog: building migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("catalog: applying migrations: %w", err)
	}

	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("catalog: reading schema version: %w", err)
	}
	if dirty {
		log.Warnf("catalog: database left dirty at version %d, check manually", v)
	}

	return nil
}
