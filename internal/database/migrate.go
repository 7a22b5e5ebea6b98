package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateUp runs all pending migrations up to the latest version.
// Returns nil if the schema is already current.
func (d *DB) MigrateUp() error {
	m, err := d.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed, closing it would close the shared connection

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	return nil
}

// MigrateVersion returns the current schema version and dirty state.
// Returns 0, false, nil if no migration has been applied yet.
func (d *DB) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := d.newMigrate()
	if err != nil {
		return 0, false, err
	}

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	return version, dirty, err
}

func (d *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(d.db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite3 migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}

	return m, nil
}

// migrateLogger implements migrate.Logger on top of slog
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	slog.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l *migrateLogger) Verbose() bool {
	return false
}
