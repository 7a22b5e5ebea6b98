package database

import (
	"context"
	"database/sql"
	"fmt"

	"flight_assoc/internal/assoc"

	_ "github.com/mattn/go-sqlite3"
)

// DB holds the sqlite connection storing content tables and targets
type DB struct {
	db *sql.DB
}

// New opens the database at dbPath and, if migrate is set, brings the schema
// to the latest version
func New(dbPath string, migrate bool) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := optimizeSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to optimize database: %w", err)
	}

	database := &DB{db: db}

	if migrate {
		if err := database.MigrateUp(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return database, nil
}

// optimizeSQLite applies pragmas suited to large bulk reads and updates
func optimizeSQLite(db *sql.DB) error {
	// WAL allows reads while an association write is in progress
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// 64MB page cache
	if _, err := db.Exec("PRAGMA cache_size=-64000"); err != nil {
		return fmt.Errorf("failed to set cache size: %w", err)
	}

	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA temp_store=MEMORY"); err != nil {
		return fmt.Errorf("failed to set temp_store: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Reports returns the repository of the content tables
func (d *DB) Reports() ReportRepository {
	return NewReportRepository(d.db)
}

// BeginAssociationWrite starts the transaction holding one run's results
func (d *DB) BeginAssociationWrite(ctx context.Context) (assoc.AssociationWriter, error) {
	return newAssociationWriter(ctx, d.db)
}
