package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrator applies the SQL files under sourceURL to a postgres database.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator prepares golang-migrate against db.
func NewMigrator(db *DB, sourceURL string) (*Migrator, error) {
	if db.driver != "postgres" {
		return nil, fmt.Errorf("migrations are only supported for postgres, not %s", db.driver)
	}

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. It reports whether anything changed.
func (mg *Migrator) Up() (bool, error) {
	return changed(mg.m.Up())
}

// Down reverts every migration.
func (mg *Migrator) Down() (bool, error) {
	return changed(mg.m.Down())
}

// Steps applies n migrations forwards (n > 0) or backwards (n < 0).
func (mg *Migrator) Steps(n int) (bool, error) {
	return changed(mg.m.Steps(n))
}

// Version returns the current schema version and dirty flag.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func changed(err error) (bool, error) {
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("migration failed: %w", err)
	}
	return true, nil
}
