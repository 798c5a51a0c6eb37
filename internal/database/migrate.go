package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies every pending migration. The migrate instance is never
// closed because its database driver would close the shared pool.
func Migrate(ctx context.Context, db *DB) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	var driver migratedb.Driver
	switch db.DriverName() {
	case DriverPostgres:
		conn, err := db.DB.DB.Conn(ctx)
		if err != nil {
			return fmt.Errorf("migration connection: %w", err)
		}
		defer conn.Close()
		driver, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("postgres migration driver: %w", err)
		}
	case DriverSQLite:
		driver, err = migratesqlite.WithInstance(db.DB.DB, &migratesqlite.Config{})
		if err != nil {
			return fmt.Errorf("sqlite migration driver: %w", err)
		}
	default:
		return fmt.Errorf("unsupported driver %q", db.DriverName())
	}

	m, err := migrate.NewWithInstance("iofs", src, db.DriverName(), driver)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, _ := m.Version()
	db.log.Info("schema migrated", "version", version, "dirty", dirty)
	return nil
}
