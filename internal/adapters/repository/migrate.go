package repository

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate brings the schema behind dsn to the latest version over its own
// connection and returns the resulting schema version.
func Migrate(backend Backend, dsn string) (uint, error) {
	db, err := openDB(backend, dsn)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()

	var driver database.Driver
	switch backend {
	case BackendSQLite:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case BackendPostgres:
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	case BackendMySQL:
		driver, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %s driver: %w", ErrMigrate, backend, err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations/"+string(backend))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return 0, fmt.Errorf("%w: source: %w", ErrMigrate, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(backend), driver)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	defer func() { _, _ = m.Close() }()
	if _, dirty, verr := m.Version(); verr == nil && dirty {
		return 0, fmt.Errorf("%w: schema is dirty, fix it manually or force a version", ErrMigrate)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("%w: up: %w", ErrMigrate, err)
	}
	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("%w: version: %w", ErrMigrate, err)
	}
	return version, nil
}
