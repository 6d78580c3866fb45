package monitor

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/dbpool"
	"github.com/huangsam/querymancer/schema"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// migrationsTable keeps our version bookkeeping apart from other tools sharing the database.
const migrationsTable = "querymancer_schema_migrations"

// MigrationResult describes what a call to Migrate did.
type MigrationResult struct {
	From    uint
	To      uint
	Changed bool
}

// Migrate runs the record store migrations.
// - If targetVersion < 0, it migrates to the latest version.
// - If targetVersion == 0, it rolls back all migrations.
// - If targetVersion > 0, it migrates to the specified version.
func Migrate(backend schema.DatabaseBackend, connStr string, targetVersion int) (MigrationResult, error) {
	var result MigrationResult
	switch backend {
	case schema.NoneBackend, schema.JSONBackend:
		return result, fmt.Errorf("migrations are not supported for the %s monitor backend", backend)
	}

	db, err := dbpool.OpenDB(backend, connStr, contract.GetMonitorDBFilePath())
	if err != nil {
		return result, err
	}

	m, err := newMigrator(db, backend)
	if err != nil {
		_ = db.Close()
		return result, err
	}
	// Closing the migrator closes db as well.
	defer func() { _, _ = m.Close() }()

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return result, fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		return result, fmt.Errorf("database is in a dirty state at version %d. Please fix manually or force version", current)
	}
	result.From = current

	switch {
	case targetVersion < 0:
		err = m.Up()
	case targetVersion == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(targetVersion))
	}
	if errors.Is(err, migrate.ErrNoChange) {
		result.To = current
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("failed to migrate from version %d: %w", current, err)
	}

	result.Changed = true
	if targetVersion != 0 {
		newVersion, _, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			return result, fmt.Errorf("failed to read new migration version: %w", verr)
		}
		result.To = newVersion
	}
	return result, nil
}

// newMigrator wires the embedded migrations of one backend to db.
func newMigrator(db *sql.DB, backend schema.DatabaseBackend) (*migrate.Migrate, error) {
	var driver database.Driver
	var err error
	switch backend {
	case schema.SQLiteBackend:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: migrationsTable})
	case schema.MySQLBackend:
		driver, err = mysql.WithInstance(db, &mysql.Config{MigrationsTable: migrationsTable})
	case schema.PostgreSQLBackend:
		driver, err = postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migrate driver: %w", backend, err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations/"+string(backend))
	if err != nil {
		return nil, fmt.Errorf("failed to access migrations directory: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(backend), driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
