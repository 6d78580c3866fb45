// Package dbpool provides a fixed-size pool of dedicated store connections.
package dbpool

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// DriverName maps a backend to its database/sql driver name.
func DriverName(backend schema.DatabaseBackend) (string, error) {
	switch backend {
	case schema.SQLiteBackend:
		return "sqlite", nil
	case schema.MySQLBackend:
		return "mysql", nil
	case schema.PostgreSQLBackend:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported backend: %s. Must be sqlite, mysql, or postgresql", backend)
	}
}

// OpenDB opens and pings a database handle for the given backend.
// An empty SQLite connection string falls back to defaultPath.
func OpenDB(backend schema.DatabaseBackend, connStr, defaultPath string) (*sql.DB, error) {
	driverName, err := DriverName(backend)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = defaultPath
		}
		db, err = sql.Open(driverName, dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w. Ensure the directory is writable", dbPath, err)
		}

	case schema.MySQLBackend:
		// connStr should be:
		// user:password@tcp(host:port)/dbname
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL: %w. Check connection format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		// connStr should be:
		// host=localhost port=5432 user=postgres password=mysecretpassword dbname=postgres
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w. Check connection format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database. Check that the server is running and connection parameters are valid: %w", backend, err)
	}
	return db, nil
}

// SetupStatements returns the statements run once on every new connection.
func SetupStatements(backend schema.DatabaseBackend, sqlite contract.SQLiteSettings) []string {
	switch backend {
	case schema.SQLiteBackend:
		return []string{
			fmt.Sprintf("PRAGMA journal_mode=%s", sqlite.JournalMode),
			fmt.Sprintf("PRAGMA synchronous=%s", sqlite.Synchronous),
			fmt.Sprintf("PRAGMA cache_size=%d", sqlite.CacheSize),
			fmt.Sprintf("PRAGMA temp_store=%s", sqlite.TempStore),
			"PRAGMA busy_timeout=5000",
		}
	case schema.MySQLBackend:
		return []string{
			"SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED",
			"SET SESSION tmp_table_size = 67108864",
			"SET SESSION max_heap_table_size = 67108864",
		}
	case schema.PostgreSQLBackend:
		return []string{
			"SET application_name = 'querymancer'",
			"SET synchronous_commit = off",
			"SET temp_buffers = '32MB'",
		}
	default:
		return nil
	}
}

// Placeholder returns the n-th (1-based) parameter placeholder for the backend.
func Placeholder(backend schema.DatabaseBackend, n int) string {
	switch backend {
	case schema.PostgreSQLBackend:
		return fmt.Sprintf("$%d", n)
	default: // SQLite and MySQL
		return "?"
	}
}
