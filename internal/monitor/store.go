package monitor

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/dbpool"
	"github.com/huangsam/querymancer/schema"
)

// OpenStore opens the record store for a monitor backend.
// path is used by the JSON log; connStr by the SQL backends.
func OpenStore(backend schema.DatabaseBackend, path, connStr string) (contract.RecordStore, error) {
	switch backend {
	case schema.JSONBackend, "":
		return NewJSONStore(path)
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
		return NewSQLStore(backend, connStr)
	case schema.NoneBackend:
		return NoneStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported monitor backend: %s", backend)
	}
}

// Clear removes every persisted record for the specified backend.
// For the JSON log and SQLite, it deletes the file.
// For MySQL/PostgreSQL, it drops the record and migration tables.
// For NoneBackend, it does nothing.
func Clear(backend schema.DatabaseBackend, path, connStr string) error {
	switch backend {
	case schema.JSONBackend:
		if path == "" {
			path = contract.GetMonitorFilePath()
		}
		return removeFile(path)

	case schema.SQLiteBackend:
		if connStr == "" {
			connStr = contract.GetMonitorDBFilePath()
		}
		return removeFile(connStr)

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		db, err := dbpool.OpenDB(backend, connStr, "")
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		for _, table := range append(append([]string{}, recordTables...), migrationsTable) {
			if err := dropTable(db, table); err != nil {
				return err
			}
		}
		return nil

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported monitor backend for clearing: %s", backend)
	}
}

// removeFile deletes a file; a missing file is not an error.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func dropTable(db *sql.DB, table string) error {
	if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

// NoneStore discards every record. Used when persistence is disabled.
type NoneStore struct{}

var _ contract.RecordStore = NoneStore{} // Compile-time check

// Load returns an empty log.
func (NoneStore) Load() (schema.MetricsLog, error) { return emptyLog(), nil }

// AppendSelection does nothing.
func (NoneStore) AppendSelection(schema.SelectionRecord) error { return nil }

// AppendFeedback does nothing.
func (NoneStore) AppendFeedback(schema.FeedbackRecord) error { return nil }

// AppendCalibration does nothing.
func (NoneStore) AppendCalibration(schema.CalibrationEvent) error { return nil }

// GetStatus reports a disconnected store.
func (NoneStore) GetStatus() (schema.MonitorStatus, error) {
	return schema.MonitorStatus{Backend: string(schema.NoneBackend)}, nil
}

// Close does nothing.
func (NoneStore) Close() error { return nil }
