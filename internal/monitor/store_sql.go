package monitor

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/dbpool"
	"github.com/huangsam/querymancer/schema"
)

// Table names for the record store.
const (
	selectionsTable   = "querymancer_selections"
	feedbackTable     = "querymancer_feedback"
	calibrationsTable = "querymancer_calibrations"
)

// recordTables lists the record tables in creation order.
var recordTables = []string{selectionsTable, feedbackTable, calibrationsTable}

// mysqlTimeFormat is how DATETIME(6) values come back without parseTime=true.
const mysqlTimeFormat = "2006-01-02 15:04:05.999999"

// SQLStore keeps monitor records in a relational database.
type SQLStore struct {
	db       *sql.DB
	backend  schema.DatabaseBackend
	location string
}

var _ contract.RecordStore = &SQLStore{} // Compile-time check

// NewSQLStore migrates the record tables to the latest version and opens the store.
func NewSQLStore(backend schema.DatabaseBackend, connStr string) (*SQLStore, error) {
	if _, err := Migrate(backend, connStr, -1); err != nil {
		return nil, fmt.Errorf("failed to prepare record tables: %w", err)
	}

	db, err := dbpool.OpenDB(backend, connStr, contract.GetMonitorDBFilePath())
	if err != nil {
		return nil, err
	}

	location := string(backend)
	if backend == schema.SQLiteBackend {
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)
		location = connStr
		if location == "" {
			location = contract.GetMonitorDBFilePath()
		}
	}

	return &SQLStore{db: db, backend: backend, location: location}, nil
}

// Load reads every record in insertion order.
func (s *SQLStore) Load() (schema.MetricsLog, error) {
	log := emptyLog()

	rows, err := s.db.Query(fmt.Sprintf("SELECT created_at, query, complexity, backend FROM %s ORDER BY id", selectionsTable))
	if err != nil {
		return log, fmt.Errorf("failed to query selections: %w", err)
	}
	for rows.Next() {
		var rec schema.SelectionRecord
		var ts any
		var backend string
		if err := rows.Scan(&ts, &rec.Query, &rec.Complexity, &backend); err != nil {
			_ = rows.Close()
			return log, fmt.Errorf("failed to scan selection: %w", err)
		}
		if rec.Timestamp, err = parseTimestamp(ts); err != nil {
			_ = rows.Close()
			return log, err
		}
		rec.Backend = schema.BackendKind(backend)
		log.Selections = append(log.Selections, rec)
	}
	if err := closeRows(rows, "selections"); err != nil {
		return log, err
	}

	rows, err = s.db.Query(fmt.Sprintf("SELECT created_at, query, rating, comment FROM %s ORDER BY id", feedbackTable))
	if err != nil {
		return log, fmt.Errorf("failed to query feedback: %w", err)
	}
	for rows.Next() {
		var rec schema.FeedbackRecord
		var ts any
		var comment sql.NullString
		if err := rows.Scan(&ts, &rec.Query, &rec.Rating, &comment); err != nil {
			_ = rows.Close()
			return log, fmt.Errorf("failed to scan feedback: %w", err)
		}
		if rec.Timestamp, err = parseTimestamp(ts); err != nil {
			_ = rows.Close()
			return log, err
		}
		rec.Comment = comment.String
		log.Feedback = append(log.Feedback, rec)
	}
	if err := closeRows(rows, "feedback"); err != nil {
		return log, err
	}

	rows, err = s.db.Query(fmt.Sprintf("SELECT created_at, old_threshold, new_threshold, avg_ratings, sample_sizes FROM %s ORDER BY id", calibrationsTable))
	if err != nil {
		return log, fmt.Errorf("failed to query calibrations: %w", err)
	}
	for rows.Next() {
		var ev schema.CalibrationEvent
		var ts any
		var avgJSON, sizesJSON string
		if err := rows.Scan(&ts, &ev.OldThreshold, &ev.NewThreshold, &avgJSON, &sizesJSON); err != nil {
			_ = rows.Close()
			return log, fmt.Errorf("failed to scan calibration: %w", err)
		}
		if ev.Timestamp, err = parseTimestamp(ts); err != nil {
			_ = rows.Close()
			return log, err
		}
		if err := json.Unmarshal([]byte(avgJSON), &ev.AvgRatings); err != nil {
			_ = rows.Close()
			return log, fmt.Errorf("failed to decode average ratings: %w", err)
		}
		if err := json.Unmarshal([]byte(sizesJSON), &ev.SampleSizes); err != nil {
			_ = rows.Close()
			return log, fmt.Errorf("failed to decode sample sizes: %w", err)
		}
		log.Calibrations = append(log.Calibrations, ev)
	}
	if err := closeRows(rows, "calibrations"); err != nil {
		return log, err
	}

	return log, nil
}

// AppendSelection inserts one routing decision.
func (s *SQLStore) AppendSelection(rec schema.SelectionRecord) error {
	return s.insert(selectionsTable,
		[]string{"created_at", "query", "complexity", "backend"},
		s.formatTime(rec.Timestamp), rec.Query, rec.Complexity, string(rec.Backend))
}

// AppendFeedback inserts one rating.
func (s *SQLStore) AppendFeedback(rec schema.FeedbackRecord) error {
	var comment any
	if rec.Comment != "" {
		comment = rec.Comment
	}
	return s.insert(feedbackTable,
		[]string{"created_at", "query", "rating", "comment"},
		s.formatTime(rec.Timestamp), rec.Query, rec.Rating, comment)
}

// AppendCalibration inserts one calibration event.
func (s *SQLStore) AppendCalibration(ev schema.CalibrationEvent) error {
	avgJSON, err := json.Marshal(ev.AvgRatings)
	if err != nil {
		return fmt.Errorf("failed to encode average ratings: %w", err)
	}
	sizesJSON, err := json.Marshal(ev.SampleSizes)
	if err != nil {
		return fmt.Errorf("failed to encode sample sizes: %w", err)
	}
	return s.insert(calibrationsTable,
		[]string{"created_at", "old_threshold", "new_threshold", "avg_ratings", "sample_sizes"},
		s.formatTime(ev.Timestamp), ev.OldThreshold, ev.NewThreshold, string(avgJSON), string(sizesJSON))
}

// GetStatus returns row counts and the applied migration version.
func (s *SQLStore) GetStatus() (schema.MonitorStatus, error) {
	status := schema.MonitorStatus{
		Backend:   string(s.backend),
		Location:  s.location,
		Connected: s.db != nil,
	}
	if s.db == nil {
		return status, nil
	}

	counts := map[string]*int{
		selectionsTable:   &status.Selections,
		feedbackTable:     &status.Feedback,
		calibrationsTable: &status.Calibrations,
	}
	for _, table := range recordTables {
		row := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
		if err := row.Scan(counts[table]); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
	}

	if status.Selections > 0 {
		row := s.db.QueryRow(fmt.Sprintf("SELECT created_at FROM %s ORDER BY id DESC LIMIT 1", selectionsTable))
		var ts any
		if err := row.Scan(&ts); err != nil {
			return status, fmt.Errorf("failed to get last selection: %w", err)
		}
		last, err := parseTimestamp(ts)
		if err != nil {
			return status, err
		}
		status.LastSelection = last
	}

	row := s.db.QueryRow(fmt.Sprintf("SELECT version FROM %s LIMIT 1", migrationsTable))
	var version int
	if err := row.Scan(&version); err == nil {
		status.MigrationVersion = version
	}

	return status, nil
}

// Close closes the underlying connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// insert runs a single-row INSERT with backend-specific placeholders.
func (s *SQLStore) insert(table string, columns []string, args ...any) error {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = dbpool.Placeholder(s.backend, i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// formatTime converts a time.Time to the appropriate format for the backend.
func (s *SQLStore) formatTime(t time.Time) any {
	switch s.backend {
	case schema.SQLiteBackend:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return t.UTC()
	}
}

// parseTimestamp accepts the shapes the three drivers return for created_at.
func parseTimestamp(v any) (time.Time, error) {
	var text string
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		text = t
	case []byte:
		text = string(t)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
	if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation(mysqlTimeFormat, text, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", text, err)
	}
	return ts, nil
}

func closeRows(rows *sql.Rows, what string) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("error iterating %s: %w", what, err)
	}
	return rows.Close()
}
