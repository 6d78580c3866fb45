package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
)

// JSONStore keeps the whole metrics log in one JSON file. Every append
// rewrites the file through a temp file and a rename.
type JSONStore struct {
	path string

	mu  sync.Mutex
	log schema.MetricsLog
}

var _ contract.RecordStore = &JSONStore{} // Compile-time check

// NewJSONStore reads the log at path. A missing file is an empty log.
func NewJSONStore(path string) (*JSONStore, error) {
	if path == "" {
		path = contract.GetMonitorFilePath()
	}
	s := &JSONStore{path: path, log: emptyLog()}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read metrics log %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.log); err != nil {
		return nil, fmt.Errorf("failed to decode metrics log %s: %w", path, err)
	}
	s.log = normalizeLog(s.log)
	return s, nil
}

// Path returns the location of the log file.
func (s *JSONStore) Path() string { return s.path }

// Load returns a copy of the log.
func (s *JSONStore) Load() (schema.MetricsLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLog(s.log), nil
}

// AppendSelection appends a selection and rewrites the file.
func (s *JSONStore) AppendSelection(rec schema.SelectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Selections = append(s.log.Selections, rec)
	return s.flushLocked()
}

// AppendFeedback appends a rating and rewrites the file.
func (s *JSONStore) AppendFeedback(rec schema.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Feedback = append(s.log.Feedback, rec)
	return s.flushLocked()
}

// AppendCalibration appends a calibration event and rewrites the file.
func (s *JSONStore) AppendCalibration(ev schema.CalibrationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Calibrations = append(s.log.Calibrations, ev)
	return s.flushLocked()
}

// GetStatus returns the record counts of the log.
func (s *JSONStore) GetStatus() (schema.MonitorStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := schema.MonitorStatus{
		Backend:      string(schema.JSONBackend),
		Location:     s.path,
		Connected:    true,
		Selections:   len(s.log.Selections),
		Feedback:     len(s.log.Feedback),
		Calibrations: len(s.log.Calibrations),
	}
	if n := len(s.log.Selections); n > 0 {
		status.LastSelection = s.log.Selections[n-1].Timestamp
	}
	return status, nil
}

// Close is a no-op; the file is closed after every write.
func (s *JSONStore) Close() error { return nil }

// flushLocked writes the log next to its final path and renames it into place.
func (s *JSONStore) flushLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.log, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".querymancer-metrics-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// emptyLog has non-nil slices so the JSON form always carries arrays.
func emptyLog() schema.MetricsLog {
	return schema.MetricsLog{
		Selections:   []schema.SelectionRecord{},
		Feedback:     []schema.FeedbackRecord{},
		Calibrations: []schema.CalibrationEvent{},
	}
}

func normalizeLog(log schema.MetricsLog) schema.MetricsLog {
	if log.Selections == nil {
		log.Selections = []schema.SelectionRecord{}
	}
	if log.Feedback == nil {
		log.Feedback = []schema.FeedbackRecord{}
	}
	if log.Calibrations == nil {
		log.Calibrations = []schema.CalibrationEvent{}
	}
	return log
}

func copyLog(log schema.MetricsLog) schema.MetricsLog {
	return schema.MetricsLog{
		Selections:   append([]schema.SelectionRecord{}, log.Selections...),
		Feedback:     append([]schema.FeedbackRecord{}, log.Feedback...),
		Calibrations: append([]schema.CalibrationEvent{}, log.Calibrations...),
	}
}
