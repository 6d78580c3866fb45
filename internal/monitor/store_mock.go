package monitor

import (
	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
	"github.com/stretchr/testify/mock"
)

// MockRecordStore is a mock implementation of RecordStore for testing.
type MockRecordStore struct {
	mock.Mock
}

var _ contract.RecordStore = &MockRecordStore{} // Compile-time check

// Load implements the RecordStore interface.
func (m *MockRecordStore) Load() (schema.MetricsLog, error) {
	args := m.Called()
	log, _ := args.Get(0).(schema.MetricsLog)
	return log, args.Error(1)
}

// AppendSelection implements the RecordStore interface.
func (m *MockRecordStore) AppendSelection(rec schema.SelectionRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

// AppendFeedback implements the RecordStore interface.
func (m *MockRecordStore) AppendFeedback(rec schema.FeedbackRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

// AppendCalibration implements the RecordStore interface.
func (m *MockRecordStore) AppendCalibration(ev schema.CalibrationEvent) error {
	args := m.Called(ev)
	return args.Error(0)
}

// GetStatus implements the RecordStore interface.
func (m *MockRecordStore) GetStatus() (schema.MonitorStatus, error) {
	args := m.Called()
	status, _ := args.Get(0).(schema.MonitorStatus)
	return status, args.Error(1)
}

// Close implements the RecordStore interface.
func (m *MockRecordStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
