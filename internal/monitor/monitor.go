// Package monitor records routing decisions and user feedback, and aggregates them for calibration.
package monitor

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
)

// minRatingsForSpread is the rating count from which median and stddev are reported.
const minRatingsForSpread = 5

// Monitor is the append-only record of selections, feedback and calibrations.
// Records are kept in memory and written through to a RecordStore.
type Monitor struct {
	store    contract.RecordStore
	location string
	now      func() time.Time

	// writeMu serializes store writes; mu guards the in-memory log.
	writeMu sync.Mutex
	mu      sync.Mutex
	log     schema.MetricsLog
}

var _ contract.Monitor = &Monitor{} // Compile-time check

// New loads everything already persisted in store.
func New(store contract.RecordStore) (*Monitor, error) {
	log, err := store.Load()
	if err != nil {
		return nil, err
	}
	location := ""
	if status, err := store.GetStatus(); err == nil {
		location = status.Location
		if location == "" {
			location = status.Backend
		}
	}
	return &Monitor{
		store:    store,
		location: location,
		now:      time.Now,
		log:      normalizeLog(log),
	}, nil
}

// SetClock replaces the time source. Used by tests.
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }

// RecordSelection appends a routing decision.
func (m *Monitor) RecordSelection(query string, complexity float64, backend schema.BackendKind) error {
	rec := schema.SelectionRecord{
		Timestamp:  m.now(),
		Query:      query,
		Complexity: complexity,
		Backend:    backend,
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.mu.Lock()
	m.log.Selections = append(m.log.Selections, rec)
	m.mu.Unlock()
	return m.persisted("selection", m.store.AppendSelection(rec))
}

// RecordFeedback appends a rating, clamped to 1..5.
func (m *Monitor) RecordFeedback(query string, rating int, comment string) error {
	rec := schema.FeedbackRecord{
		Timestamp: m.now(),
		Query:     query,
		Rating:    schema.ClampRating(rating),
		Comment:   comment,
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.mu.Lock()
	m.log.Feedback = append(m.log.Feedback, rec)
	m.mu.Unlock()
	return m.persisted("feedback", m.store.AppendFeedback(rec))
}

// RecordCalibration appends a calibration event.
func (m *Monitor) RecordCalibration(ev schema.CalibrationEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = m.now()
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.mu.Lock()
	m.log.Calibrations = append(m.log.Calibrations, ev)
	m.mu.Unlock()
	return m.persisted("calibration", m.store.AppendCalibration(ev))
}

// persisted turns a store failure into a logged PersistenceError.
func (m *Monitor) persisted(kind string, err error) error {
	if err == nil {
		return nil
	}
	contract.Logger().Error().Err(err).Str("record", kind).Str("location", m.location).Msg("failed to persist record")
	return &contract.PersistenceError{Path: m.location, Err: err}
}

// Snapshot returns a copy of everything recorded so far.
func (m *Monitor) Snapshot() schema.MetricsLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyLog(m.log)
}

// Calibrations returns the calibration audit trail.
func (m *Monitor) Calibrations() []schema.CalibrationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schema.CalibrationEvent{}, m.log.Calibrations...)
}

// PerformanceByBackend joins feedback to the most recent selection with the
// same query text and aggregates the ratings per backend. Feedback without a
// matching selection is left out.
func (m *Monitor) PerformanceByBackend() map[schema.BackendKind]schema.BackendPerformance {
	m.mu.Lock()
	selections := append([]schema.SelectionRecord{}, m.log.Selections...)
	feedback := append([]schema.FeedbackRecord{}, m.log.Feedback...)
	m.mu.Unlock()

	latest := make(map[string]schema.BackendKind, len(selections))
	for _, sel := range selections {
		latest[sel.Query] = sel.Backend
	}

	result := make(map[schema.BackendKind]schema.BackendPerformance)
	for _, fb := range feedback {
		backend, ok := latest[fb.Query]
		if !ok {
			continue
		}
		perf := result[backend]
		perf.Count++
		perf.Ratings = append(perf.Ratings, fb.Rating)
		result[backend] = perf
	}

	for backend, perf := range result {
		perf.AvgRating = mean(perf.Ratings)
		if len(perf.Ratings) >= minRatingsForSpread {
			perf.Median = median(perf.Ratings)
			perf.StdDev = sampleStdDev(perf.Ratings)
		}
		result[backend] = perf
	}
	return result
}

// ComplexityDistribution lists the complexity of every selection per backend.
func (m *Monitor) ComplexityDistribution() map[schema.BackendKind][]float64 {
	m.mu.Lock()
	selections := append([]schema.SelectionRecord{}, m.log.Selections...)
	m.mu.Unlock()

	result := make(map[schema.BackendKind][]float64)
	for _, sel := range selections {
		result[sel.Backend] = append(result[sel.Backend], sel.Complexity)
	}
	return result
}

// Status returns the status of the backing store.
func (m *Monitor) Status() (schema.MonitorStatus, error) {
	return m.store.GetStatus()
}

// Close closes the backing store.
func (m *Monitor) Close() error {
	return m.store.Close()
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func median(values []int) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

func sampleStdDev(values []int) float64 {
	if len(values) < 2 {
		return 0
	}
	avg := mean(values)
	var sum float64
	for _, v := range values {
		d := float64(v) - avg
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
