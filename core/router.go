package core

import (
	"sync/atomic"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/telemetry"
	"github.com/huangsam/querymancer/schema"
)

// Router sends each query to the fast or the accurate backend depending on
// its complexity, recalibrating the threshold once per interval.
//
// The threshold is read without locking. Two requests racing a calibration
// may see different thresholds; routing is a soft decision, so that is fine.
type Router struct {
	analyzer   *Analyzer
	calibrator *Calibrator
	monitor    contract.Monitor
	metrics    *telemetry.Metrics
	interval   time.Duration
	now        func() time.Time

	lastCalibration atomic.Int64 // unix nanoseconds
}

// NewRouter wires the analyzer, calibrator and monitor together.
// An interval <= 0 disables automatic calibration.
func NewRouter(analyzer *Analyzer, calibrator *Calibrator, monitor contract.Monitor, interval time.Duration, metrics *telemetry.Metrics) *Router {
	r := &Router{
		analyzer:   analyzer,
		calibrator: calibrator,
		monitor:    monitor,
		metrics:    metrics,
		interval:   interval,
		now:        time.Now,
	}
	r.lastCalibration.Store(r.now().UnixNano())
	return r
}

// SetClock replaces the time source. Used by tests.
func (r *Router) SetClock(now func() time.Time) { r.now = now }

// SetLastCalibration records when the threshold was last calibrated.
func (r *Router) SetLastCalibration(t time.Time) { r.lastCalibration.Store(t.UnixNano()) }

// LastCalibration returns when the threshold was last calibrated.
func (r *Router) LastCalibration() time.Time { return time.Unix(0, r.lastCalibration.Load()) }

// Threshold returns the threshold the next decision will compare against.
func (r *Router) Threshold() float64 { return r.calibrator.Threshold() }

// Route scores query, picks a backend and records the decision.
// A persistence failure is returned together with a valid choice.
func (r *Router) Route(query string) (schema.BackendChoice, error) {
	score := r.analyzer.Analyze(query)
	r.maybeCalibrate()

	threshold := r.calibrator.Threshold()
	backend := schema.FastBackend
	if score.Overall >= threshold {
		backend = schema.AccurateBackend
	}
	r.metrics.RoutingDecision(string(backend))

	choice := schema.BackendChoice{Backend: backend, Score: score, Threshold: threshold}
	return choice, r.monitor.RecordSelection(query, score.Overall, backend)
}

// Calibrate runs a calibration pass now, regardless of the interval.
func (r *Router) Calibrate() (schema.CalibrationEvent, bool, error) {
	r.lastCalibration.Store(r.now().UnixNano())
	return r.calibrator.Calibrate(r.monitor)
}

// maybeCalibrate runs a calibration pass when the interval has elapsed.
// Only the caller that wins the compare-and-swap calibrates.
func (r *Router) maybeCalibrate() {
	if r.interval <= 0 {
		return
	}
	last := r.lastCalibration.Load()
	now := r.now().UnixNano()
	if time.Duration(now-last) < r.interval {
		return
	}
	if !r.lastCalibration.CompareAndSwap(last, now) {
		return
	}
	if _, _, err := r.calibrator.Calibrate(r.monitor); err != nil {
		contract.Logger().Warn().Err(err).Msg("calibration event not persisted")
	}
}
