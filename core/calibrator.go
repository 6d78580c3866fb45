package core

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/telemetry"
	"github.com/huangsam/querymancer/schema"
)

// Calibration bounds.
const (
	maxThresholdStep = 0.05 // largest change per calibration pass
	fastPercentile   = 0.75 // target when the accurate backend rates higher
	slowPercentile   = 0.25 // target when the fast backend rates as well or higher
)

// Calibrator owns the routing threshold and moves it toward the complexity
// boundary suggested by user feedback.
type Calibrator struct {
	bits       atomic.Uint64 // math.Float64bits of the threshold
	minSamples int
	metrics    *telemetry.Metrics
	now        func() time.Time

	// mu serializes calibration passes; readers go through bits only.
	mu sync.Mutex
}

// NewCalibrator creates a calibrator starting at initial, clamped to the valid range.
func NewCalibrator(initial float64, minSamples int, metrics *telemetry.Metrics) *Calibrator {
	if minSamples < 1 {
		minSamples = contract.DefaultMinSamples
	}
	c := &Calibrator{minSamples: minSamples, metrics: metrics, now: time.Now}
	c.store(clampThreshold(initial))
	return c
}

// SetClock replaces the time source. Used by tests.
func (c *Calibrator) SetClock(now func() time.Time) { c.now = now }

// Threshold returns the current routing threshold.
func (c *Calibrator) Threshold() float64 {
	return math.Float64frombits(c.bits.Load())
}

// Restore adopts a previously calibrated threshold, e.g. the last persisted event.
func (c *Calibrator) Restore(threshold float64) {
	c.store(clampThreshold(threshold))
}

// SuggestThreshold runs one calibration pass and returns the resulting threshold.
func (c *Calibrator) SuggestThreshold(m contract.Monitor) (float64, error) {
	_, _, err := c.Calibrate(m)
	return c.Threshold(), err
}

// Calibrate runs one calibration pass. It reports false when there is not
// enough feedback yet, in which case nothing changes and nothing is recorded.
// A persistence failure is returned after the new threshold has been adopted.
func (c *Calibrator) Calibrate(m contract.Monitor) (schema.CalibrationEvent, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	perf := m.PerformanceByBackend()
	fast := perf[schema.FastBackend]
	accurate := perf[schema.AccurateBackend]
	if len(fast.Ratings) < c.minSamples || len(accurate.Ratings) < c.minSamples {
		return schema.CalibrationEvent{}, false, nil
	}

	dist := m.ComplexityDistribution()
	fastScores := dist[schema.FastBackend]
	accurateScores := dist[schema.AccurateBackend]
	if len(fastScores) == 0 || len(accurateScores) == 0 {
		return schema.CalibrationEvent{}, false, nil
	}

	fastAvg := avgRating(fast.Ratings)
	accurateAvg := avgRating(accurate.Ratings)

	var target float64
	if accurateAvg > fastAvg {
		target = percentile(fastScores, fastPercentile)
	} else {
		target = percentile(accurateScores, slowPercentile)
	}

	old := c.Threshold()
	delta := max(min(target-old, maxThresholdStep), -maxThresholdStep)
	next := clampThreshold(old + delta)
	c.store(next)

	ev := schema.CalibrationEvent{
		Timestamp:    c.now(),
		OldThreshold: old,
		NewThreshold: next,
		AvgRatings: map[schema.BackendKind]float64{
			schema.FastBackend:     fastAvg,
			schema.AccurateBackend: accurateAvg,
		},
		SampleSizes: map[schema.BackendKind]int{
			schema.FastBackend:     len(fast.Ratings),
			schema.AccurateBackend: len(accurate.Ratings),
		},
	}
	c.metrics.Calibration()
	contract.Logger().Info().
		Float64("old", old).
		Float64("new", next).
		Float64("fast_avg", fastAvg).
		Float64("accurate_avg", accurateAvg).
		Msg("threshold calibrated")

	return ev, true, m.RecordCalibration(ev)
}

func (c *Calibrator) store(v float64) {
	c.bits.Store(math.Float64bits(v))
	c.metrics.SetThreshold(v)
}

// percentile picks the element at floor(n*p) of the sorted values, capped at the last index.
func percentile(values []float64, p float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	idx := min(int(float64(len(sorted))*p), len(sorted)-1)
	return sorted[idx]
}

func avgRating(ratings []int) float64 {
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}

func clampThreshold(v float64) float64 {
	if math.IsNaN(v) {
		return contract.DefaultThreshold
	}
	return max(min(v, contract.MaxThreshold), contract.MinThreshold)
}
