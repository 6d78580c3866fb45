package schema

import "time"

// SelectionRecord is appended every time the router picks a backend.
type SelectionRecord struct {
	Timestamp  time.Time   `json:"timestamp"`
	Query      string      `json:"query"`
	Complexity float64     `json:"complexity"`
	Backend    BackendKind `json:"backend"`
}

// FeedbackRecord is a user rating of a response. Rating is always within 1..5.
type FeedbackRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
}

// CalibrationEvent is the audit trail of one successful calibration pass.
type CalibrationEvent struct {
	Timestamp    time.Time               `json:"timestamp"`
	OldThreshold float64                 `json:"old_threshold"`
	NewThreshold float64                 `json:"new_threshold"`
	AvgRatings   map[BackendKind]float64 `json:"avg_ratings"`
	SampleSizes  map[BackendKind]int     `json:"sample_sizes"`
}

// MetricsLog is the persisted form of everything the monitor has seen.
type MetricsLog struct {
	Selections   []SelectionRecord  `json:"selections"`
	Feedback     []FeedbackRecord   `json:"feedback"`
	Calibrations []CalibrationEvent `json:"calibrations"`
}

// BackendPerformance aggregates the feedback joined to one backend.
// Median and StdDev are only filled in once there are enough ratings.
type BackendPerformance struct {
	Count     int     `json:"count"`
	Ratings   []int   `json:"ratings"`
	AvgRating float64 `json:"avg_rating"`
	Median    float64 `json:"median,omitempty"`
	StdDev    float64 `json:"std_dev,omitempty"`
}

// ClampRating forces a rating into the 1..5 range.
func ClampRating(rating int) int {
	return min(max(rating, 1), 5)
}
