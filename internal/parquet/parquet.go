// Package parquet exports the querymancer performance log to Parquet files
// using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/huangsam/querymancer/schema"
	"github.com/parquet-go/parquet-go"
)

// File names written by ExportMetricsLog.
const (
	SelectionsFile   = "selections.parquet"
	FeedbackFile     = "feedback.parquet"
	CalibrationsFile = "calibrations.parquet"
)

// Selection is one routing decision.
// This struct maps to the querymancer_selections database table.
type Selection struct {
	// Timestamp is when the router made the decision
	Timestamp time.Time `parquet:"timestamp,snappy"`

	// Query is the refined query text the decision was recorded under
	Query string `parquet:"query,snappy"`

	// Complexity is the overall complexity score in [0, 1]
	Complexity float64 `parquet:"complexity,snappy"`

	// Backend is the chosen backend kind
	Backend string `parquet:"backend,snappy,dict"`
}

// Feedback is one user rating.
// This struct maps to the querymancer_feedback database table.
type Feedback struct {
	Timestamp time.Time `parquet:"timestamp,snappy"`
	Query     string    `parquet:"query,snappy"`
	Rating    int32     `parquet:"rating,snappy"`

	// Comment is the free-text remark left with the rating (nullable)
	Comment *string `parquet:"comment,optional,snappy"`
}

// Calibration is one threshold adjustment, flattened per backend.
// This struct maps to the querymancer_calibrations database table.
type Calibration struct {
	Timestamp       time.Time `parquet:"timestamp,snappy"`
	OldThreshold    float64   `parquet:"old_threshold,snappy"`
	NewThreshold    float64   `parquet:"new_threshold,snappy"`
	FastAvgRating   float64   `parquet:"fast_avg_rating,snappy"`
	AccurateAvg     float64   `parquet:"accurate_avg_rating,snappy"`
	FastSamples     int32     `parquet:"fast_samples,snappy"`
	AccurateSamples int32     `parquet:"accurate_samples,snappy"`
}

// writeParquet writes a slice of rows to a Parquet file whose schema is
// derived from the struct tags of T.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteSelectionsParquet writes routing decisions to a Parquet file.
func WriteSelectionsParquet(data []Selection, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteFeedbackParquet writes user ratings to a Parquet file.
func WriteFeedbackParquet(data []Feedback, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteCalibrationsParquet writes calibration events to a Parquet file.
func WriteCalibrationsParquet(data []Calibration, outputPath string) error {
	return writeParquet(data, outputPath)
}

// ExportMetricsLog writes the three record kinds of log into dir and returns
// the paths written, in selection, feedback, calibration order.
func ExportMetricsLog(log schema.MetricsLog, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	paths := []string{
		filepath.Join(dir, SelectionsFile),
		filepath.Join(dir, FeedbackFile),
		filepath.Join(dir, CalibrationsFile),
	}
	if err := WriteSelectionsParquet(ConvertSelections(log.Selections), paths[0]); err != nil {
		return nil, err
	}
	if err := WriteFeedbackParquet(ConvertFeedback(log.Feedback), paths[1]); err != nil {
		return nil, err
	}
	if err := WriteCalibrationsParquet(ConvertCalibrations(log.Calibrations), paths[2]); err != nil {
		return nil, err
	}
	return paths, nil
}

// ConvertSelections converts schema.SelectionRecord to Selection for Parquet export.
func ConvertSelections(records []schema.SelectionRecord) []Selection {
	result := make([]Selection, len(records))
	for i, r := range records {
		result[i] = Selection{
			Timestamp:  r.Timestamp,
			Query:      r.Query,
			Complexity: r.Complexity,
			Backend:    string(r.Backend),
		}
	}
	return result
}

// ConvertFeedback converts schema.FeedbackRecord to Feedback for Parquet export.
// Empty comments become nulls.
func ConvertFeedback(records []schema.FeedbackRecord) []Feedback {
	result := make([]Feedback, len(records))
	for i, r := range records {
		result[i] = Feedback{
			Timestamp: r.Timestamp,
			Query:     r.Query,
			Rating:    int32(r.Rating),
		}
		if r.Comment != "" {
			comment := r.Comment
			result[i].Comment = &comment
		}
	}
	return result
}

// ConvertCalibrations converts schema.CalibrationEvent to Calibration for Parquet export.
func ConvertCalibrations(events []schema.CalibrationEvent) []Calibration {
	result := make([]Calibration, len(events))
	for i, ev := range events {
		result[i] = Calibration{
			Timestamp:       ev.Timestamp,
			OldThreshold:    ev.OldThreshold,
			NewThreshold:    ev.NewThreshold,
			FastAvgRating:   ev.AvgRatings[schema.FastBackend],
			AccurateAvg:     ev.AvgRatings[schema.AccurateBackend],
			FastSamples:     int32(ev.SampleSizes[schema.FastBackend]),
			AccurateSamples: int32(ev.SampleSizes[schema.AccurateBackend]),
		}
	}
	return result
}
