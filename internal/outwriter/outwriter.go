// Package outwriter renders command results as tables, JSON or CSV.
package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// ErrParquetOutput is returned by commands that cannot produce parquet files.
var ErrParquetOutput = errors.New("parquet output is only supported by the export command")

// OutWriter provides a unified interface for all output operations.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// view is one renderable result: a JSON value, CSV records and a text table writer.
type view struct {
	json   any
	header []string
	rows   [][]string
	text   func(w io.Writer) error
}

// render dispatches on the configured output format.
func render(cfg *contract.Config, v view) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, v.json)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSV(w, v.header, v.rows)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		return ErrParquetOutput
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, v.text, "Wrote table")
	}
	return nil
}

// writeWithFile sends a view to stdout or to outputFile. Only file writes
// print a confirmation, and that goes to stderr so stdout stays parseable.
func writeWithFile(outputFile string, write func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	if file == os.Stdout {
		return write(file)
	}
	defer func() { _ = file.Close() }()

	if err := write(file); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s to %s\n", successMsg, outputFile)
	return nil
}

// writeJSON encodes a view's value with two-space indentation.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeCSV writes the header and the pre-formatted records of a view.
func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// floatFormatter formats scores, ratings and thresholds at the configured precision.
func floatFormatter(precision int) func(float64) string {
	return func(v float64) string {
		return strconv.FormatFloat(v, 'f', precision, 64)
	}
}

// writeTable renders headers and rows with the shared table style.
func writeTable(w io.Writer, headers []string, rows [][]string, align tw.Align) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = align
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// Table alignments.
const (
	alignRight = tw.AlignRight
	alignLeft  = tw.AlignLeft
)

// writeKeyValues renders a two-column Field/Value table.
func writeKeyValues(w io.Writer, pairs [][]string) error {
	return writeTable(w, []string{"Field", "Value"}, pairs, alignLeft)
}

// backendLabel colors a backend for tables when colors are enabled.
func backendLabel(kind schema.BackendKind, cfg *contract.Config) string {
	if cfg.UseColors {
		return contract.GetColorBackend(kind)
	}
	return string(kind)
}

// ratingLabel colors an average rating for tables when colors are enabled.
func ratingLabel(text string, avg float64, cfg *contract.Config) string {
	if cfg.UseColors {
		return contract.GetColorRating(text, avg)
	}
	return text
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
