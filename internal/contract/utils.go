package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/querymancer/schema"
)

// Color variables for console output.
var (
	FastColor     = color.New(color.FgCyan)                // FastColor marks the cheap backend.
	AccurateColor = color.New(color.FgMagenta, color.Bold) // AccurateColor marks the expensive backend.
	GoodColor     = color.New(color.FgGreen)
	PoorColor     = color.New(color.FgRed, color.Bold)
)

// GetColorBackend returns a colored backend label for console output (table).
func GetColorBackend(kind schema.BackendKind) string {
	switch kind {
	case schema.AccurateBackend:
		return AccurateColor.Sprint(string(kind))
	case schema.FastBackend:
		return FastColor.Sprint(string(kind))
	default:
		return string(kind)
	}
}

// GetColorRating colors an average rating: green at 4 and above, red below 3.
func GetColorRating(text string, avg float64) string {
	switch {
	case avg >= 4:
		return GoodColor.Sprint(text)
	case avg > 0 && avg < 3:
		return PoorColor.Sprint(text)
	default:
		return text
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It falls back to os.Stdout when no path is given.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// GetMonitorFilePath returns the default path of the JSON metrics log.
func GetMonitorFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".querymancer_metrics.json"
	}
	return filepath.Join(homeDir, ".querymancer_metrics.json")
}

// GetMonitorDBFilePath returns the default path of the SQLite record store.
func GetMonitorDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".querymancer_metrics.db"
	}
	return filepath.Join(homeDir, ".querymancer_metrics.db")
}

// GetDatabaseFilePath returns the default SQLite database served by the pool.
func GetDatabaseFilePath() string {
	return "querymancer.db"
}

// TruncateText shortens text to a maximum width with an ellipsis suffix.
// Requires maxWidth > 3 so there is room for the "..." and at least one character.
func TruncateText(text string, maxWidth int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return text
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
