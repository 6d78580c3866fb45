package contract

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	logger     = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	loggerOnce sync.Once
)

// Logger returns the shared structured logger.
func Logger() *zerolog.Logger {
	return &logger
}

// ConfigureLogging sets the level of the shared logger. Only the first call
// replaces the writer; later calls only adjust the level.
func ConfigureLogging(level string, out io.Writer) error {
	lvl, err := parseLogLevel(level)
	if err != nil {
		return err
	}
	loggerOnce.Do(func() {
		if out == nil {
			out = os.Stderr
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	})
	zerolog.SetGlobalLevel(lvl)
	return nil
}

func parseLogLevel(level string) (zerolog.Level, error) {
	switch level {
	case "", "warn":
		return zerolog.WarnLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level '%s'. must be debug, info, warn, error, off", level)
	}
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}
