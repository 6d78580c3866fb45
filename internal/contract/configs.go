package contract

import (
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/querymancer/schema"
)

// Default values for configuration.
const (
	DefaultMaxConnections      = 10
	DefaultAcquireTimeout      = 30 * time.Second
	DefaultQueryCacheSize      = 1000
	DefaultQueryCacheTTL       = 5 * time.Minute
	DefaultSchemaCacheSize     = 256
	DefaultSchemaCacheTTL      = time.Hour
	DefaultComplexityCacheSize = 100
	DefaultComplexityCacheTTL  = time.Hour
	DefaultThreshold           = 0.25
	DefaultCalibrationInterval = 24 * time.Hour
	DefaultMinSamples          = 20
	DefaultMaxMessages         = 8
	DefaultMaxTokenEstimate    = 4096
	DefaultPrecision           = 2
)

// Threshold bounds enforced by the calibrator.
const (
	MinThreshold = 0.1
	MaxThreshold = 0.5
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// SQLiteSettings holds the per-connection setup applied to every SQLite connection.
type SQLiteSettings struct {
	JournalMode string
	Synchronous string
	CacheSize   int
	TempStore   string
}

// DefaultSQLiteSettings returns WAL journaling, relaxed durability, a large page
// cache and in-memory temp storage.
func DefaultSQLiteSettings() SQLiteSettings {
	return SQLiteSettings{
		JournalMode: "WAL",
		Synchronous: "NORMAL",
		CacheSize:   10000,
		TempStore:   "MEMORY",
	}
}

// SQLiteRawInput holds the sqlite block from the YAML config file.
type SQLiteRawInput struct {
	JournalMode string `mapstructure:"journal_mode"`
	Synchronous string `mapstructure:"synchronous"`
	CacheSize   *int   `mapstructure:"cache_size"`
	TempStore   string `mapstructure:"temp_store"`
}

// Config holds the runtime configuration.
// This struct remains the "final, validated" config.
type Config struct {
	DBBackend      schema.DatabaseBackend
	DBConnect      string // Please use env var as this is plaintext
	MaxConnections int
	AcquireTimeout time.Duration
	SQLite         SQLiteSettings

	QueryCacheSize      int
	QueryCacheTTL       time.Duration
	SchemaCacheTTL      time.Duration
	ComplexityCacheSize int
	ComplexityCacheTTL  time.Duration

	Threshold           float64
	CalibrationInterval time.Duration
	MinSamples          int

	MonitorBackend   schema.DatabaseBackend
	MonitorPath      string
	MonitorDBConnect string // Please use env var as this is plaintext

	MaxMessages      int
	MaxTokenEstimate int

	LogLevel    string
	MetricsAddr string

	Precision  int
	Output     schema.OutputMode
	OutputFile string
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	Rating    int
	Comment   string
	Recommend bool
	Explain   bool
	Limit     int // 0 = everything
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	Query string

	// --- Fields from rootCmd.PersistentFlags() ---
	DBBackend           string  `mapstructure:"db-backend"`
	DBConnect           string  `mapstructure:"db-connect"`
	MaxConnections      int     `mapstructure:"max-connections"`
	AcquireTimeout      string  `mapstructure:"acquire-timeout"`
	QueryCacheSize      int     `mapstructure:"query-cache-size"`
	QueryCacheTTL       string  `mapstructure:"query-cache-ttl"`
	SchemaCacheTTL      string  `mapstructure:"schema-cache-ttl"`
	ComplexityCacheSize int     `mapstructure:"complexity-cache-size"`
	ComplexityCacheTTL  string  `mapstructure:"complexity-cache-ttl"`
	Threshold           float64 `mapstructure:"threshold"`
	CalibrationInterval string  `mapstructure:"calibration-interval"`
	MinSamples          int     `mapstructure:"min-samples"`
	MonitorBackend      string  `mapstructure:"monitor-backend"`
	MonitorPath         string  `mapstructure:"monitor-path"`
	MonitorDBConnect    string  `mapstructure:"monitor-db-connect"`
	MaxMessages         int     `mapstructure:"max-messages"`
	MaxTokenEstimate    int     `mapstructure:"max-token-estimate"`
	LogLevel            string  `mapstructure:"log-level"`
	Color               string  `mapstructure:"color"`
	Precision           int     `mapstructure:"precision"`
	Output              string  `mapstructure:"output"`
	OutputFile          string  `mapstructure:"output-file"`
	Width               int     `mapstructure:"width"`
	MetricsAddr         string  `mapstructure:"metrics-addr"`

	// --- Fields from subcommand flags ---
	Rating    int    `mapstructure:"rating"`
	Comment   string `mapstructure:"comment"`
	Recommend bool   `mapstructure:"recommend"`
	Explain   bool   `mapstructure:"explain"`
	Limit     int    `mapstructure:"limit"`

	// --- Pragmas from config file ---
	SQLite SQLiteRawInput `mapstructure:"sqlite"`
}

// Clone returns a copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processDurations(cfg, input); err != nil {
		return err
	}
	if err := processRouting(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	processSQLiteSettings(cfg, input)
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend, schema.JSONBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates the pool and monitor backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Pool Backend Validation ---
	cfg.DBBackend = schema.DatabaseBackend(strings.ToLower(input.DBBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.DBBackend]; !ok {
		return fmt.Errorf("invalid db backend '%s'. must be sqlite, mysql, postgresql", input.DBBackend)
	}
	cfg.DBConnect = input.DBConnect
	if err := ValidateDatabaseConnectionString(cfg.DBBackend, cfg.DBConnect); err != nil {
		return fmt.Errorf("db-connect: %w", err)
	}

	// --- Monitor Backend Validation ---
	cfg.MonitorBackend = schema.DatabaseBackend(strings.ToLower(input.MonitorBackend))
	if cfg.MonitorBackend == "" {
		cfg.MonitorBackend = schema.JSONBackend
	}
	if _, ok := schema.ValidMonitorBackends[cfg.MonitorBackend]; !ok {
		return fmt.Errorf("invalid monitor backend '%s'. must be json, sqlite, mysql, postgresql, none", input.MonitorBackend)
	}
	cfg.MonitorPath = input.MonitorPath
	cfg.MonitorDBConnect = input.MonitorDBConnect
	if err := ValidateDatabaseConnectionString(cfg.MonitorBackend, cfg.MonitorDBConnect); err != nil {
		return fmt.Errorf("monitor-db-connect: %w", err)
	}
	return nil
}

// validateSimpleInputs processes and validates all non-duration fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.MetricsAddr = input.MetricsAddr
	cfg.Comment = input.Comment
	cfg.Recommend = input.Recommend
	cfg.Explain = input.Explain

	if input.Limit < 0 {
		return fmt.Errorf("limit cannot be negative (received %d)", input.Limit)
	}
	cfg.Limit = input.Limit

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	cfg.LogLevel = strings.ToLower(input.LogLevel)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	// --- 1. Pool and Cache Sizes ---
	if input.MaxConnections <= 0 {
		return fmt.Errorf("max-connections must be greater than 0 (received %d)", input.MaxConnections)
	}
	cfg.MaxConnections = input.MaxConnections

	if input.QueryCacheSize <= 0 {
		return fmt.Errorf("query-cache-size must be greater than 0 (received %d)", input.QueryCacheSize)
	}
	cfg.QueryCacheSize = input.QueryCacheSize

	if input.ComplexityCacheSize <= 0 {
		return fmt.Errorf("complexity-cache-size must be greater than 0 (received %d)", input.ComplexityCacheSize)
	}
	cfg.ComplexityCacheSize = input.ComplexityCacheSize

	// --- 2. Token Budgets ---
	if input.MaxMessages < 1 {
		return fmt.Errorf("max-messages must be at least 1 (received %d)", input.MaxMessages)
	}
	cfg.MaxMessages = input.MaxMessages

	if input.MaxTokenEstimate < 0 {
		return fmt.Errorf("max-token-estimate cannot be negative (received %d)", input.MaxTokenEstimate)
	}
	cfg.MaxTokenEstimate = input.MaxTokenEstimate

	// --- 3. Feedback Rating ---
	// Out of range ratings are clamped by the monitor, not rejected here.
	cfg.Rating = input.Rating

	// --- 4. Precision and Output Validation ---
	if input.Precision < 1 || input.Precision > 4 {
		return fmt.Errorf("precision must be between 1 and 4 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", cfg.Output)
	}
	return nil
}

// processDurations parses every duration field.
func processDurations(cfg *Config, input *ConfigRawInput) error {
	fields := []struct {
		name string
		raw  string
		def  time.Duration
		dst  *time.Duration
	}{
		{"acquire-timeout", input.AcquireTimeout, DefaultAcquireTimeout, &cfg.AcquireTimeout},
		{"query-cache-ttl", input.QueryCacheTTL, DefaultQueryCacheTTL, &cfg.QueryCacheTTL},
		{"schema-cache-ttl", input.SchemaCacheTTL, DefaultSchemaCacheTTL, &cfg.SchemaCacheTTL},
		{"complexity-cache-ttl", input.ComplexityCacheTTL, DefaultComplexityCacheTTL, &cfg.ComplexityCacheTTL},
		{"calibration-interval", input.CalibrationInterval, DefaultCalibrationInterval, &cfg.CalibrationInterval},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			*f.dst = f.def
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(f.raw))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive (received %s)", f.name, d)
		}
		*f.dst = d
	}
	return nil
}

// processRouting validates the initial threshold and the calibration gate.
func processRouting(cfg *Config, input *ConfigRawInput) error {
	if input.Threshold < MinThreshold || input.Threshold > MaxThreshold {
		return fmt.Errorf("threshold must be between %.2f and %.2f (received %.2f)", MinThreshold, MaxThreshold, input.Threshold)
	}
	cfg.Threshold = input.Threshold

	if input.MinSamples < 1 {
		return fmt.Errorf("min-samples must be at least 1 (received %d)", input.MinSamples)
	}
	cfg.MinSamples = input.MinSamples
	return nil
}

// processSQLiteSettings overlays the sqlite block from the config file on the defaults.
func processSQLiteSettings(cfg *Config, input *ConfigRawInput) {
	settings := DefaultSQLiteSettings()
	if v := strings.TrimSpace(input.SQLite.JournalMode); v != "" {
		settings.JournalMode = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(input.SQLite.Synchronous); v != "" {
		settings.Synchronous = strings.ToUpper(v)
	}
	if input.SQLite.CacheSize != nil {
		settings.CacheSize = *input.SQLite.CacheSize
	}
	if v := strings.TrimSpace(input.SQLite.TempStore); v != "" {
		settings.TempStore = strings.ToUpper(v)
	}
	cfg.SQLite = settings
}

// ProcessProfilingConfig handles the profiling flag and sets up profiling configuration.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}
