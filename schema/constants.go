package schema

// Custom string types for type safety.
type (
	// BackendKind identifies one of the two interchangeable model backends.
	BackendKind string

	// Dimension represents keys used in complexity breakdowns.
	Dimension string

	// Domain represents the subject area detected for a query.
	Domain string

	// Role is the speaker of a conversation message.
	Role string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend behind a pool or record store.
	DatabaseBackend string
)

// Backend kinds the router selects between.
const (
	FastBackend     BackendKind = "fast"
	AccurateBackend BackendKind = "accurate"
)

// Dimensions used in the complexity breakdown.
const (
	DimLength        Dimension = "length"
	DimPatterns      Dimension = "patterns"
	DimSQLComplexity Dimension = "sql_complexity"
	DimCognitiveLoad Dimension = "cognitive_load"
)

// Domains recognized by the analyzer. NoDomain means nothing cleared the match floor.
const (
	NoDomain           Domain = ""
	SQLDomain          Domain = "sql"
	DataScienceDomain  Domain = "data_science"
	ReportingDomain    Domain = "reporting"
	SimpleLookupDomain Domain = "simple_lookup"
)

// Message roles.
const (
	SystemRole    Role = "system"
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
	ToolRole      Role = "tool"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"

	// JSONBackend is only valid for the monitor log.
	JSONBackend DatabaseBackend = "json"
)

// AllDimensions lists the breakdown dimensions in display order.
var AllDimensions = []Dimension{DimLength, DimPatterns, DimSQLComplexity, DimCognitiveLoad}

// AllBackendKinds lists both backends in display order.
var AllBackendKinds = []BackendKind{FastBackend, AccurateBackend}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid backends for the connection pool.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
}

// ValidMonitorBackends lists all valid backends for the performance log.
var ValidMonitorBackends = map[DatabaseBackend]struct{}{
	JSONBackend:       {},
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// DefaultDimensionWeights returns the weights used to combine the complexity dimensions.
func DefaultDimensionWeights() map[Dimension]float64 {
	return map[Dimension]float64{
		DimLength:        0.15,
		DimPatterns:      0.45,
		DimSQLComplexity: 0.30,
		DimCognitiveLoad: 0.10,
	}
}
