// Package constants provides shared constants for the meal-budget application.
package constants

import "time"

// Money constants
const (
	// MinorUnitsPerMajor is the number of minor currency units in one major unit
	MinorUnitsPerMajor = 100

	// DefaultCurrencySymbol is prefixed to amounts in human-readable output
	DefaultCurrencySymbol = "$"
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "MEALBUDGET"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxBodyBytes caps plan request bodies (256 KiB)
	DefaultMaxBodyBytes int64 = 256 * 1024

	// DefaultReadHeaderTimeout bounds how long a client may take to send headers
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown of in-flight requests
	DefaultShutdownTimeout = 10 * time.Second
)

// Storage defaults
const (
	// StorageDriverSQLite selects the embedded SQLite store
	StorageDriverSQLite = "sqlite"

	// StorageDriverPostgres selects the PostgreSQL store
	StorageDriverPostgres = "postgres"

	// DefaultStorageDSN is the default SQLite database path
	DefaultStorageDSN = "meal-budget.db"
)

// Planning limits
const (
	// MaxMealsPerDay bounds the meal slots a generated plan may contain
	MaxMealsPerDay = 6

	// MaxPlanDays bounds the length of a generated plan
	MaxPlanDays = 31

	// ServingStep is the granularity servings are rounded to
	ServingStep = 0.25
)
