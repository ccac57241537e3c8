package config

import "time"

// Default runtime limits and guardrails for the sales dashboard server.
// They are referenced by internal/runtime and can be overridden by the YAML
// config file or environment variables (see Load).

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 8
	DefaultMaxSnapshots          = 32

	// Source and output bounds
	DefaultMaxSourceBytes  = 16 << 20 // 16MB per source
	DefaultMaxRows         = 200_000
	DefaultSeriesPageSize  = 50
	DefaultTopAreas        = 5
	DefaultOtherLabel      = "Other"
	DefaultSummaryTokens   = 512
	DefaultSummaryModel    = "gpt-4o"
	DefaultLanguage        = "en"
	DefaultSchema          = "canonical"
	DefaultHTTPAddr        = ":8080"
	DefaultConfigPath      = "./salesdash.yml"
	DefaultExportExtension = ".xlsx"
)

const (
	// Timeouts
	DefaultFetchTimeout          = 15 * time.Second
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
	DefaultShutdownTimeout       = 5 * time.Second

	// Snapshot cache
	DefaultSnapshotTTL           = 10 * time.Minute
	DefaultSnapshotCleanupPeriod = time.Minute
)
