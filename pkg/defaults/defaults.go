// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all runtime configuration defaults.
//
// Usage:
//
//	cfg.BaselineDir = defaults.BaselineDir
//	ctx, cancel := context.WithTimeout(ctx, defaults.TimeoutBaselineIO)
//
// DO NOT use hardcoded values like `Limit: 20` anywhere.
// Instead, reference the appropriate constant from this package.
//
// Policy thresholds are the exception: they live next to the decision
// table in pkg/policy so the table and its defaults stay in one place.
package defaults

import (
	"fmt"
	"time"
)

// Version is the current riskgate version
const Version = "1.2.0"

// ============================================================================
// TOOL IDENTITY
// ============================================================================
//
// Use these wherever the tool identifies itself: reports, SARIF runs,
// CI annotations, MCP server metadata.
// ============================================================================

const (
	// ToolName is the canonical tool name
	ToolName = "riskgate"

	// ToolURL is the project homepage embedded in SARIF and reports
	ToolURL = "https://github.com/riskgate/riskgate"
)

// UserAgent returns the riskgate identity string with context
func UserAgent(context string) string {
	if context == "" {
		return ToolName + "/" + Version
	}
	return fmt.Sprintf("%s/%s (%s)", ToolName, Version, context)
}

// ============================================================================
// PATHS
// ============================================================================
//
// Default locations for stores and configuration, relative to the
// working directory so each repository keeps its own gate state.
// ============================================================================

const (
	// StateDir is the root directory for riskgate state
	StateDir = ".riskgate"

	// BaselineDir is where per-application baselines are stored
	BaselineDir = ".riskgate/baselines"

	// HistoryDir is where evaluation run history is stored
	HistoryDir = ".riskgate/history"

	// PolicyFile is the policy file looked up when -policy is not given
	PolicyFile = "riskgate.yaml"
)

// ============================================================================
// TIMEOUTS
// ============================================================================
//
// Use these for context deadlines around I/O.
// ============================================================================

const (
	// TimeoutBaselineIO bounds baseline store reads and writes
	TimeoutBaselineIO = 10 * time.Second

	// TimeoutEvaluation bounds a full gate run including stores
	TimeoutEvaluation = 30 * time.Second

	// TimeoutFlush bounds writer flushing at the end of a run
	TimeoutFlush = 5 * time.Second

	// TimeoutHTTPRead bounds reads on the metrics endpoint
	TimeoutHTTPRead = 5 * time.Second

	// TimeoutHTTPWrite bounds writes on the metrics endpoint
	TimeoutHTTPWrite = 10 * time.Second

	// TimeoutWebhook bounds outbound notification requests
	TimeoutWebhook = 10 * time.Second
)

// ============================================================================
// RETRIES
// ============================================================================

const (
	// RetryWebhook is the attempt count for notification deliveries
	RetryWebhook = 3
)

// ============================================================================
// CHANNEL SIZES
// ============================================================================
//
// Use these for buffered channels.
// ============================================================================

const (
	// ChannelTiny is for small buffers (10)
	ChannelTiny = 10

	// ChannelSmall is for typical buffers (100)
	ChannelSmall = 100

	// ChannelMedium is for larger buffers (1000)
	ChannelMedium = 1000
)

// ============================================================================
// CONCURRENCY
// ============================================================================
//
// Use these for worker pool sizing.
// ============================================================================

const (
	// BatchWorkers is the default number of parallel gate runs in batch mode
	BatchWorkers = 4
)

// ============================================================================
// STORAGE LIMITS
// ============================================================================
//
// Use these for history retention and listing defaults.
// ============================================================================

const (
	// HistoryListLimit is the default number of runs shown by listings
	HistoryListLimit = 20

	// TrendPoints is the default number of points in a trend
	TrendPoints = 30

	// TuningTopFindings is the default number of recurring findings
	// highlighted by tuning guidance
	TuningTopFindings = 3

	// PruneAge is the default retention window for run history
	PruneAge = 90 * 24 * time.Hour
)

// ============================================================================
// REPORT SETTINGS
// ============================================================================
//
// Use these for generated report headers and metadata.
// ============================================================================

const (
	// ReportTitle is the default title on generated reports
	ReportTitle = "Security Gate Report"

	// ContentTypeJSON is application/json
	ContentTypeJSON = "application/json"

	// ContentTypeSARIF is the SARIF media type
	ContentTypeSARIF = "application/sarif+json"
)
