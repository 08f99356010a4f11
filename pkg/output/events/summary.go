package events

import (
	"time"

	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/scoring"
)

// SummaryEvent represents the final summary of a gate run.
// It contains the verdict, the severity breakdown, the violation and
// recommendation lists, the regression guard outcome when a baseline
// comparison ran, and timing.
type SummaryEvent struct {
	BaseEvent
	Version         string          `json:"version"`
	AppName         string          `json:"app_name"`
	Verdict         VerdictInfo     `json:"verdict"`
	Totals          scoring.Counts  `json:"totals"`
	TotalFindings   int             `json:"total_findings"`
	Violations      []string        `json:"violations"`
	Recommendations []string        `json:"recommendations"`
	Regression      *RegressionInfo `json:"regression,omitempty"`
	Policy          PolicyInfo      `json:"policy"`
	Timing          SummaryTiming   `json:"timing"`
	ExitCode        int             `json:"exit_code"`
	ExitReason      string          `json:"exit_reason"`
}

// VerdictInfo contains the decision for the run.
type VerdictInfo struct {
	Status    policy.Status `json:"status"`
	Rule      string        `json:"rule"`
	RiskScore int           `json:"risk_score"`
}

// PolicyInfo identifies the policy the run was judged by.
type PolicyInfo struct {
	Reference      string `json:"reference"`
	MediumCountMax int    `json:"medium_count_max"`
	RiskScoreMax   int    `json:"risk_score_max"`
}

// RegressionInfo contains the regression guard outcome for the summary.
type RegressionInfo struct {
	Accepted      bool   `json:"accepted"`
	FirstRun      bool   `json:"first_run"`
	BaselineScore int    `json:"baseline_score"`
	CurrentScore  int    `json:"current_score"`
	Delta         int    `json:"delta"`
	Tolerance     string `json:"tolerance"`
	Summary       string `json:"summary"`
}

// SummaryTiming contains timing information for the run.
type SummaryTiming struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationSec float64   `json:"duration_sec"`
}
