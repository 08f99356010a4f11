package events

import (
	"time"

	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/scoring"
)

// EvaluationEvent is emitted when the verdict for a run has been
// computed. It carries the full decision: the status, the decision
// table rule that matched, the weighted risk score, and the severity
// breakdown the score was computed from.
type EvaluationEvent struct {
	BaseEvent
	AppName        string         `json:"app_name"`
	Status         policy.Status  `json:"status"`
	Rule           string         `json:"rule"`
	RiskScore      int            `json:"risk_score"`
	SeverityCounts scoring.Counts `json:"severity_counts"`
	TotalFindings  int            `json:"total_findings"`
}

// NewEvaluationEvent creates an EvaluationEvent from an evaluation result.
func NewEvaluationEvent(runID, app string, result *policy.Result, rule string) *EvaluationEvent {
	return &EvaluationEvent{
		BaseEvent: BaseEvent{
			Type: EventTypeEvaluation,
			Time: time.Now(),
			Run:  runID,
		},
		AppName:        app,
		Status:         result.Status,
		Rule:           rule,
		RiskScore:      result.RiskScore,
		SeverityCounts: result.SeverityCounts,
		TotalFindings:  result.TotalFindings,
	}
}
