package events

import "time"

// BaselineAction describes what happened to the stored baseline at the
// end of a run.
type BaselineAction string

const (
	// BaselineUpdated indicates the run was recorded as the new baseline.
	BaselineUpdated BaselineAction = "updated"
	// BaselineKept indicates the stored baseline was left untouched.
	BaselineKept BaselineAction = "kept"
	// BaselineSkipped indicates no baseline write was attempted.
	BaselineSkipped BaselineAction = "skipped"
)

// BaselineEvent is emitted when the gate decides what to do with the
// stored baseline. Reason explains a kept or skipped baseline.
type BaselineEvent struct {
	BaseEvent
	AppName   string         `json:"app_name"`
	Action    BaselineAction `json:"action"`
	RiskScore int            `json:"risk_score"`
	Reason    string         `json:"reason,omitempty"`
}

// NewBaselineEvent creates a BaselineEvent.
func NewBaselineEvent(runID, app string, action BaselineAction, riskScore int, reason string) *BaselineEvent {
	return &BaselineEvent{
		BaseEvent: BaseEvent{
			Type: EventTypeBaseline,
			Time: time.Now(),
			Run:  runID,
		},
		AppName:   app,
		Action:    action,
		RiskScore: riskScore,
		Reason:    reason,
	}
}
