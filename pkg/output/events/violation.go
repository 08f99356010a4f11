package events

import (
	"time"

	"github.com/riskgate/riskgate/pkg/policy"
)

// ViolationEvent represents a single exceeded policy threshold.
// One event is emitted per violation message in the verdict, so a hook
// can alert on critical findings without parsing the summary.
type ViolationEvent struct {
	BaseEvent
	AppName  string        `json:"app_name"`
	Status   policy.Status `json:"status"`
	Rule     string        `json:"rule"`
	Tier     Severity      `json:"tier,omitempty"`
	Message  string        `json:"message"`
	Count    int           `json:"count,omitempty"`
	Priority string        `json:"priority"`
}

// NewViolationEvent creates a ViolationEvent. Tier is empty for the
// aggregate risk score violation, which no single tier owns.
func NewViolationEvent(runID, app string, status policy.Status, rule string, tier Severity, message string, count int) *ViolationEvent {
	return &ViolationEvent{
		BaseEvent: BaseEvent{
			Type: EventTypeViolation,
			Time: time.Now(),
			Run:  runID,
		},
		AppName:  app,
		Status:   status,
		Rule:     rule,
		Tier:     tier,
		Message:  message,
		Count:    count,
		Priority: violationPriority(status),
	}
}

// violationPriority maps the verdict to an alert priority string.
func violationPriority(status policy.Status) string {
	switch status {
	case policy.StatusFail:
		return "high"
	case policy.StatusWarn:
		return "medium"
	default:
		return "low"
	}
}
