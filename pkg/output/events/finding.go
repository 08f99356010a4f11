package events

import (
	"time"

	"github.com/riskgate/riskgate/pkg/finding"
)

// FindingEvent carries one normalized finding through the output
// pipeline. The gate emits one per finding, in input order, before the
// verdict; per-finding writers (CSV, SARIF, PDF) stream or buffer these.
type FindingEvent struct {
	BaseEvent
	AppName string          `json:"app_name"`
	Index   int             `json:"index"`
	Finding finding.Finding `json:"finding"`
	Weight  int             `json:"weight"`
}

// NewFindingEvent creates a FindingEvent for the finding at position
// index in the input document. Weight is the finding's contribution to
// the weighted risk score.
func NewFindingEvent(runID, app string, index int, f finding.Finding, weight int) *FindingEvent {
	return &FindingEvent{
		BaseEvent: BaseEvent{
			Type: EventTypeFinding,
			Time: time.Now(),
			Run:  runID,
		},
		AppName: app,
		Index:   index,
		Finding: f,
		Weight:  weight,
	}
}
