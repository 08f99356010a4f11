package events

import "time"

// StartEvent is emitted when a gate run begins.
// It carries the input and policy configuration the run will use, so a
// consumer can reconstruct what was evaluated without the CLI flags.
type StartEvent struct {
	BaseEvent
	AppName         string     `json:"app_name"`
	PolicyReference string     `json:"policy_reference"`
	TotalFindings   int        `json:"total_findings"`
	Config          GateConfig `json:"config"`
}

// GateConfig contains the gate run configuration settings.
type GateConfig struct {
	InputPath      string   `json:"input_path,omitempty"`
	BaselineDir    string   `json:"baseline_dir,omitempty"`
	Tolerance      float64  `json:"tolerance"`
	TolerancePct   bool     `json:"tolerance_pct,omitempty"`
	FailOnWarn     bool     `json:"fail_on_warn"`
	UpdateBaseline bool     `json:"update_baseline"`
	Formats        []string `json:"formats,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// NewStartEvent creates a StartEvent.
func NewStartEvent(runID, app, policyRef string, totalFindings int, cfg GateConfig) *StartEvent {
	return &StartEvent{
		BaseEvent: BaseEvent{
			Type: EventTypeStart,
			Time: time.Now(),
			Run:  runID,
		},
		AppName:         app,
		PolicyReference: policyRef,
		TotalFindings:   totalFindings,
		Config:          cfg,
	}
}
