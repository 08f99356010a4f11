package events

import "time"

// RegressionEvent is emitted after the regression guard compared the
// current run against the stored baseline. Fields mirror the guard
// report so consumers do not need the baseline package.
type RegressionEvent struct {
	BaseEvent
	AppName       string `json:"app_name"`
	Accepted      bool   `json:"accepted"`
	FirstRun      bool   `json:"first_run"`
	BaselineScore int    `json:"baseline_score"`
	CurrentScore  int    `json:"current_score"`
	Delta         int    `json:"delta"`
	Tolerance     string `json:"tolerance"`
	Summary       string `json:"summary"`
}

// NewRegressionEvent creates a RegressionEvent.
func NewRegressionEvent(runID, app string, accepted, firstRun bool, baselineScore, currentScore, delta int, tolerance, summary string) *RegressionEvent {
	return &RegressionEvent{
		BaseEvent: BaseEvent{
			Type: EventTypeRegression,
			Time: time.Now(),
			Run:  runID,
		},
		AppName:       app,
		Accepted:      accepted,
		FirstRun:      firstRun,
		BaselineScore: baselineScore,
		CurrentScore:  currentScore,
		Delta:         delta,
		Tolerance:     tolerance,
		Summary:       summary,
	}
}
