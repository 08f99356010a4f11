// Package events defines the event types emitted during a gate run.
// All events are designed for JSON serialization and CI/CD integration.
//
// This package provides the foundational types that all other event types
// will embed. The BaseEvent struct is designed to be embedded in specific
// event types (EvaluationEvent, RegressionEvent, etc.).
package events

import (
	"time"

	"github.com/riskgate/riskgate/pkg/finding"
)

// EventType represents the type of output event.
type EventType string

const (
	// EventTypeStart indicates a gate run has started.
	EventTypeStart EventType = "start"
	// EventTypeFinding carries one normalized finding from the input
	// document. Emitted once per finding before the verdict.
	EventTypeFinding EventType = "finding"
	// EventTypeEvaluation indicates a verdict was computed for a run.
	EventTypeEvaluation EventType = "evaluation"
	// EventTypeViolation indicates a policy threshold was exceeded.
	EventTypeViolation EventType = "violation"
	// EventTypeRegression indicates the regression guard compared the
	// run against the stored baseline.
	EventTypeRegression EventType = "regression"
	// EventTypeBaseline indicates the stored baseline was updated or kept.
	EventTypeBaseline EventType = "baseline"
	// EventTypeError indicates an error occurred.
	EventTypeError EventType = "error"
	// EventTypeSummary indicates a summary of the run.
	EventTypeSummary EventType = "summary"
	// EventTypeComplete indicates a gate run has completed.
	EventTypeComplete EventType = "complete"
)

// Severity represents the severity tier of a finding referenced by an
// event. This is a type alias for finding.Severity so event consumers
// do not need to import the finding package directly.
type Severity = finding.Severity

const (
	// SeverityCritical indicates a critical severity finding.
	SeverityCritical = finding.Critical
	// SeverityHigh indicates a high severity finding.
	SeverityHigh = finding.High
	// SeverityMedium indicates a medium severity finding.
	SeverityMedium = finding.Medium
	// SeverityLow indicates a low severity finding.
	SeverityLow = finding.Low
	// SeverityInfo indicates an informational finding.
	SeverityInfo = finding.Info
)

// Event is the base interface for all events.
type Event interface {
	EventType() EventType
	Timestamp() time.Time
	RunID() string
}

// BaseEvent contains common fields for all events.
// It is designed to be embedded in specific event types.
type BaseEvent struct {
	Type EventType `json:"type"`
	Time time.Time `json:"timestamp"`
	Run  string    `json:"run_id"`
}

// EventType returns the type of this event.
func (e BaseEvent) EventType() EventType { return e.Type }

// Timestamp returns when this event occurred.
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// RunID returns the unique identifier for the gate run that produced
// this event.
func (e BaseEvent) RunID() string { return e.Run }
