// Package writers provides output writers for various formats.
package writers

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/jsonutil"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/scoring"
)

// jsonReport mirrors the evaluation envelope the gate writes to disk.
// A file produced by this writer can be re-read by the guard or diffed
// against an earlier run's artifact.
type jsonReport struct {
	AppName         string            `json:"app_name"`
	Status          policy.Status     `json:"status"`
	RiskScore       int               `json:"risk_score"`
	SeverityCounts  scoring.Counts    `json:"severity_counts"`
	TotalFindings   int               `json:"total_findings"`
	Violations      []string          `json:"violations"`
	Recommendations []string          `json:"recommendations"`
	Findings        []finding.Finding `json:"findings,omitempty"`
	Regression      *jsonRegression   `json:"regression,omitempty"`
	PolicyReference string            `json:"policy_reference,omitempty"`
	AnalysisTime    time.Time         `json:"analysis_time"`
	RunID           string            `json:"run_id,omitempty"`
}

// jsonRegression is the guard outcome block of the envelope.
type jsonRegression struct {
	Accepted      bool   `json:"accepted"`
	FirstRun      bool   `json:"first_run"`
	BaselineScore int    `json:"baseline_score"`
	CurrentScore  int    `json:"current_score"`
	Delta         int    `json:"delta"`
	Tolerance     string `json:"tolerance"`
	Summary       string `json:"summary,omitempty"`
}

// JSONWriter buffers events and writes the evaluation envelope as a
// single JSON document on Close.
type JSONWriter struct {
	w      io.Writer
	events []events.Event
	mu     sync.Mutex
	opts   JSONOptions
}

// JSONOptions configures the JSON writer behavior.
type JSONOptions struct {
	// Pretty enables indented output.
	Pretty bool

	// IndentSize sets the indentation size (default 2).
	IndentSize int

	// OmitFindings drops the findings array from the envelope. The
	// verdict block is kept, so the file stays useful as a gate
	// artifact while staying small for large scans.
	OmitFindings bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, opts JSONOptions) *JSONWriter {
	if opts.IndentSize == 0 {
		opts.IndentSize = 2
	}
	return &JSONWriter{
		w:      w,
		events: make([]events.Event, 0),
		opts:   opts,
	}
}

// Write buffers an event for writing.
func (jw *JSONWriter) Write(event events.Event) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.events = append(jw.events, event)
	return nil
}

// Flush is a no-op for the JSON writer since the envelope can only be
// assembled once the run is complete.
func (jw *JSONWriter) Flush() error {
	return nil
}

// Close assembles the envelope from the buffered events and writes it.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	report := jw.buildReport()

	encoder := jsonutil.NewStreamEncoder(jw.w)
	if jw.opts.Pretty {
		encoder.SetIndent("", strings.Repeat(" ", jw.opts.IndentSize))
	}
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("json: encode: %w", err)
	}

	if closer, ok := jw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for all event types.
func (jw *JSONWriter) SupportsEvent(eventType events.EventType) bool {
	return true
}

// buildReport folds the buffered events into the envelope. Later
// events win where fields overlap, so the summary refines what the
// start event seeded.
func (jw *JSONWriter) buildReport() *jsonReport {
	report := &jsonReport{
		Violations:      []string{},
		Recommendations: []string{},
		AnalysisTime:    time.Now(),
	}

	for _, event := range jw.events {
		switch e := event.(type) {
		case *events.StartEvent:
			report.AppName = e.AppName
			report.PolicyReference = e.PolicyReference
			report.RunID = e.RunID()

		case *events.FindingEvent:
			if !jw.opts.OmitFindings {
				report.Findings = append(report.Findings, e.Finding)
			}

		case *events.EvaluationEvent:
			report.Status = e.Status
			report.RiskScore = e.RiskScore
			report.SeverityCounts = e.SeverityCounts
			report.TotalFindings = e.TotalFindings
			report.AnalysisTime = e.Timestamp()

		case *events.RegressionEvent:
			report.Regression = &jsonRegression{
				Accepted:      e.Accepted,
				FirstRun:      e.FirstRun,
				BaselineScore: e.BaselineScore,
				CurrentScore:  e.CurrentScore,
				Delta:         e.Delta,
				Tolerance:     e.Tolerance,
				Summary:       e.Summary,
			}

		case *events.SummaryEvent:
			if e.AppName != "" {
				report.AppName = e.AppName
			}
			if len(e.Violations) > 0 {
				report.Violations = e.Violations
			}
			if len(e.Recommendations) > 0 {
				report.Recommendations = e.Recommendations
			}
			if e.Policy.Reference != "" {
				report.PolicyReference = e.Policy.Reference
			}
		}
	}

	return report
}

// Ensure JSONWriter implements the Writer interface.
var _ dispatcher.Writer = (*JSONWriter)(nil)
