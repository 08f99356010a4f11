// Package writers provides output writers for various formats.
package writers

import (
	"encoding/xml"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*JUnitWriter)(nil)

// JUnitWriter writes events in JUnit XML format.
// JUnit XML is a standard format for CI/CD systems including Jenkins,
// GitLab CI, GitHub Actions, Azure DevOps, and CircleCI.
// Each policy check appears as one test case, so a FAIL verdict shows
// up in the CI test report naming the rule that fired.
// The writer is safe for concurrent use.
type JUnitWriter struct {
	w          io.Writer
	mu         sync.Mutex
	opts       JUnitOptions
	violations map[string]*events.ViolationEvent
	evaluation *events.EvaluationEvent
	regression *events.RegressionEvent
	errors     []junitTestCase
	startTime  time.Time
}

// JUnitOptions configures the JUnit XML writer.
type JUnitOptions struct {
	// SuiteName is the name of the test suite (default: "riskgate").
	SuiteName string

	// Package is the package name for test cases (used as classname prefix).
	Package string

	// Hostname is the hostname for the test suite.
	Hostname string
}

// gateChecks are the policy checks reported as test cases, in decision
// table order. The PASS rule is the absence of all four.
var gateChecks = []string{
	policy.RuleCriticalFindings,
	policy.RuleHighFindings,
	policy.RuleMediumVolume,
	policy.RuleRiskScore,
}

// JUnit XML structures.

type junitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	TestSuites []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	Hostname  string          `xml:"hostname,attr,omitempty"`
	TestCases []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Error     *junitError   `xml:"error,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type junitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// NewJUnitWriter creates a new JUnit XML writer that writes to w.
// The writer buffers all events and writes a complete JUnit document on Close.
// The writer is safe for concurrent use.
func NewJUnitWriter(w io.Writer, opts JUnitOptions) *JUnitWriter {
	if opts.SuiteName == "" {
		opts.SuiteName = defaults.ToolName
	}
	if opts.Package == "" {
		opts.Package = defaults.ToolName
	}
	return &JUnitWriter{
		w:          w,
		opts:       opts,
		violations: make(map[string]*events.ViolationEvent),
		startTime:  time.Now(),
	}
}

// Write captures gate events for the JUnit document.
// Mapping:
//   - each policy check → one test case (failure when its rule fired)
//   - rejected regression guard → <failure type="regression">
//   - run errors → <error> test cases
//
// Other event types are ignored.
func (jw *JUnitWriter) Write(event events.Event) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	switch e := event.(type) {
	case *events.ViolationEvent:
		jw.violations[e.Rule] = e
	case *events.EvaluationEvent:
		jw.evaluation = e
	case *events.RegressionEvent:
		jw.regression = e
	case *events.ErrorEvent:
		jw.errors = append(jw.errors, junitTestCase{
			Name:      e.Stage,
			ClassName: jw.opts.Package + ".run",
			Error: &junitError{
				Message: e.Message,
				Type:    e.ErrorType,
				Content: e.Message,
			},
		})
	}
	return nil
}

// formatViolationDetails formats the violation information for the failure content.
func formatViolationDetails(ve *events.ViolationEvent) string {
	return fmt.Sprintf(`Violation Details:
- Application: %s
- Rule: %s
- Verdict: %s
- Message: %s`,
		ve.AppName,
		ve.Rule,
		ve.Status,
		ve.Message,
	)
}

// formatRegressionDetails formats the guard outcome for the failure content.
func formatRegressionDetails(re *events.RegressionEvent) string {
	return fmt.Sprintf(`Regression Details:
- Application: %s
- Baseline Score: %d
- Current Score: %d
- Delta: %+d
- Tolerance: %s`,
		re.AppName,
		re.BaselineScore,
		re.CurrentScore,
		re.Delta,
		re.Tolerance,
	)
}

// Flush is a no-op for JUnit writer.
// All results are written as a single document on Close.
func (jw *JUnitWriter) Flush() error {
	return nil
}

// Close writes all buffered results as a complete JUnit XML document.
// If the underlying writer implements io.Closer, it will be closed.
func (jw *JUnitWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	// Without an evaluation there are no check outcomes to report;
	// only surface run errors.
	cases := make([]junitTestCase, 0, len(gateChecks)+len(jw.errors)+1)
	if jw.evaluation != nil {
		for _, rule := range gateChecks {
			tc := junitTestCase{
				Name:      rule,
				ClassName: jw.opts.Package + ".policy",
			}
			if ve, ok := jw.violations[rule]; ok {
				tc.Failure = &junitFailure{
					Message: ve.Message,
					Type:    "violation",
					Content: formatViolationDetails(ve),
				}
			}
			cases = append(cases, tc)
		}
	}

	if jw.regression != nil {
		tc := junitTestCase{
			Name:      "regression-guard",
			ClassName: jw.opts.Package + ".baseline",
		}
		if !jw.regression.Accepted {
			tc.Failure = &junitFailure{
				Message: "Risk score regression detected",
				Type:    "regression",
				Content: formatRegressionDetails(jw.regression),
			}
		}
		cases = append(cases, tc)
	}

	cases = append(cases, jw.errors...)

	// Calculate totals
	failures := 0
	errs := 0
	for _, tc := range cases {
		if tc.Failure != nil {
			failures++
		}
		if tc.Error != nil {
			errs++
		}
	}

	// Calculate elapsed time
	elapsed := time.Since(jw.startTime).Seconds()

	suite := junitTestSuite{
		Name:      jw.opts.SuiteName,
		Tests:     len(cases),
		Failures:  failures,
		Errors:    errs,
		Time:      elapsed,
		Timestamp: jw.startTime.Format(time.RFC3339),
		Hostname:  jw.opts.Hostname,
		TestCases: cases,
	}

	doc := junitTestSuites{
		TestSuites: []junitTestSuite{suite},
	}

	// Write XML header
	if _, err := jw.w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("junit: write header: %w", err)
	}

	// Encode the document
	encoder := xml.NewEncoder(jw.w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("junit: encode: %w", err)
	}

	if closer, ok := jw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for the events the JUnit document reports.
// JUnit XML is designed for check outcomes, not progress events.
func (jw *JUnitWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeViolation, events.EventTypeEvaluation,
		events.EventTypeRegression, events.EventTypeError:
		return true
	}
	return false
}
