// Package gate orchestrates a full policy gate run: evaluate the
// findings, run the regression guard, decide acceptance, persist the
// baseline, and emit the event stream writers and hooks consume.
package gate

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/input"
	"github.com/riskgate/riskgate/pkg/iohelper"
	"github.com/riskgate/riskgate/pkg/jsonutil"
	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/scoring"
)

// Evaluation is the per-run artifact a gate run produces. Its JSON
// shape is a stable contract: CI pipelines archive it, and the report,
// guard, and tune commands read it back.
type Evaluation struct {
	AppName         string            `json:"app_name"`
	Status          policy.Status     `json:"status"`
	RiskScore       int               `json:"risk_score"`
	SeverityCounts  scoring.Counts    `json:"severity_counts"`
	TotalFindings   int               `json:"total_findings"`
	Violations      []string          `json:"violations"`
	Recommendations []string          `json:"recommendations"`
	Findings        []finding.Finding `json:"findings"`
	PolicyReference string            `json:"policy_reference"`
	AnalysisTime    time.Time         `json:"analysis_time"`
	RunID           string            `json:"run_id"`

	// Regression is set when the guard compared this run against a
	// stored baseline.
	Regression *baseline.RegressionReport `json:"regression,omitempty"`
}

// NewEvaluation assembles the envelope from an evaluation result.
func NewEvaluation(app string, result *policy.Result, findings []finding.Finding, policyRef, runID string, at time.Time) *Evaluation {
	if findings == nil {
		findings = []finding.Finding{}
	}
	return &Evaluation{
		AppName:         app,
		Status:          result.Status,
		RiskScore:       result.RiskScore,
		SeverityCounts:  result.SeverityCounts,
		TotalFindings:   result.TotalFindings,
		Violations:      result.Violations,
		Recommendations: result.Recommendations,
		Findings:        findings,
		PolicyReference: policyRef,
		AnalysisTime:    at.UTC(),
		RunID:           runID,
	}
}

// Evaluate runs the core evaluation without the guard or the event
// pipeline. Used by the evaluate command and the MCP server, where only
// the envelope matters.
func Evaluate(app string, findings []finding.Finding, pol *policy.Policy) (*Evaluation, error) {
	if pol == nil {
		pol = policy.Default()
	}
	result, err := pol.Evaluate(findings)
	if err != nil {
		return nil, err
	}
	return NewEvaluation(app, result, findings, pol.Reference(), uuid.NewString(), time.Now()), nil
}

// Result reconstructs the policy result embedded in the envelope, for
// callers that re-run the guard against a saved evaluation.
func (e *Evaluation) Result() *policy.Result {
	return &policy.Result{
		Status:          e.Status,
		RiskScore:       e.RiskScore,
		SeverityCounts:  e.SeverityCounts,
		TotalFindings:   e.TotalFindings,
		Violations:      e.Violations,
		Recommendations: e.Recommendations,
	}
}

// LoadEvaluation reads a saved evaluation envelope from disk.
func LoadEvaluation(path string) (*Evaluation, error) {
	data, truncated, err := iohelper.ReadFileLimited(path, iohelper.DefaultMaxInputSize)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", input.ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("reading evaluation: %w", err)
	}
	if truncated {
		return nil, fmt.Errorf("%w: %s", input.ErrInputTooLarge, path)
	}

	var e Evaluation
	if err := jsonutil.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", input.ErrInvalidInput, err)
	}
	if e.AppName == "" {
		return nil, fmt.Errorf("%w: evaluation missing app_name", input.ErrInvalidInput)
	}
	if !e.Status.IsValid() {
		return nil, fmt.Errorf("%w: evaluation status %q", input.ErrInvalidInput, e.Status)
	}
	if e.Violations == nil {
		e.Violations = []string{}
	}
	if e.Recommendations == nil {
		e.Recommendations = []string{}
	}
	if e.Findings == nil {
		e.Findings = []finding.Finding{}
	}

	return &e, nil
}

// Save writes the envelope as indented JSON.
func (e *Evaluation) Save(path string) error {
	data, err := jsonutil.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling evaluation: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing evaluation: %w", err)
	}
	return nil
}
