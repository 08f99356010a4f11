// Package health validates a policy against canonical severity scenarios.
//
// Each canonical case pins the verdict the decision table must produce for a
// known severity mix. Running the set against a candidate policy before it
// ships catches threshold and weight drift without touching a live scan.
package health

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/scoring"
)

// ErrInvalidCase marks a case file entry that cannot be checked.
var ErrInvalidCase = errors.New("invalid health case")

// Case pins the expected verdict for one severity mix.
type Case struct {
	// Name identifies the case in drift reports.
	Name string `json:"name" yaml:"name"`

	// Counts is the severity mix the case evaluates.
	Counts scoring.Counts `json:"counts" yaml:"counts"`

	// ExpectedStatus is the verdict the policy must produce.
	ExpectedStatus policy.Status `json:"expected_status" yaml:"expected_status"`

	// MaxRisk caps the acceptable risk score. Nil means no cap.
	MaxRisk *int `json:"max_risk,omitempty" yaml:"max_risk"`
}

// Validate rejects cases that could never be checked meaningfully.
func (c *Case) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCase)
	}
	if !c.ExpectedStatus.IsValid() {
		return fmt.Errorf("%w: %s: unknown expected status %q", ErrInvalidCase, c.Name, c.ExpectedStatus)
	}
	if c.MaxRisk != nil && *c.MaxRisk < 0 {
		return fmt.Errorf("%w: %s: max_risk must not be negative", ErrInvalidCase, c.Name)
	}
	return nil
}

// Drift records one canonical case the policy no longer satisfies.
type Drift struct {
	Case      string        `json:"case"`
	Want      policy.Status `json:"want"`
	Got       policy.Status `json:"got"`
	Rule      string        `json:"rule"`
	RiskScore int           `json:"risk_score"`
	Message   string        `json:"message"`
}

// CaseResult is the observed outcome for a single case.
type CaseResult struct {
	Name      string        `json:"name"`
	Status    policy.Status `json:"status"`
	Rule      string        `json:"rule"`
	RiskScore int           `json:"risk_score"`
	Drifted   bool          `json:"drifted"`
}

// Line renders the outcome the way the health command logs it.
func (cr CaseResult) Line() string {
	return fmt.Sprintf("Policy health check status: %s, risk score: %d", cr.Status, cr.RiskScore)
}

// Report is the outcome of a full health check.
type Report struct {
	PolicyReference string       `json:"policy_reference"`
	CheckedAt       time.Time    `json:"checked_at"`
	Cases           []CaseResult `json:"cases"`
	Drifts          []Drift      `json:"drifts"`
}

// Healthy reports whether every case produced its pinned verdict.
func (r *Report) Healthy() bool {
	return len(r.Drifts) == 0
}

// Summary returns a one-line outcome for logs and CI output.
func (r *Report) Summary() string {
	if r.Healthy() {
		return "Policy health check passed."
	}
	return fmt.Sprintf("Policy health check failed: %d of %d cases drifted.", len(r.Drifts), len(r.Cases))
}

// Check evaluates every case against the policy. A nil or empty case list
// runs the built-in canonical set.
func Check(p *policy.Policy, cases []Case) *Report {
	if len(cases) == 0 {
		cases = BuiltinCases()
	}

	report := &Report{
		PolicyReference: p.Reference(),
		CheckedAt:       time.Now().UTC(),
		Cases:           make([]CaseResult, 0, len(cases)),
		Drifts:          make([]Drift, 0),
	}

	for _, c := range cases {
		result := p.EvaluateCounts(c.Counts)
		decision := p.Decide(c.Counts, result.RiskScore)

		cr := CaseResult{
			Name:      c.Name,
			Status:    result.Status,
			Rule:      decision.Rule,
			RiskScore: result.RiskScore,
		}

		// The status is checked before the risk cap: a wrong verdict makes
		// the score comparison meaningless.
		switch {
		case result.Status != c.ExpectedStatus:
			cr.Drifted = true
			report.Drifts = append(report.Drifts, Drift{
				Case:      c.Name,
				Want:      c.ExpectedStatus,
				Got:       result.Status,
				Rule:      decision.Rule,
				RiskScore: result.RiskScore,
				Message:   fmt.Sprintf("Unexpected policy status: %s (expected %s)", result.Status, c.ExpectedStatus),
			})
		case c.MaxRisk != nil && result.RiskScore > *c.MaxRisk:
			cr.Drifted = true
			report.Drifts = append(report.Drifts, Drift{
				Case:      c.Name,
				Want:      c.ExpectedStatus,
				Got:       result.Status,
				Rule:      decision.Rule,
				RiskScore: result.RiskScore,
				Message:   fmt.Sprintf("Risk score %d exceeded max allowed %d", result.RiskScore, *c.MaxRisk),
			})
		}

		report.Cases = append(report.Cases, cr)
	}

	return report
}

// BuiltinCases returns the canonical scenario set. The cases pin every row
// of the default decision table, so a policy whose thresholds or weights
// drifted from the defaults fails at least one of them.
func BuiltinCases() []Case {
	return []Case{
		{
			Name:           "clean run passes",
			Counts:         scoring.Counts{},
			ExpectedStatus: policy.StatusPass,
		},
		{
			Name:           "canonical low-noise mix passes",
			Counts:         scoring.Counts{Low: 1, Info: 3},
			ExpectedStatus: policy.StatusPass,
			MaxRisk:        intPtr(5),
		},
		{
			Name:           "critical finding blocks",
			Counts:         scoring.Counts{Critical: 1},
			ExpectedStatus: policy.StatusFail,
		},
		{
			Name:           "high finding blocks",
			Counts:         scoring.Counts{High: 1},
			ExpectedStatus: policy.StatusFail,
		},
		{
			Name:           "medium volume warns",
			Counts:         scoring.Counts{Medium: 4},
			ExpectedStatus: policy.StatusWarn,
		},
		{
			Name:           "heavy score with mediums warns",
			Counts:         scoring.Counts{Medium: 2, Low: 4},
			ExpectedStatus: policy.StatusWarn,
		},
		{
			Name:           "medium at the volume limit passes",
			Counts:         scoring.Counts{Medium: 3},
			ExpectedStatus: policy.StatusPass,
		},
		{
			Name:           "informational findings stay quiet",
			Counts:         scoring.Counts{Info: 10},
			ExpectedStatus: policy.StatusPass,
		},
	}
}

// caseFile is the YAML document shape for extra cases.
type caseFile struct {
	Cases []Case `yaml:"cases"`
}

// LoadCases reads additional cases from a YAML file. The loaded cases are
// validated; the file may not be empty.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading health cases: %w", err)
	}

	var file caseFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCase, err)
	}
	if len(file.Cases) == 0 {
		return nil, fmt.Errorf("%w: no cases in %s", ErrInvalidCase, path)
	}

	for i := range file.Cases {
		if err := file.Cases[i].Validate(); err != nil {
			return nil, err
		}
	}
	return file.Cases, nil
}

func intPtr(i int) *int {
	return &i
}
