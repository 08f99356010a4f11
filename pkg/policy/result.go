package policy

import (
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/scoring"
)

// Result is the outcome of evaluating findings against a policy. Its
// JSON shape is a stable contract consumed by CI pipelines and the
// regression baseline, so field names and casing must not change.
type Result struct {
	// Status is the overall verdict.
	Status Status `json:"status"`

	// RiskScore is the weighted sum over all findings.
	RiskScore int `json:"risk_score"`

	// SeverityCounts breaks the findings down by tier.
	SeverityCounts scoring.Counts `json:"severity_counts"`

	// TotalFindings is the number of findings evaluated.
	TotalFindings int `json:"total_findings"`

	// Violations lists the thresholds the run exceeded. Empty slice,
	// never null, when the run is clean.
	Violations []string `json:"violations"`

	// Recommendations lists remediation guidance. Never empty: a clean
	// run carries a single maintenance recommendation.
	Recommendations []string `json:"recommendations"`
}

// Evaluate aggregates the findings and scores them against the policy.
// Returns an error only when a finding carries an unknown severity.
func (p *Policy) Evaluate(findings []finding.Finding) (*Result, error) {
	counts, err := scoring.Aggregate(findings)
	if err != nil {
		return nil, err
	}
	return p.EvaluateCounts(counts), nil
}

// EvaluateCounts scores pre-aggregated severity counts against the
// policy. This method is thread-safe.
func (p *Policy) EvaluateCounts(c scoring.Counts) *Result {
	p.mu.RLock()
	defer p.mu.RUnlock()

	score := scoring.Score(c, p.Weights.Resolve())
	decision := p.decide(c, score)

	return &Result{
		Status:          decision.Status,
		RiskScore:       score,
		SeverityCounts:  c,
		TotalFindings:   c.Total(),
		Violations:      p.violations(c, score),
		Recommendations: p.recommendations(c, score),
	}
}

// Passed reports whether the verdict allows the pipeline to continue
// without attention.
func (r *Result) Passed() bool {
	return r.Status == StatusPass
}

// Blocking reports whether the verdict should stop a gated pipeline.
func (r *Result) Blocking() bool {
	return r.Status == StatusFail
}
