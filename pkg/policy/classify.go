package policy

import "github.com/riskgate/riskgate/pkg/scoring"

// Rule names reported by Decide. The names are stable identifiers used
// in events, report output and the evaluation envelope.
const (
	RuleCriticalFindings = "critical-findings"
	RuleHighFindings     = "high-findings"
	RuleMediumVolume     = "medium-volume"
	RuleRiskScore        = "risk-score"
	RuleWithinThresholds = "within-thresholds"
)

// Decision pairs a verdict with the rule that produced it.
type Decision struct {
	Status Status `json:"status"`
	Rule   string `json:"rule"`
}

// rule is one row of the decision table. Rows are evaluated top-down
// and the first match wins.
type rule struct {
	name   string
	status Status
	match  func(c scoring.Counts, score, mediumMax, scoreMax int) bool
}

// decisionTable orders the gate rules from most to least severe. The
// final row is the complement of all rows above it, so the table is
// total: every combination of counts and score matches exactly one row.
var decisionTable = []rule{
	{
		name:   RuleCriticalFindings,
		status: StatusFail,
		match: func(c scoring.Counts, _, _, _ int) bool {
			return c.Critical > 0
		},
	},
	{
		name:   RuleHighFindings,
		status: StatusFail,
		match: func(c scoring.Counts, _, _, _ int) bool {
			return c.High > 0
		},
	},
	{
		name:   RuleMediumVolume,
		status: StatusWarn,
		match: func(c scoring.Counts, _, mediumMax, _ int) bool {
			return c.Medium > mediumMax
		},
	},
	{
		name:   RuleRiskScore,
		status: StatusWarn,
		match: func(c scoring.Counts, score, mediumMax, scoreMax int) bool {
			return c.Medium > 0 && c.Medium <= mediumMax && score > scoreMax
		},
	},
	{
		name:   RuleWithinThresholds,
		status: StatusPass,
		match: func(scoring.Counts, int, int, int) bool {
			return true
		},
	},
}

// Decide runs the decision table against the aggregated counts and the
// weighted risk score. This method is thread-safe.
func (p *Policy) Decide(c scoring.Counts, score int) Decision {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.decide(c, score)
}

// Classify is Decide reduced to the verdict.
func (p *Policy) Classify(c scoring.Counts, score int) Status {
	return p.Decide(c, score).Status
}

func (p *Policy) decide(c scoring.Counts, score int) Decision {
	mediumMax := p.MediumCountMax()
	scoreMax := p.RiskScoreMax()
	for _, r := range decisionTable {
		if r.match(c, score, mediumMax, scoreMax) {
			return Decision{Status: r.status, Rule: r.name}
		}
	}
	// Unreachable: the last table row matches everything.
	return Decision{Status: StatusPass, Rule: RuleWithinThresholds}
}
