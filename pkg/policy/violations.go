package policy

import (
	"fmt"

	"github.com/riskgate/riskgate/pkg/scoring"
)

// Violations renders the human-readable reasons a run did not pass
// cleanly. The order mirrors the decision table; a clean run yields an
// empty slice, never nil. This method is thread-safe.
func (p *Policy) Violations(c scoring.Counts, score int) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.violations(c, score)
}

// Recommendations renders the remediation guidance matching the
// violations. A clean run gets a single maintenance recommendation.
// This method is thread-safe.
func (p *Policy) Recommendations(c scoring.Counts, score int) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.recommendations(c, score)
}

func (p *Policy) violations(c scoring.Counts, score int) []string {
	mediumMax := p.MediumCountMax()
	scoreMax := p.RiskScoreMax()

	violations := make([]string, 0)
	if c.Critical > 0 {
		violations = append(violations,
			fmt.Sprintf("Found %d CRITICAL severity findings", c.Critical))
	}
	if c.High > 0 {
		violations = append(violations,
			fmt.Sprintf("Found %d HIGH severity findings", c.High))
	}
	if c.Medium > mediumMax {
		violations = append(violations,
			fmt.Sprintf("Found %d MEDIUM severity findings (threshold: %d)", c.Medium, mediumMax))
	}
	if c.Medium > 0 && c.Medium <= mediumMax && score > scoreMax {
		violations = append(violations,
			fmt.Sprintf("Risk score %d exceeds allowed threshold (threshold: %d)", score, scoreMax))
	}
	return violations
}

func (p *Policy) recommendations(c scoring.Counts, score int) []string {
	mediumMax := p.MediumCountMax()
	scoreMax := p.RiskScoreMax()

	recommendations := make([]string, 0)
	if c.Critical > 0 {
		recommendations = append(recommendations,
			"Immediately address all CRITICAL vulnerabilities")
	}
	if c.High > 0 {
		recommendations = append(recommendations,
			"Prioritize remediation of HIGH severity issues")
	}
	if c.Medium > mediumMax {
		recommendations = append(recommendations,
			"Plan to reduce MEDIUM severity findings below policy thresholds")
	}
	if c.Medium > 0 && c.Medium <= mediumMax && score > scoreMax {
		recommendations = append(recommendations,
			"Reduce the aggregate risk score below policy thresholds")
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations,
			"Continue maintaining the current security posture")
	}
	return recommendations
}
