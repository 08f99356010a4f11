// Package scoring aggregates normalized findings into per-tier counts and
// collapses those counts into a single weighted risk score.
//
// Both operations are pure: aggregation is the only one that can fail, and
// only when a finding carries an unrecognized severity.
package scoring

import (
	"fmt"

	"github.com/riskgate/riskgate/pkg/finding"
)

// Counts holds the number of findings in each severity tier.
// Every tier is always present (zero when absent). JSON keys are
// uppercase: the existing report consumers read them that way.
type Counts struct {
	Critical int `json:"CRITICAL" yaml:"critical"`
	High     int `json:"HIGH" yaml:"high"`
	Medium   int `json:"MEDIUM" yaml:"medium"`
	Low      int `json:"LOW" yaml:"low"`
	Info     int `json:"INFO" yaml:"info"`
}

// Total returns the sum across all tiers. For counts produced by
// Aggregate this always equals the number of input findings.
func (c Counts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}

// Get returns the count for a single tier, zero for unknown tiers.
func (c Counts) Get(sev finding.Severity) int {
	switch sev {
	case finding.Critical:
		return c.Critical
	case finding.High:
		return c.High
	case finding.Medium:
		return c.Medium
	case finding.Low:
		return c.Low
	case finding.Info:
		return c.Info
	default:
		return 0
	}
}

// Aggregate counts findings per severity tier, normalizing case at the
// boundary. A finding whose severity matches no canonical tier aborts the
// whole aggregation with an error wrapping finding.ErrInvalidSeverity:
// silently miscounting a tier would corrupt the risk score and the gate
// decision downstream.
func Aggregate(findings []finding.Finding) (Counts, error) {
	var c Counts
	for i, f := range findings {
		sev, err := finding.ParseSeverity(string(f.Severity))
		if err != nil {
			return Counts{}, fmt.Errorf("finding %d (%s): %w", i, f.Name, err)
		}
		switch sev {
		case finding.Critical:
			c.Critical++
		case finding.High:
			c.High++
		case finding.Medium:
			c.Medium++
		case finding.Low:
			c.Low++
		case finding.Info:
			c.Info++
		}
	}
	return c, nil
}

// Weights holds the per-tier multipliers for the risk score. They are
// policy configuration, not code constants, so a deployment can retune
// the gate without a redeploy.
type Weights struct {
	Critical int `json:"critical" yaml:"critical"`
	High     int `json:"high" yaml:"high"`
	Medium   int `json:"medium" yaml:"medium"`
	Low      int `json:"low" yaml:"low"`
	Info     int `json:"info" yaml:"info"`
}

// DefaultWeights returns the standard 10/7/4/2/1 weighting.
func DefaultWeights() Weights {
	return Weights{Critical: 10, High: 7, Medium: 4, Low: 2, Info: 1}
}

// Get returns the multiplier for a single tier, zero for unknown tiers.
func (w Weights) Get(sev finding.Severity) int {
	switch sev {
	case finding.Critical:
		return w.Critical
	case finding.High:
		return w.High
	case finding.Medium:
		return w.Medium
	case finding.Low:
		return w.Low
	case finding.Info:
		return w.Info
	default:
		return 0
	}
}

// Validate rejects negative weights. Zero is allowed: a policy may
// deliberately ignore a tier.
func (w Weights) Validate() error {
	tiers := []struct {
		name   string
		weight int
	}{
		{"critical", w.Critical},
		{"high", w.High},
		{"medium", w.Medium},
		{"low", w.Low},
		{"info", w.Info},
	}
	for _, t := range tiers {
		if t.weight < 0 {
			return fmt.Errorf("scoring: negative weight %d for %s", t.weight, t.name)
		}
	}
	return nil
}

// Score computes the weighted risk score for a set of counts.
// Pure arithmetic, no failure modes. int is comfortably wide enough:
// with default weights, overflow on 64-bit would take ~9×10^17 critical
// findings, and even int32 holds ~2×10^8.
func Score(c Counts, w Weights) int {
	return w.Critical*c.Critical +
		w.High*c.High +
		w.Medium*c.Medium +
		w.Low*c.Low +
		w.Info*c.Info
}
