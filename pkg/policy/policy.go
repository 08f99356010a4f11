// Package policy loads gate policies and evaluates findings against them.
//
// A policy carries the thresholds and severity weights that turn a set of
// findings into a PASS, WARN or FAIL verdict. Policies are declared in YAML;
// every threshold is optional and falls back to the built-in default, so an
// empty file is a valid policy.
package policy

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/riskgate/riskgate/pkg/scoring"
)

// Default thresholds applied when a policy does not override them.
const (
	// DefaultMediumCountMax is the number of MEDIUM findings tolerated
	// before the volume alone warrants a WARN.
	DefaultMediumCountMax = 3

	// DefaultRiskScoreMax is the weighted risk score tolerated when
	// MEDIUM findings are present.
	DefaultRiskScoreMax = 15
)

// Policy represents a parsed gate policy.
type Policy struct {
	Version    string     `yaml:"version"`
	Name       string     `yaml:"name"`
	Thresholds Thresholds `yaml:"thresholds"`
	Weights    WeightSpec `yaml:"weights"`
	Regression Regression `yaml:"regression"`

	// Source is the path the policy was loaded from, empty for built-ins.
	Source string `yaml:"-"`

	mu sync.RWMutex // protects evaluation
}

// Thresholds defines the limits a scan must respect to pass the gate.
// A nil value means the built-in default applies.
type Thresholds struct {
	// MediumCount is the maximum number of MEDIUM findings tolerated.
	MediumCount *int `yaml:"medium_count"`

	// RiskScore is the maximum weighted risk score tolerated while
	// MEDIUM findings are present.
	RiskScore *int `yaml:"risk_score"`
}

// WeightSpec overrides individual severity weights. Absent tiers keep
// their default weight, so a policy can reweight a single tier.
type WeightSpec struct {
	Critical *int `yaml:"critical"`
	High     *int `yaml:"high"`
	Medium   *int `yaml:"medium"`
	Low      *int `yaml:"low"`
	Info     *int `yaml:"info"`
}

// Resolve merges the overrides onto the default weight table.
func (w WeightSpec) Resolve() scoring.Weights {
	out := scoring.DefaultWeights()
	if w.Critical != nil {
		out.Critical = *w.Critical
	}
	if w.High != nil {
		out.High = *w.High
	}
	if w.Medium != nil {
		out.Medium = *w.Medium
	}
	if w.Low != nil {
		out.Low = *w.Low
	}
	if w.Info != nil {
		out.Info = *w.Info
	}
	return out
}

// Regression configures the guard that compares a run against the
// stored baseline for the same application.
type Regression struct {
	// Tolerance is the absolute risk score increase accepted before the
	// guard rejects the run. Nil means the built-in default.
	Tolerance *int `yaml:"tolerance"`

	// TolerancePct switches the guard to a percentage of the baseline
	// score instead of an absolute delta.
	TolerancePct *float64 `yaml:"tolerance_pct"`
}

// LoadPolicy loads and parses a policy file from the given path.
// Returns ErrPolicyNotFound if the file doesn't exist.
// Returns ErrInvalidPolicy if the file is malformed.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, path)
		}
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	policy, err := ParsePolicy(data)
	if err != nil {
		return nil, err
	}
	policy.Source = path
	return policy, nil
}

// ParsePolicy parses policy YAML data.
// Returns ErrInvalidPolicy if the data is malformed or fails validation.
func ParsePolicy(data []byte) (*Policy, error) {
	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	if policy.Version == "" {
		policy.Version = "1.0"
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return &policy, nil
}

// Default returns the built-in policy used when no file is given.
func Default() *Policy {
	return &Policy{
		Version: "1.0",
		Name:    "default",
		Thresholds: Thresholds{
			MediumCount: intPtr(DefaultMediumCountMax),
			RiskScore:   intPtr(DefaultRiskScoreMax),
		},
	}
}

// Validate checks the policy for values that would make evaluation
// meaningless. Returns an error wrapping ErrInvalidPolicy.
func (p *Policy) Validate() error {
	if p.Thresholds.MediumCount != nil && *p.Thresholds.MediumCount < 0 {
		return fmt.Errorf("%w: medium_count threshold must not be negative", ErrInvalidPolicy)
	}
	if p.Thresholds.RiskScore != nil && *p.Thresholds.RiskScore < 0 {
		return fmt.Errorf("%w: risk_score threshold must not be negative", ErrInvalidPolicy)
	}
	if err := p.Weights.Resolve().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if p.Regression.Tolerance != nil && *p.Regression.Tolerance < 0 {
		return fmt.Errorf("%w: regression tolerance must not be negative", ErrInvalidPolicy)
	}
	if p.Regression.TolerancePct != nil && *p.Regression.TolerancePct < 0 {
		return fmt.Errorf("%w: regression tolerance_pct must not be negative", ErrInvalidPolicy)
	}
	return nil
}

// MediumCountMax returns the effective MEDIUM volume threshold.
func (p *Policy) MediumCountMax() int {
	if p.Thresholds.MediumCount != nil {
		return *p.Thresholds.MediumCount
	}
	return DefaultMediumCountMax
}

// RiskScoreMax returns the effective risk score threshold.
func (p *Policy) RiskScoreMax() int {
	if p.Thresholds.RiskScore != nil {
		return *p.Thresholds.RiskScore
	}
	return DefaultRiskScoreMax
}

// Reference identifies the policy in reports and the evaluation envelope.
func (p *Policy) Reference() string {
	if p.Source != "" {
		return p.Source
	}
	name := p.Name
	if name == "" {
		name = "default"
	}
	return fmt.Sprintf("builtin:%s@%s", name, p.Version)
}

// String returns a human-readable representation of the policy.
func (p *Policy) String() string {
	if p.Name != "" {
		return fmt.Sprintf("Policy(%s v%s)", p.Name, p.Version)
	}
	return fmt.Sprintf("Policy(v%s)", p.Version)
}

// intPtr is a helper to create a pointer to an int.
func intPtr(i int) *int {
	return &i
}
