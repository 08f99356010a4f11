package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/policy"
)

func TestResolvePolicyDefault(t *testing.T) {
	pol, err := resolvePolicy("", "")
	if err != nil {
		t.Fatalf("resolvePolicy failed: %v", err)
	}
	if pol.Name != "default" {
		t.Errorf("Name = %q, want default", pol.Name)
	}
}

func TestResolvePolicyExclusive(t *testing.T) {
	_, err := resolvePolicy("policy.yaml", "strict")
	if !errors.Is(err, policy.ErrInvalidPolicy) {
		t.Errorf("err = %v, want ErrInvalidPolicy", err)
	}
}

func TestResolvePolicyPreset(t *testing.T) {
	pol, err := resolvePolicy("", "strict")
	if err != nil {
		t.Fatalf("resolvePolicy failed: %v", err)
	}
	if pol.Name != "strict" {
		t.Errorf("Name = %q, want strict", pol.Name)
	}
	if pol.MediumCountMax() != 0 {
		t.Errorf("MediumCountMax = %d, want 0", pol.MediumCountMax())
	}
}

func TestResolvePolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	data := []byte("name: team-policy\nthresholds:\n  medium_count: 5\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	pol, err := resolvePolicy(path, "")
	if err != nil {
		t.Fatalf("resolvePolicy failed: %v", err)
	}
	if pol.Name != "team-policy" {
		t.Errorf("Name = %q, want team-policy", pol.Name)
	}
	if pol.MediumCountMax() != 5 {
		t.Errorf("MediumCountMax = %d, want 5", pol.MediumCountMax())
	}
}

func TestResolvePolicyMissingFile(t *testing.T) {
	_, err := resolvePolicy(filepath.Join(t.TempDir(), "nope.yaml"), "")
	if !errors.Is(err, policy.ErrPolicyNotFound) {
		t.Errorf("err = %v, want ErrPolicyNotFound", err)
	}
}

// toleranceFlags registers the guard flags the way the gate and guard
// commands do, so guardTolerance sees realistic Visit state.
func toleranceFlags() (*flag.FlagSet, *float64, *bool) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	value := fs.Float64("tolerance", baseline.DefaultTolerance, "")
	fs.Float64Var(value, "t", baseline.DefaultTolerance, "")
	pct := fs.Bool("tolerance-pct", false, "")
	return fs, value, pct
}

func TestGuardToleranceFlagWins(t *testing.T) {
	fs, value, pct := toleranceFlags()
	if err := fs.Parse([]string{"-tolerance", "10"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	three := 3
	pol := &policy.Policy{Regression: policy.Regression{Tolerance: &three}}

	tol := guardTolerance(fs, *value, *pct, pol)
	if tol.Value != 10 || tol.Percent {
		t.Errorf("tolerance = %+v, want {10 false}", tol)
	}
}

func TestGuardTolerancePctFlagWins(t *testing.T) {
	fs, value, pct := toleranceFlags()
	if err := fs.Parse([]string{"-tolerance-pct"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	three := 3
	pol := &policy.Policy{Regression: policy.Regression{Tolerance: &three}}

	tol := guardTolerance(fs, *value, *pct, pol)
	if !tol.Percent {
		t.Error("Percent = false, want true")
	}
	if tol.Value != baseline.DefaultTolerance {
		t.Errorf("Value = %v, want %v", tol.Value, float64(baseline.DefaultTolerance))
	}
}

func TestGuardTolerancePolicyAbsolute(t *testing.T) {
	fs, value, pct := toleranceFlags()
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	three := 3
	pol := &policy.Policy{Regression: policy.Regression{Tolerance: &three}}

	tol := guardTolerance(fs, *value, *pct, pol)
	if tol.Value != 3 || tol.Percent {
		t.Errorf("tolerance = %+v, want {3 false}", tol)
	}
}

func TestGuardTolerancePolicyPercentWins(t *testing.T) {
	fs, value, pct := toleranceFlags()
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	three := 3
	fifteen := 15.0
	pol := &policy.Policy{Regression: policy.Regression{Tolerance: &three, TolerancePct: &fifteen}}

	tol := guardTolerance(fs, *value, *pct, pol)
	if tol.Value != 15 || !tol.Percent {
		t.Errorf("tolerance = %+v, want {15 true}", tol)
	}
}

func TestGuardToleranceDefaults(t *testing.T) {
	fs, value, pct := toleranceFlags()
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tol := guardTolerance(fs, *value, *pct, policy.Default())
	if tol.Value != baseline.DefaultTolerance || tol.Percent {
		t.Errorf("tolerance = %+v, want {%v false}", tol, float64(baseline.DefaultTolerance))
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("RISKGATE_TEST_KEY", "custom")
	if got := envOrDefault("RISKGATE_TEST_KEY", "fallback"); got != "custom" {
		t.Errorf("envOrDefault = %q, want custom", got)
	}
	if got := envOrDefault("RISKGATE_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("envOrDefault = %q, want fallback", got)
	}
}
