package policy

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/riskgate/riskgate/pkg/scoring"
)

func TestLoadPolicy(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantErr     bool
		errContains string
		validate    func(t *testing.T, p *Policy)
	}{
		{
			name: "valid full policy",
			content: `
version: "1.0"
name: "production-gate"
thresholds:
  medium_count: 5
  risk_score: 25
weights:
  critical: 20
regression:
  tolerance: 3
`,
			wantErr: false,
			validate: func(t *testing.T, p *Policy) {
				if p.Name != "production-gate" {
					t.Errorf("got name %q, want %q", p.Name, "production-gate")
				}
				if p.Version != "1.0" {
					t.Errorf("got version %q, want %q", p.Version, "1.0")
				}
				if p.Thresholds.MediumCount == nil || *p.Thresholds.MediumCount != 5 {
					t.Errorf("got medium_count threshold %v, want 5", p.Thresholds.MediumCount)
				}
				if p.Thresholds.RiskScore == nil || *p.Thresholds.RiskScore != 25 {
					t.Errorf("got risk_score threshold %v, want 25", p.Thresholds.RiskScore)
				}
				if w := p.Weights.Resolve(); w.Critical != 20 || w.High != 7 {
					t.Errorf("weight override not applied: %+v", w)
				}
				if p.Regression.Tolerance == nil || *p.Regression.Tolerance != 3 {
					t.Errorf("got regression tolerance %v, want 3", p.Regression.Tolerance)
				}
			},
		},
		{
			name: "minimal policy falls back to defaults",
			content: `
name: "minimal"
`,
			wantErr: false,
			validate: func(t *testing.T, p *Policy) {
				if p.Version != "1.0" {
					t.Errorf("default version should be 1.0, got %q", p.Version)
				}
				if got := p.MediumCountMax(); got != DefaultMediumCountMax {
					t.Errorf("got medium count max %d, want %d", got, DefaultMediumCountMax)
				}
				if got := p.RiskScoreMax(); got != DefaultRiskScoreMax {
					t.Errorf("got risk score max %d, want %d", got, DefaultRiskScoreMax)
				}
			},
		},
		{
			name: "zero thresholds are explicit, not defaults",
			content: `
name: "paranoid"
thresholds:
  medium_count: 0
  risk_score: 0
`,
			wantErr: false,
			validate: func(t *testing.T, p *Policy) {
				if got := p.MediumCountMax(); got != 0 {
					t.Errorf("got medium count max %d, want 0", got)
				}
				if got := p.RiskScoreMax(); got != 0 {
					t.Errorf("got risk score max %d, want 0", got)
				}
			},
		},
		{
			name:        "invalid yaml",
			content:     "{{invalid yaml",
			wantErr:     true,
			errContains: "invalid policy file",
		},
		{
			name: "negative threshold rejected",
			content: `
name: "broken"
thresholds:
  medium_count: -1
`,
			wantErr:     true,
			errContains: "must not be negative",
		},
		{
			name: "negative weight rejected",
			content: `
name: "broken"
weights:
  high: -7
`,
			wantErr:     true,
			errContains: "invalid policy file",
		},
		{
			name: "negative regression tolerance rejected",
			content: `
name: "broken"
regression:
  tolerance: -5
`,
			wantErr:     true,
			errContains: "tolerance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "policy.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write temp file: %v", err)
			}

			p, err := LoadPolicy(path)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				} else if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Source != path {
				t.Errorf("got source %q, want %q", p.Source, path)
			}

			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestLoadPolicy_NotFound(t *testing.T) {
	_, err := LoadPolicy("/nonexistent/path/policy.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
	if !errors.Is(err, ErrPolicyNotFound) {
		t.Errorf("error should wrap ErrPolicyNotFound, got: %v", err)
	}
}

func TestParsePolicy_InvalidWrapsSentinel(t *testing.T) {
	_, err := ParsePolicy([]byte("{{invalid yaml"))
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("error should wrap ErrInvalidPolicy, got: %v", err)
	}
}

func TestDefault(t *testing.T) {
	p := Default()
	if p.Name != "default" {
		t.Errorf("got name %q, want %q", p.Name, "default")
	}
	if got := p.MediumCountMax(); got != 3 {
		t.Errorf("got medium count max %d, want 3", got)
	}
	if got := p.RiskScoreMax(); got != 15 {
		t.Errorf("got risk score max %d, want 15", got)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default policy should validate: %v", err)
	}
}

func TestWeightSpec_Resolve(t *testing.T) {
	tests := []struct {
		name string
		spec WeightSpec
		want scoring.Weights
	}{
		{
			name: "empty spec keeps defaults",
			spec: WeightSpec{},
			want: scoring.DefaultWeights(),
		},
		{
			name: "single override",
			spec: WeightSpec{Info: intPtr(0)},
			want: scoring.Weights{Critical: 10, High: 7, Medium: 4, Low: 2, Info: 0},
		},
		{
			name: "full override",
			spec: WeightSpec{
				Critical: intPtr(100),
				High:     intPtr(50),
				Medium:   intPtr(10),
				Low:      intPtr(1),
				Info:     intPtr(0),
			},
			want: scoring.Weights{Critical: 100, High: 50, Medium: 10, Low: 1, Info: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.Resolve(); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPolicy_Reference(t *testing.T) {
	tests := []struct {
		name   string
		policy *Policy
		want   string
	}{
		{
			name:   "loaded from file",
			policy: &Policy{Name: "x", Version: "1.0", Source: "/etc/riskgate/policy.yaml"},
			want:   "/etc/riskgate/policy.yaml",
		},
		{
			name:   "builtin named",
			policy: &Policy{Name: "strict", Version: "1.0"},
			want:   "builtin:strict@1.0",
		},
		{
			name:   "builtin unnamed",
			policy: &Policy{Version: "1.0"},
			want:   "builtin:default@1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Reference(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPolicy_String(t *testing.T) {
	tests := []struct {
		name    string
		policy  *Policy
		wantStr string
	}{
		{
			name:    "with name",
			policy:  &Policy{Name: "prod-gate", Version: "1.0"},
			wantStr: "Policy(prod-gate v1.0)",
		},
		{
			name:    "without name",
			policy:  &Policy{Version: "2.0"},
			wantStr: "Policy(v2.0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.String(); got != tt.wantStr {
				t.Errorf("got %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestEvaluateCounts_ThreadSafety(t *testing.T) {
	policy := Default()
	counts := scoring.Counts{Medium: 2}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := policy.EvaluateCounts(counts)
			if result.Status != StatusPass {
				t.Error("concurrent evaluation failed unexpectedly")
			}
		}()
	}
	wg.Wait()
}
