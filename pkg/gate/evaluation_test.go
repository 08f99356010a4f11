package gate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/input"
	"github.com/riskgate/riskgate/pkg/policy"
)

func TestEvaluate(t *testing.T) {
	findings := []finding.Finding{
		{Name: "SQL Injection", Severity: finding.High, Source: "zap", Rule: "40018"},
		{Name: "Missing CSP", Severity: finding.Low, Source: "zap", Rule: "10038"},
	}

	e, err := Evaluate("payments", findings, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if e.Status != policy.StatusFail {
		t.Errorf("status = %s, want FAIL", e.Status)
	}
	if e.RiskScore != 9 {
		t.Errorf("risk_score = %d, want 9", e.RiskScore)
	}
	if e.SeverityCounts.High != 1 || e.SeverityCounts.Low != 1 {
		t.Errorf("severity_counts = %+v", e.SeverityCounts)
	}
	if e.RunID == "" {
		t.Error("run id must be set")
	}
	if e.PolicyReference == "" {
		t.Error("policy reference must be set")
	}
	if e.Regression != nil {
		t.Error("plain evaluation must not carry a regression block")
	}
}

func TestEvaluateEmptyFindings(t *testing.T) {
	e, err := Evaluate("payments", nil, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if e.Status != policy.StatusPass {
		t.Errorf("status = %s, want PASS", e.Status)
	}
	if e.Findings == nil {
		t.Error("findings must marshal as [], not null")
	}
	if len(e.Violations) != 0 {
		t.Errorf("violations = %v, want empty", e.Violations)
	}
	if len(e.Recommendations) != 1 {
		t.Errorf("recommendations = %v, want single maintenance line", e.Recommendations)
	}
}

func TestEvaluateInvalidSeverity(t *testing.T) {
	_, err := Evaluate("payments", []finding.Finding{{Name: "odd", Severity: "banana"}}, nil)
	if !errors.Is(err, finding.ErrInvalidSeverity) {
		t.Errorf("error = %v, want ErrInvalidSeverity", err)
	}
}

func TestEvaluationSaveLoad(t *testing.T) {
	e, err := Evaluate("payments", []finding.Finding{
		{Name: "SQL Injection", Severity: finding.High, Source: "zap", Rule: "40018", Location: "/login"},
	}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	path := filepath.Join(t.TempDir(), "evaluation.json")
	if err := e.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadEvaluation(path)
	if err != nil {
		t.Fatalf("LoadEvaluation: %v", err)
	}

	if loaded.AppName != e.AppName {
		t.Errorf("app_name = %q, want %q", loaded.AppName, e.AppName)
	}
	if loaded.Status != e.Status {
		t.Errorf("status = %s, want %s", loaded.Status, e.Status)
	}
	if loaded.RiskScore != e.RiskScore {
		t.Errorf("risk_score = %d, want %d", loaded.RiskScore, e.RiskScore)
	}
	if loaded.RunID != e.RunID {
		t.Errorf("run_id = %q, want %q", loaded.RunID, e.RunID)
	}
	if len(loaded.Findings) != 1 || loaded.Findings[0].Location != "/login" {
		t.Errorf("findings = %+v", loaded.Findings)
	}
}

func TestLoadEvaluationMissing(t *testing.T) {
	_, err := LoadEvaluation(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, input.ErrInputNotFound) {
		t.Errorf("error = %v, want ErrInputNotFound", err)
	}
}

func TestLoadEvaluationInvalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{{{"},
		{"missing app", `{"status":"PASS","risk_score":0}`},
		{"bad status", `{"app_name":"a","status":"MAYBE"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "eval.json")
			if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if _, err := LoadEvaluation(path); !errors.Is(err, input.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestEvaluationResult(t *testing.T) {
	e, err := Evaluate("payments", []finding.Finding{
		{Name: "RCE", Severity: finding.Critical, Source: "nuclei"},
	}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	r := e.Result()
	if r.Status != e.Status || r.RiskScore != e.RiskScore {
		t.Errorf("reconstructed result = %+v", r)
	}
	if r.TotalFindings != 1 {
		t.Errorf("total_findings = %d, want 1", r.TotalFindings)
	}
}
