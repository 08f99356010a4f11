package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/gate"
	"github.com/riskgate/riskgate/pkg/health"
	"github.com/riskgate/riskgate/pkg/input"
	"github.com/riskgate/riskgate/pkg/policy"
)

// registerTools adds all gate tools to the MCP server.
func (s *Server) registerTools() {
	s.addEvaluateFindingsTool()
	s.addCheckRegressionTool()
	s.addPolicyHealthTool()
	s.addGetBaselineTool()
}

// baselineDir picks the per-call baseline directory, falling back to the
// server's configured default.
func (s *Server) baselineDir(override string) string {
	if override != "" {
		return override
	}
	return s.config.BaselineDir
}

// ═══════════════════════════════════════════════════════════════════════════
// evaluate_findings — Judge findings against a gate policy
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addEvaluateFindingsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "evaluate_findings",
			Title: "Evaluate Findings",
			Description: `Judge a findings document against a gate policy and return the full evaluation envelope: PASS/WARN/FAIL verdict, weighted risk score, per-tier counts, violations and recommendations.

USE THIS TOOL WHEN:
• The user asks "does this scan pass the gate?" or "evaluate these findings"
• A scanner just produced a findings document and you need a verdict
• You want the violations and recommendations for a known set of findings

DO NOT USE THIS TOOL WHEN:
• You only want to compare a risk score against the baseline — use 'check_regression' instead
• You want to verify the policy itself still behaves — use 'policy_health' instead
• You want the last accepted score — use 'get_baseline' instead

This is a READ-ONLY local operation. It never updates the baseline; the gate CLI does that on accepted runs.

EXAMPLE INPUTS:
• Inline findings: {"app": "payments", "findings": [{"name": "SQL Injection", "severity": "HIGH"}]}
• Findings file: {"app": "payments", "findings_path": "./findings.json"}
• With a policy file: {"app": "payments", "findings_path": "./findings.json", "policy_path": "./gate-policy.yaml"}
• With a preset: {"app": "payments", "findings_path": "./findings.json", "preset": "strict"}
• Clean run: {"app": "payments", "findings": []}

SEVERITIES (descending): CRITICAL > HIGH > MEDIUM > LOW > INFO (case-insensitive)
PRESETS: strict, standard, lenient

Returns: a summary line, the matched decision rule, the evaluation envelope (status, risk_score, severity_counts, violations, recommendations, findings), and suggested next steps.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"app": map[string]any{
						"type":        "string",
						"description": "Application name the evaluation is recorded under. Required with inline findings; optional when the document carries app_name.",
					},
					"findings": map[string]any{
						"type":        "array",
						"description": "Findings to judge, inline. Mutually exclusive with findings_path.",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"name": map[string]any{
									"type":        "string",
									"description": "Finding title.",
								},
								"severity": map[string]any{
									"type":        "string",
									"description": "Severity tier (case-insensitive).",
									"enum":        []string{"CRITICAL", "HIGH", "MEDIUM", "LOW", "INFO"},
								},
								"source": map[string]any{
									"type":        "string",
									"description": "Scanner that reported the finding.",
								},
								"rule": map[string]any{
									"type":        "string",
									"description": "Scanner rule identifier.",
								},
								"location": map[string]any{
									"type":        "string",
									"description": "URL or file the finding applies to.",
								},
							},
							"required": []string{"name", "severity"},
						},
					},
					"findings_path": map[string]any{
						"type":        "string",
						"description": "Path to a findings document: a JSON envelope {\"app_name\": ..., \"findings\": [...]} or a bare findings array. Mutually exclusive with findings.",
					},
					"policy_path": map[string]any{
						"type":        "string",
						"description": "Path to a policy YAML file. Mutually exclusive with preset.",
					},
					"preset": map[string]any{
						"type":        "string",
						"description": "Embedded policy profile to judge by.",
						"enum":        []string{"strict", "standard", "lenient"},
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "Evaluate Findings",
			},
		},
		s.handleEvaluateFindings,
	)
}

type evaluateFindingsArgs struct {
	App          string            `json:"app"`
	Findings     []finding.Finding `json:"findings"`
	FindingsPath string            `json:"findings_path"`
	PolicyPath   string            `json:"policy_path"`
	Preset       string            `json:"preset"`
}

// evaluateResponse wraps the evaluation envelope with a one-line summary
// and actionable next steps for AI agent consumption.
type evaluateResponse struct {
	Summary    string           `json:"summary"`
	Rule       string           `json:"rule"`
	Evaluation *gate.Evaluation `json:"evaluation"`
	NextSteps  []string         `json:"next_steps"`
}

func (s *Server) handleEvaluateFindings(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args evaluateFindingsArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected 'app' plus 'findings' (array) or 'findings_path' (string).", err)), nil
	}

	if args.Findings == nil && args.FindingsPath == "" {
		return errorResult(`either 'findings' or 'findings_path' is required. Example: {"app": "payments", "findings": [{"name": "SQL Injection", "severity": "HIGH"}]}`), nil
	}
	if args.Findings != nil && args.FindingsPath != "" {
		return errorResult("'findings' and 'findings_path' are mutually exclusive - pass the document inline or by path, not both"), nil
	}

	pol, err := s.resolvePolicy(args.PolicyPath, args.Preset)
	if err != nil {
		return errorResult(fmt.Sprintf("loading policy: %v", err)), nil
	}

	app := args.App
	findings := args.Findings
	if args.FindingsPath != "" {
		src := &input.Source{Path: args.FindingsPath, AppName: args.App}
		doc, err := src.Load()
		if err != nil {
			return errorResult(fmt.Sprintf("loading findings: %v", err)), nil
		}
		app = doc.AppName
		findings = doc.Findings
	}
	if app == "" {
		return errorResult(`'app' is required when the findings document does not carry app_name. Example: {"app": "payments", "findings": []}`), nil
	}

	eval, err := gate.Evaluate(app, findings, pol)
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating findings: %v", err)), nil
	}

	return jsonResult(buildEvaluateResponse(eval, pol))
}

func buildEvaluateResponse(eval *gate.Evaluation, pol *policy.Policy) *evaluateResponse {
	decision := pol.Decide(eval.SeverityCounts, eval.RiskScore)

	summary := fmt.Sprintf("%s for %s: risk score %d across %d findings (rule: %s).",
		eval.Status, eval.AppName, eval.RiskScore, eval.TotalFindings, decision.Rule)

	nextSteps := []string{
		fmt.Sprintf(`Call check_regression with {"app": %q, "risk_score": %d} to compare against the stored baseline.`,
			eval.AppName, eval.RiskScore),
	}
	switch eval.Status {
	case policy.StatusFail:
		nextSteps = append(nextSteps,
			"Resolve the blocking findings listed in 'violations' before release; the gate exits non-zero in CI.")
	case policy.StatusWarn:
		nextSteps = append(nextSteps,
			"Review the findings behind the warning; pipelines running fail-on-warn treat this verdict as a failure.")
	}

	return &evaluateResponse{
		Summary:    summary,
		Rule:       decision.Rule,
		Evaluation: eval,
		NextSteps:  nextSteps,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// check_regression — Compare a risk score against the stored baseline
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addCheckRegressionTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "check_regression",
			Title: "Check Regression",
			Description: `Compare a risk score against the stored baseline for an application and report whether the increase stays within tolerance.

USE THIS TOOL WHEN:
• The user asks "did the risk score regress?" or "how does this compare to last time?"
• An evaluate_findings call just returned a risk score and you want the baseline comparison
• You have a saved evaluation file and want the guard's verdict on it

DO NOT USE THIS TOOL WHEN:
• You need a fresh verdict on findings — use 'evaluate_findings' instead
• You only want to read the stored baseline — use 'get_baseline' instead

This is a READ-ONLY comparison. The baseline is never updated; the gate CLI records baselines on accepted runs.

EXAMPLE INPUTS:
• Direct score: {"app": "payments", "risk_score": 12}
• Saved evaluation: {"result_path": "./evaluation.json"}
• Custom tolerance: {"app": "payments", "risk_score": 12, "tolerance": 3}
• Percentage tolerance: {"app": "payments", "risk_score": 12, "tolerance": 10, "tolerance_pct": true}
• Other store: {"app": "payments", "risk_score": 12, "baseline_dir": "/var/lib/riskgate/baselines"}

Returns: regression report with accepted, first_run, baseline_score, current_score, delta, tolerance and a one-line summary.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"app": map[string]any{
						"type":        "string",
						"description": "Application whose baseline to compare against. Optional when result_path names a document carrying app_name.",
					},
					"risk_score": map[string]any{
						"type":        "integer",
						"description": "Current weighted risk score. Mutually exclusive with result_path.",
						"minimum":     0,
					},
					"result_path": map[string]any{
						"type":        "string",
						"description": "Path to a saved evaluation envelope (the gate's JSON output). Mutually exclusive with risk_score.",
					},
					"baseline_dir": map[string]any{
						"type":        "string",
						"description": "Baseline directory to read. Defaults to the server's configured directory.",
					},
					"tolerance": map[string]any{
						"type":        "number",
						"description": "Accepted risk score increase before the guard rejects. Defaults to 5.",
						"minimum":     0,
					},
					"tolerance_pct": map[string]any{
						"type":        "boolean",
						"description": "Interpret tolerance as a percentage of the baseline score.",
						"default":     false,
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "Check Regression",
			},
		},
		s.handleCheckRegression,
	)
}

type checkRegressionArgs struct {
	App          string   `json:"app"`
	RiskScore    *int     `json:"risk_score"`
	ResultPath   string   `json:"result_path"`
	BaselineDir  string   `json:"baseline_dir"`
	Tolerance    *float64 `json:"tolerance"`
	TolerancePct bool     `json:"tolerance_pct"`
}

func (s *Server) handleCheckRegression(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args checkRegressionArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected 'app' plus 'risk_score' (integer) or 'result_path' (string).", err)), nil
	}

	if args.RiskScore == nil && args.ResultPath == "" {
		return errorResult(`either 'risk_score' or 'result_path' is required. Example: {"app": "payments", "risk_score": 12}`), nil
	}
	if args.RiskScore != nil && args.ResultPath != "" {
		return errorResult("'risk_score' and 'result_path' are mutually exclusive - pass the score directly or point at a saved evaluation, not both"), nil
	}

	app := args.App
	var current *policy.Result
	if args.ResultPath != "" {
		eval, err := gate.LoadEvaluation(args.ResultPath)
		if err != nil {
			return errorResult(fmt.Sprintf("loading evaluation: %v", err)), nil
		}
		if app == "" {
			app = eval.AppName
		}
		current = eval.Result()
	} else {
		if *args.RiskScore < 0 {
			return errorResult("risk_score must not be negative"), nil
		}
		current = &policy.Result{RiskScore: *args.RiskScore}
	}
	if app == "" {
		return errorResult(`'app' is required. Example: {"app": "payments", "risk_score": 12}`), nil
	}

	tol := baseline.DefaultToleranceValue()
	if args.Tolerance != nil {
		if *args.Tolerance < 0 {
			return errorResult("tolerance must not be negative"), nil
		}
		tol = baseline.Tolerance{Value: *args.Tolerance, Percent: args.TolerancePct}
	}

	store, err := baseline.NewFileStore(s.baselineDir(args.BaselineDir))
	if err != nil {
		return errorResult(fmt.Sprintf("opening baseline store: %v", err)), nil
	}

	report, err := baseline.CheckRegression(ctx, store, app, current, tol)
	if err != nil {
		return errorResult(fmt.Sprintf("checking regression: %v", err)), nil
	}
	return jsonResult(report)
}

// ═══════════════════════════════════════════════════════════════════════════
// policy_health — Replay the canonical scenarios against a policy
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addPolicyHealthTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "policy_health",
			Title: "Policy Health Check",
			Description: `Replay canonical severity scenarios against a policy and report any case whose verdict drifted from what it should be.

USE THIS TOOL WHEN:
• The user asks "is the policy still sane?" or "did a policy edit break the gate?"
• A verdict surprised you and you want to rule out a mistuned policy
• Validating a policy file or preset before wiring it into a pipeline

DO NOT USE THIS TOOL WHEN:
• You want a verdict on real findings — use 'evaluate_findings' instead

This is a READ-ONLY local check against the built-in scenario set, or a custom case file when cases_path is given. The built-in set pins every row of the default decision table, so only default-shaped policies pass it; a strict or lenient policy drifting on it is expected and the drift list shows exactly where.

EXAMPLE INPUTS:
• Built-in policy, built-in cases: {} (no arguments)
• A policy file: {"policy_path": "./gate-policy.yaml"}
• A preset: {"preset": "standard"}
• Custom cases: {"policy_path": "./gate-policy.yaml", "cases_path": "./health-cases.yaml"}

Returns: health report with per-case outcomes, the drift list (want vs got per drifted case), healthy flag and a one-line summary.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"policy_path": map[string]any{
						"type":        "string",
						"description": "Path to a policy YAML file. Mutually exclusive with preset.",
					},
					"preset": map[string]any{
						"type":        "string",
						"description": "Embedded policy profile to check.",
						"enum":        []string{"strict", "standard", "lenient"},
					},
					"cases_path": map[string]any{
						"type":        "string",
						"description": "Path to a YAML case file pinning expected verdicts. Defaults to the built-in canonical set.",
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "Policy Health Check",
			},
		},
		s.handlePolicyHealth,
	)
}

type policyHealthArgs struct {
	PolicyPath string `json:"policy_path"`
	Preset     string `json:"preset"`
	CasesPath  string `json:"cases_path"`
}

// healthResponse flattens the health report under a summary line and an
// explicit healthy flag so agents need not count drifts themselves.
type healthResponse struct {
	Summary string `json:"summary"`
	Healthy bool   `json:"healthy"`
	*health.Report
}

func (s *Server) handlePolicyHealth(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args policyHealthArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected optional 'policy_path', 'preset' and 'cases_path' (strings).", err)), nil
	}

	pol, err := s.resolvePolicy(args.PolicyPath, args.Preset)
	if err != nil {
		return errorResult(fmt.Sprintf("loading policy: %v", err)), nil
	}

	var cases []health.Case
	if args.CasesPath != "" {
		cases, err = health.LoadCases(args.CasesPath)
		if err != nil {
			return errorResult(fmt.Sprintf("loading health cases: %v", err)), nil
		}
	}

	report := health.Check(pol, cases)
	return jsonResult(&healthResponse{
		Summary: report.Summary(),
		Healthy: report.Healthy(),
		Report:  report,
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// get_baseline — Read the stored baseline for an application
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addGetBaselineTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_baseline",
			Title: "Get Baseline",
			Description: `Read the stored baseline for an application: the risk score and severity counts of the last accepted run.

USE THIS TOOL WHEN:
• The user asks "what was last accepted?" or "what is the current baseline?"
• You want the reference point before explaining a regression report
• Auditing which run and which score the guard currently compares against

DO NOT USE THIS TOOL WHEN:
• You want the comparison itself — use 'check_regression' instead

This is a READ-ONLY lookup against the baseline directory.

EXAMPLE INPUTS:
• Default store: {"app": "payments"}
• Other store: {"app": "payments", "baseline_dir": "/var/lib/riskgate/baselines"}

Returns: the baseline record with app_name, status, risk_score, severity_counts, total_findings, fingerprint, run_id and timestamps.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"app": map[string]any{
						"type":        "string",
						"description": "Application whose baseline to read.",
					},
					"baseline_dir": map[string]any{
						"type":        "string",
						"description": "Baseline directory to read. Defaults to the server's configured directory.",
					},
				},
				"required": []string{"app"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "Get Baseline",
			},
		},
		s.handleGetBaseline,
	)
}

type getBaselineArgs struct {
	App         string `json:"app"`
	BaselineDir string `json:"baseline_dir"`
}

func (s *Server) handleGetBaseline(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args getBaselineArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected 'app' (string) and optional 'baseline_dir' (string).", err)), nil
	}

	if args.App == "" {
		return errorResult(`'app' is required. Example: {"app": "payments"}`), nil
	}

	store, err := baseline.NewFileStore(s.baselineDir(args.BaselineDir))
	if err != nil {
		return errorResult(fmt.Sprintf("opening baseline store: %v", err)), nil
	}

	b, err := store.Get(ctx, args.App)
	if err != nil {
		if errors.Is(err, baseline.ErrBaselineNotFound) {
			return errorResult(fmt.Sprintf("no baseline recorded for %q - the gate records one after the first accepted run", args.App)), nil
		}
		return errorResult(fmt.Sprintf("reading baseline: %v", err)), nil
	}
	return jsonResult(b)
}
