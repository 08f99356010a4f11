// Command mcp-smoke exercises the riskgate MCP server end to end: it
// starts the server in-process over in-memory transports, drives every
// tool the way an AI agent would, and checks both the happy paths and
// the error handling. Run it after changing the MCP surface:
//
//	go run ./cmd/mcp-smoke
//	go run ./cmd/mcp-smoke -scenario regression_guard
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/gate"
	"github.com/riskgate/riskgate/pkg/mcpserver"
	"github.com/riskgate/riskgate/pkg/policy"
)

// scenarioResult tracks the outcome of a single scenario.
type scenarioResult struct {
	name   string
	passed bool
	err    error
}

// scenario is a named test function that runs against a live MCP session.
type scenario struct {
	name string
	fn   func(ctx context.Context, s *mcp.ClientSession, env *smokeEnv) error
}

// smokeEnv carries the scratch directories scenarios read and write.
type smokeEnv struct {
	workDir     string
	baselineDir string
}

func main() {
	var (
		timeout = flag.Duration("timeout", 60*time.Second, "Overall timeout")
		runOnly = flag.String("scenario", "", "Run only this named scenario")
		keep    = flag.Bool("keep", false, "Keep the scratch directory for inspection")
	)
	flag.Parse()
	log.SetFlags(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	work, err := os.MkdirTemp("", "riskgate-smoke-*")
	if err != nil {
		log.Fatalf("FATAL scratch_dir: %v", err)
	}
	if *keep {
		fmt.Printf("scratch: %s\n", work)
	} else {
		defer os.RemoveAll(work)
	}
	env := &smokeEnv{workDir: work, baselineDir: filepath.Join(work, "baselines")}

	session, err := connect(ctx, env)
	if err != nil {
		log.Fatalf("FATAL connect: %v", err)
	}
	defer session.Close()
	fmt.Println("server: connected over in-memory transport")

	var results []scenarioResult
	for _, sc := range allScenarios() {
		if *runOnly != "" && sc.name != *runOnly {
			continue
		}

		err := sc.fn(ctx, session, env)
		passed := err == nil
		results = append(results, scenarioResult{name: sc.name, passed: passed, err: err})

		if passed {
			fmt.Printf("PASS  %s\n", sc.name)
		} else {
			fmt.Printf("FAIL  %s: %v\n", sc.name, err)
		}
	}

	passed, failed := 0, 0
	for _, r := range results {
		if r.passed {
			passed++
		} else {
			failed++
		}
	}

	fmt.Printf("\n--- %d passed, %d failed ---\n", passed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// connect builds the server and a connected client session over
// in-memory transports.
func connect(ctx context.Context, env *smokeEnv) (*mcp.ClientSession, error) {
	srv := mcpserver.New(&mcpserver.Config{BaselineDir: env.baselineDir})

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	go func() {
		// Server errors surface through the client-side assertions.
		_ = srv.MCPServer().Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "mcp-smoke", Version: "1.0.0"}, nil)
	return client.Connect(ctx, clientTransport, nil)
}

// allScenarios returns every smoke scenario in execution order. Each
// scenario seeds its own state, so -scenario can run any one alone.
func allScenarios() []scenario {
	return []scenario{
		{"tool_discovery", scenarioToolDiscovery},
		{"evaluate_verdicts", scenarioEvaluateVerdicts},
		{"findings_document", scenarioFindingsDocument},
		{"policy_presets", scenarioPolicyPresets},
		{"regression_guard", scenarioRegressionGuard},
		{"saved_evaluation", scenarioSavedEvaluation},
		{"baseline_lookup", scenarioBaselineLookup},
		{"policy_health", scenarioPolicyHealth},
	}
}

// ---------------------------------------------------------------------------
// tool_discovery — verifies every tool exists with agent-usable metadata,
// plus negative: nonexistent tool.
// ---------------------------------------------------------------------------

func scenarioToolDiscovery(ctx context.Context, s *mcp.ClientSession, _ *smokeEnv) error {
	tools, err := s.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return fmt.Errorf("ListTools: %w", err)
	}

	expected := []string{"evaluate_findings", "check_regression", "policy_health", "get_baseline"}

	have := make(map[string]bool, len(tools.Tools))
	for _, t := range tools.Tools {
		have[t.Name] = true
	}

	var missing []string
	for _, name := range expected {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tools: %v (have %d)", missing, len(tools.Tools))
	}
	if len(tools.Tools) != len(expected) {
		return fmt.Errorf("tool count mismatch: want %d, got %d", len(expected), len(tools.Tools))
	}

	// Agents select tools by description and build arguments from the schema.
	for _, t := range tools.Tools {
		if t.Description == "" {
			return fmt.Errorf("tool %q has empty description", t.Name)
		}
		if t.InputSchema == nil {
			return fmt.Errorf("tool %q has nil input schema", t.Name)
		}
	}

	// NEGATIVE: calling a nonexistent tool must fail — either protocol error
	// or IsError=true, both are acceptable. Must not silently succeed.
	fakeResult, err := callToolRaw(ctx, s, "nonexistent_tool_that_does_not_exist", map[string]any{})
	if err == nil && !fakeResult.IsError {
		return fmt.Errorf("NEG nonexistent tool: expected error, got success")
	}

	return nil
}

// ---------------------------------------------------------------------------
// evaluate_verdicts — drives evaluate_findings through each row of the
// decision table, plus negative: missing and conflicting arguments.
// ---------------------------------------------------------------------------

func scenarioEvaluateVerdicts(ctx context.Context, s *mcp.ClientSession, _ *smokeEnv) error {
	// Clean run passes with score zero.
	cleanData, err := callToolJSON(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-clean", "findings": []any{},
	})
	if err != nil {
		return err
	}
	if err := checkVerdict(cleanData, "PASS", 0, "within-thresholds"); err != nil {
		return fmt.Errorf("clean run: %w", err)
	}
	if steps, _ := cleanData["next_steps"].([]any); len(steps) == 0 {
		return fmt.Errorf("clean run: no next_steps for the agent")
	}

	// One critical blocks regardless of everything else.
	critData, err := callToolJSON(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-crit",
		"findings": []any{
			map[string]any{"name": "Remote Code Execution", "severity": "CRITICAL", "source": "nuclei"},
		},
	})
	if err != nil {
		return fmt.Errorf("critical run: %w", err)
	}
	if err := checkVerdict(critData, "FAIL", 10, "critical-findings"); err != nil {
		return fmt.Errorf("critical run: %w", err)
	}
	eval, _ := critData["evaluation"].(map[string]any)
	if violations, _ := eval["violations"].([]any); len(violations) == 0 {
		return fmt.Errorf("critical run: no violations reported")
	}

	// Four mediums cross the volume threshold.
	mediums := make([]any, 4)
	for i := range mediums {
		mediums[i] = map[string]any{"name": fmt.Sprintf("Reflected XSS %d", i+1), "severity": "MEDIUM"}
	}
	warnData, err := callToolJSON(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-warn", "findings": mediums,
	})
	if err != nil {
		return fmt.Errorf("warn run: %w", err)
	}
	if err := checkVerdict(warnData, "WARN", 16, "medium-volume"); err != nil {
		return fmt.Errorf("warn run: %w", err)
	}

	// Severity parsing is case-insensitive.
	lowerData, err := callToolJSON(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-lower",
		"findings": []any{
			map[string]any{"name": "Verbose Errors", "severity": "low"},
		},
	})
	if err != nil {
		return fmt.Errorf("lowercase severity: %w", err)
	}
	if err := checkVerdict(lowerData, "PASS", 2, "within-thresholds"); err != nil {
		return fmt.Errorf("lowercase severity: %w", err)
	}

	// NEGATIVE: neither findings nor findings_path.
	if err := requireToolError(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-neg",
	}, "no findings"); err != nil {
		return err
	}

	// NEGATIVE: findings and findings_path together.
	if err := requireToolError(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-neg", "findings": []any{}, "findings_path": "findings.json",
	}, "inline and path together"); err != nil {
		return err
	}

	// NEGATIVE: inline findings without an app name.
	if err := requireToolError(ctx, s, "evaluate_findings", map[string]any{
		"findings": []any{},
	}, "missing app"); err != nil {
		return err
	}

	// NEGATIVE: unknown severity tier.
	if err := requireToolError(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-neg",
		"findings": []any{
			map[string]any{"name": "Mystery", "severity": "CATASTROPHIC"},
		},
	}, "unknown severity"); err != nil {
		return err
	}

	return nil
}

// ---------------------------------------------------------------------------
// findings_document — evaluates findings loaded from disk: JSON envelope
// with app_name, bare array, plus negative: nonexistent path.
// ---------------------------------------------------------------------------

func scenarioFindingsDocument(ctx context.Context, s *mcp.ClientSession, env *smokeEnv) error {
	// Envelope document carries its own app name.
	envelopePath := filepath.Join(env.workDir, "findings-envelope.json")
	envelope := `{"app_name": "smoke-doc", "findings": [{"name": "Outdated TLS", "severity": "LOW", "source": "zap"}]}`
	if err := os.WriteFile(envelopePath, []byte(envelope), 0o644); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}

	docData, err := callToolJSON(ctx, s, "evaluate_findings", map[string]any{
		"findings_path": envelopePath,
	})
	if err != nil {
		return err
	}
	eval, _ := docData["evaluation"].(map[string]any)
	if app, _ := eval["app_name"].(string); app != "smoke-doc" {
		return fmt.Errorf("envelope: app_name = %q, want smoke-doc", app)
	}
	if err := checkVerdict(docData, "PASS", 2, "within-thresholds"); err != nil {
		return fmt.Errorf("envelope: %w", err)
	}

	// Bare array document needs the app argument.
	barePath := filepath.Join(env.workDir, "findings-bare.json")
	bare := `[{"name": "SQL Injection", "severity": "HIGH", "location": "/api/users"}]`
	if err := os.WriteFile(barePath, []byte(bare), 0o644); err != nil {
		return fmt.Errorf("write bare array: %w", err)
	}

	bareData, err := callToolJSON(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-bare", "findings_path": barePath,
	})
	if err != nil {
		return fmt.Errorf("bare array: %w", err)
	}
	if err := checkVerdict(bareData, "FAIL", 7, "high-findings"); err != nil {
		return fmt.Errorf("bare array: %w", err)
	}

	// NEGATIVE: nonexistent document.
	if err := requireToolError(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-neg", "findings_path": filepath.Join(env.workDir, "missing.json"),
	}, "nonexistent document"); err != nil {
		return err
	}

	// NEGATIVE: document that is not JSON.
	badPath := filepath.Join(env.workDir, "findings-bad.json")
	if err := os.WriteFile(badPath, []byte("не json at all {{{"), 0o644); err != nil {
		return fmt.Errorf("write bad document: %w", err)
	}
	if err := requireToolError(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-neg", "findings_path": badPath,
	}, "garbage document"); err != nil {
		return err
	}

	return nil
}

// ---------------------------------------------------------------------------
// policy_presets — the same findings under different policies produce
// different verdicts, plus negative: unknown preset, conflicting args.
// ---------------------------------------------------------------------------

func scenarioPolicyPresets(ctx context.Context, s *mcp.ClientSession, env *smokeEnv) error {
	oneMedium := []any{map[string]any{"name": "CSRF", "severity": "MEDIUM"}}

	// Default tolerates a single medium.
	defData, err := callToolJSON(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-preset", "findings": oneMedium,
	})
	if err != nil {
		return err
	}
	if err := checkVerdict(defData, "PASS", 4, "within-thresholds"); err != nil {
		return fmt.Errorf("default: %w", err)
	}

	// Strict warns on any medium.
	strictData, err := callToolJSON(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-preset", "findings": oneMedium, "preset": "strict",
	})
	if err != nil {
		return fmt.Errorf("strict: %w", err)
	}
	if err := checkVerdict(strictData, "WARN", 4, "medium-volume"); err != nil {
		return fmt.Errorf("strict: %w", err)
	}

	// Lenient accepts a volume that the default would flag.
	fourMediums := make([]any, 4)
	for i := range fourMediums {
		fourMediums[i] = map[string]any{"name": fmt.Sprintf("Noise %d", i+1), "severity": "MEDIUM"}
	}
	lenientData, err := callToolJSON(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-preset", "findings": fourMediums, "preset": "lenient",
	})
	if err != nil {
		return fmt.Errorf("lenient: %w", err)
	}
	if err := checkVerdict(lenientData, "PASS", 16, "within-thresholds"); err != nil {
		return fmt.Errorf("lenient: %w", err)
	}

	// A policy file overrides the built-in thresholds the same way.
	policyPath := filepath.Join(env.workDir, "release-policy.yaml")
	policyYAML := "name: release\nthresholds:\n  medium_count: 0\n"
	if err := os.WriteFile(policyPath, []byte(policyYAML), 0o644); err != nil {
		return fmt.Errorf("write policy: %w", err)
	}
	fileData, err := callToolJSON(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-preset", "findings": oneMedium, "policy_path": policyPath,
	})
	if err != nil {
		return fmt.Errorf("policy file: %w", err)
	}
	if err := checkVerdict(fileData, "WARN", 4, "medium-volume"); err != nil {
		return fmt.Errorf("policy file: %w", err)
	}

	// NEGATIVE: unknown preset.
	if err := requireToolError(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-neg", "findings": []any{}, "preset": "paranoid",
	}, "unknown preset"); err != nil {
		return err
	}

	// NEGATIVE: policy_path and preset together.
	if err := requireToolError(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-neg", "findings": []any{}, "policy_path": policyPath, "preset": "strict",
	}, "policy file and preset together"); err != nil {
		return err
	}

	// NEGATIVE: nonexistent policy file.
	if err := requireToolError(ctx, s, "evaluate_findings", map[string]any{
		"app": "smoke-neg", "findings": []any{},
		"policy_path": filepath.Join(env.workDir, "missing-policy.yaml"),
	}, "nonexistent policy"); err != nil {
		return err
	}

	return nil
}

// ---------------------------------------------------------------------------
// regression_guard — seeds a baseline and drives check_regression through
// accept, reject, first-run, unchanged, and both tolerance modes, plus
// negative: missing and conflicting arguments.
// ---------------------------------------------------------------------------

func scenarioRegressionGuard(ctx context.Context, s *mcp.ClientSession, env *smokeEnv) error {
	if err := seedBaseline(env, "smoke-guard", 10); err != nil {
		return fmt.Errorf("seed baseline: %w", err)
	}

	// Within the default tolerance of 5.
	okData, err := callToolJSON(ctx, s, "check_regression", map[string]any{
		"app": "smoke-guard", "risk_score": 12,
	})
	if err != nil {
		return err
	}
	if accepted, _ := okData["accepted"].(bool); !accepted {
		return fmt.Errorf("score 12 vs baseline 10: accepted=false")
	}
	if delta, _ := okData["delta"].(float64); delta != 2 {
		return fmt.Errorf("delta = %v, want 2", delta)
	}
	if firstRun, _ := okData["first_run"].(bool); firstRun {
		return fmt.Errorf("first_run=true for a seeded app")
	}

	// A spike past the tolerance is rejected.
	spikeData, err := callToolJSON(ctx, s, "check_regression", map[string]any{
		"app": "smoke-guard", "risk_score": 30,
	})
	if err != nil {
		return fmt.Errorf("spike: %w", err)
	}
	if accepted, _ := spikeData["accepted"].(bool); accepted {
		return fmt.Errorf("score 30 vs baseline 10: accepted=true, want rejection")
	}
	if summary, _ := spikeData["summary"].(string); summary == "" {
		return fmt.Errorf("spike: empty summary")
	}

	// A wider explicit tolerance accepts the same spike.
	wideData, err := callToolJSON(ctx, s, "check_regression", map[string]any{
		"app": "smoke-guard", "risk_score": 30, "tolerance": 25,
	})
	if err != nil {
		return fmt.Errorf("wide tolerance: %w", err)
	}
	if accepted, _ := wideData["accepted"].(bool); !accepted {
		return fmt.Errorf("tolerance 25: accepted=false for delta 20")
	}

	// Percentage mode: 25% of baseline 10 allows 2.5, so +3 is rejected.
	pctData, err := callToolJSON(ctx, s, "check_regression", map[string]any{
		"app": "smoke-guard", "risk_score": 13, "tolerance": 25, "tolerance_pct": true,
	})
	if err != nil {
		return fmt.Errorf("pct tolerance: %w", err)
	}
	if accepted, _ := pctData["accepted"].(bool); accepted {
		return fmt.Errorf("25%% of 10: accepted=true for delta 3, want rejection")
	}

	// Identical score reports unchanged.
	sameData, err := callToolJSON(ctx, s, "check_regression", map[string]any{
		"app": "smoke-guard", "risk_score": 10,
	})
	if err != nil {
		return fmt.Errorf("unchanged: %w", err)
	}
	if unchanged, _ := sameData["unchanged"].(bool); !unchanged {
		return fmt.Errorf("identical score: unchanged=false")
	}

	// First run for an app with no baseline is accepted and flagged.
	firstData, err := callToolJSON(ctx, s, "check_regression", map[string]any{
		"app": "smoke-guard-new", "risk_score": 50,
	})
	if err != nil {
		return fmt.Errorf("first run: %w", err)
	}
	if accepted, _ := firstData["accepted"].(bool); !accepted {
		return fmt.Errorf("first run: accepted=false")
	}
	if firstRun, _ := firstData["first_run"].(bool); !firstRun {
		return fmt.Errorf("first run: first_run=false")
	}

	// NEGATIVE: neither risk_score nor result_path.
	if err := requireToolError(ctx, s, "check_regression", map[string]any{
		"app": "smoke-guard",
	}, "no score"); err != nil {
		return err
	}

	// NEGATIVE: risk_score and result_path together.
	if err := requireToolError(ctx, s, "check_regression", map[string]any{
		"app": "smoke-guard", "risk_score": 12, "result_path": "evaluation.json",
	}, "score and path together"); err != nil {
		return err
	}

	// NEGATIVE: risk_score without an app.
	if err := requireToolError(ctx, s, "check_regression", map[string]any{
		"risk_score": 12,
	}, "missing app"); err != nil {
		return err
	}

	// NEGATIVE: negative tolerance.
	if err := requireToolError(ctx, s, "check_regression", map[string]any{
		"app": "smoke-guard", "risk_score": 12, "tolerance": -1,
	}, "negative tolerance"); err != nil {
		return err
	}

	return nil
}

// ---------------------------------------------------------------------------
// saved_evaluation — the guard reads a saved evaluation envelope the way
// CI archives produce them, plus negative: corrupt envelope.
// ---------------------------------------------------------------------------

func scenarioSavedEvaluation(ctx context.Context, s *mcp.ClientSession, env *smokeEnv) error {
	findings := []finding.Finding{
		{Name: "Reflected XSS", Severity: finding.Medium, Source: "zap", Location: "/search"},
	}
	eval, err := gate.Evaluate("smoke-saved", findings, nil)
	if err != nil {
		return fmt.Errorf("build evaluation: %w", err)
	}
	evalPath := filepath.Join(env.workDir, "evaluation.json")
	if err := eval.Save(evalPath); err != nil {
		return fmt.Errorf("save evaluation: %w", err)
	}

	// No baseline yet: the guard treats the envelope as a first run and
	// pulls the app name out of it.
	firstData, err := callToolJSON(ctx, s, "check_regression", map[string]any{
		"result_path": evalPath,
	})
	if err != nil {
		return err
	}
	if firstRun, _ := firstData["first_run"].(bool); !firstRun {
		return fmt.Errorf("envelope without baseline: first_run=false")
	}

	// With a low baseline the envelope's score of 4 stays within tolerance.
	if err := seedBaseline(env, "smoke-saved", 1); err != nil {
		return fmt.Errorf("seed baseline: %w", err)
	}
	againData, err := callToolJSON(ctx, s, "check_regression", map[string]any{
		"result_path": evalPath,
	})
	if err != nil {
		return fmt.Errorf("seeded: %w", err)
	}
	if accepted, _ := againData["accepted"].(bool); !accepted {
		return fmt.Errorf("delta 3 within default tolerance: accepted=false")
	}
	if baseScore, _ := againData["baseline_score"].(float64); baseScore != 1 {
		return fmt.Errorf("baseline_score = %v, want 1", baseScore)
	}

	// NEGATIVE: envelope that is not valid JSON.
	corruptPath := filepath.Join(env.workDir, "corrupt-evaluation.json")
	if err := os.WriteFile(corruptPath, []byte("{truncated"), 0o644); err != nil {
		return fmt.Errorf("write corrupt envelope: %w", err)
	}
	if err := requireToolError(ctx, s, "check_regression", map[string]any{
		"result_path": corruptPath,
	}, "corrupt envelope"); err != nil {
		return err
	}

	// NEGATIVE: nonexistent envelope.
	if err := requireToolError(ctx, s, "check_regression", map[string]any{
		"result_path": filepath.Join(env.workDir, "missing-evaluation.json"),
	}, "nonexistent envelope"); err != nil {
		return err
	}

	return nil
}

// ---------------------------------------------------------------------------
// baseline_lookup — reads a stored baseline back, plus negative: missing
// app, unknown app.
// ---------------------------------------------------------------------------

func scenarioBaselineLookup(ctx context.Context, s *mcp.ClientSession, env *smokeEnv) error {
	if err := seedBaseline(env, "smoke-lookup", 7); err != nil {
		return fmt.Errorf("seed baseline: %w", err)
	}

	data, err := callToolJSON(ctx, s, "get_baseline", map[string]any{
		"app": "smoke-lookup",
	})
	if err != nil {
		return err
	}
	if app, _ := data["app_name"].(string); app != "smoke-lookup" {
		return fmt.Errorf("app_name = %q, want smoke-lookup", app)
	}
	if score, _ := data["risk_score"].(float64); score != 7 {
		return fmt.Errorf("risk_score = %v, want 7", score)
	}
	if version, _ := data["version"].(string); version == "" {
		return fmt.Errorf("baseline record missing version")
	}
	if recorded, _ := data["recorded_at"].(string); recorded == "" {
		return fmt.Errorf("baseline record missing recorded_at")
	}

	// NEGATIVE: app is required.
	if err := requireToolError(ctx, s, "get_baseline", map[string]any{}, "missing app"); err != nil {
		return err
	}

	// NEGATIVE: unknown app reports a helpful error, not a crash.
	unknownResult, err := callToolRaw(ctx, s, "get_baseline", map[string]any{
		"app": "smoke-never-ran",
	})
	if err != nil {
		return fmt.Errorf("NEG unknown app: %w", err)
	}
	if !unknownResult.IsError {
		return fmt.Errorf("NEG unknown app: expected IsError=true")
	}
	if text := extractText(unknownResult); !strings.Contains(text, "no baseline recorded") {
		return fmt.Errorf("NEG unknown app: message %q lacks guidance", truncate(text, 120))
	}

	return nil
}

// ---------------------------------------------------------------------------
// policy_health — the default policy passes the canonical set, a strict
// preset drifts on it, and a custom case file pins the strict behavior,
// plus negative: nonexistent case file.
// ---------------------------------------------------------------------------

func scenarioPolicyHealth(ctx context.Context, s *mcp.ClientSession, env *smokeEnv) error {
	// Built-in policy against the built-in canonical set.
	healthyData, err := callToolJSON(ctx, s, "policy_health", map[string]any{})
	if err != nil {
		return err
	}
	if healthy, _ := healthyData["healthy"].(bool); !healthy {
		return fmt.Errorf("default policy reported unhealthy: %v", healthyData["summary"])
	}
	cases, _ := healthyData["cases"].([]any)
	if len(cases) < 5 {
		return fmt.Errorf("only %d canonical cases ran", len(cases))
	}

	// Strict drifts on the canonical set: mediums the default tolerates warn.
	strictData, err := callToolJSON(ctx, s, "policy_health", map[string]any{
		"preset": "strict",
	})
	if err != nil {
		return fmt.Errorf("strict: %w", err)
	}
	if healthy, _ := strictData["healthy"].(bool); healthy {
		return fmt.Errorf("strict preset reported healthy against the default canonical set")
	}
	drifts, _ := strictData["drifts"].([]any)
	if len(drifts) == 0 {
		return fmt.Errorf("strict: unhealthy but no drifts listed")
	}
	firstDrift, _ := drifts[0].(map[string]any)
	for _, field := range []string{"case", "want", "got"} {
		if firstDrift[field] == nil {
			return fmt.Errorf("strict: drift missing %q field", field)
		}
	}

	// A case file pinning strict behavior turns the same preset healthy.
	casesPath := filepath.Join(env.workDir, "strict-cases.yaml")
	casesYAML := `cases:
  - name: clean run passes
    counts: {}
    expected_status: PASS
  - name: single medium warns under strict
    counts:
      medium: 1
    expected_status: WARN
  - name: critical blocks
    counts:
      critical: 1
    expected_status: FAIL
`
	if err := os.WriteFile(casesPath, []byte(casesYAML), 0o644); err != nil {
		return fmt.Errorf("write cases: %w", err)
	}
	pinnedData, err := callToolJSON(ctx, s, "policy_health", map[string]any{
		"preset": "strict", "cases_path": casesPath,
	})
	if err != nil {
		return fmt.Errorf("pinned cases: %w", err)
	}
	if healthy, _ := pinnedData["healthy"].(bool); !healthy {
		return fmt.Errorf("strict against its own cases reported unhealthy: %v", pinnedData["summary"])
	}

	// NEGATIVE: nonexistent case file.
	if err := requireToolError(ctx, s, "policy_health", map[string]any{
		"cases_path": filepath.Join(env.workDir, "missing-cases.yaml"),
	}, "nonexistent cases"); err != nil {
		return err
	}

	// NEGATIVE: case file with an unknown status.
	badCasesPath := filepath.Join(env.workDir, "bad-cases.yaml")
	badCases := "cases:\n  - name: broken\n    counts: {}\n    expected_status: MAYBE\n"
	if err := os.WriteFile(badCasesPath, []byte(badCases), 0o644); err != nil {
		return fmt.Errorf("write bad cases: %w", err)
	}
	if err := requireToolError(ctx, s, "policy_health", map[string]any{
		"cases_path": badCasesPath,
	}, "invalid case status"); err != nil {
		return err
	}

	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// checkVerdict asserts the status, risk score, and matched rule of an
// evaluate_findings response.
func checkVerdict(data map[string]any, wantStatus string, wantScore float64, wantRule string) error {
	eval, ok := data["evaluation"].(map[string]any)
	if !ok {
		return fmt.Errorf("response missing evaluation object")
	}
	if status, _ := eval["status"].(string); status != wantStatus {
		return fmt.Errorf("status = %q, want %q", status, wantStatus)
	}
	if score, _ := eval["risk_score"].(float64); score != wantScore {
		return fmt.Errorf("risk_score = %v, want %v", score, wantScore)
	}
	if rule, _ := data["rule"].(string); rule != wantRule {
		return fmt.Errorf("rule = %q, want %q", rule, wantRule)
	}
	if summary, _ := data["summary"].(string); !strings.Contains(summary, wantStatus) {
		return fmt.Errorf("summary %q missing verdict %s", truncate(summary, 120), wantStatus)
	}
	return nil
}

// seedBaseline records an accepted run so the guard tools have a
// reference point, the same way the gate CLI does after a run.
func seedBaseline(env *smokeEnv, app string, score int) error {
	store, err := baseline.NewFileStore(env.baselineDir)
	if err != nil {
		return err
	}
	b := baseline.FromResult(app, &policy.Result{Status: policy.StatusPass, RiskScore: score}, "smoke-run", "")
	return store.Put(context.Background(), app, b)
}

// requireToolError calls a tool and asserts it returns IsError=true.
// This is the core negative validation helper — if a bad input doesn't
// produce an error, the scenario fails.
func requireToolError(ctx context.Context, s *mcp.ClientSession, name string, args map[string]any, desc string) error {
	result, err := callToolRaw(ctx, s, name, args)
	if err != nil {
		// Protocol-level error is also acceptable for negative cases.
		return nil
	}
	if !result.IsError {
		return fmt.Errorf("NEG %s(%s): expected IsError=true, got false (response: %s)",
			name, desc, truncate(extractText(result), 120))
	}
	return nil
}

// callToolJSON calls a tool, asserts no error, and parses as JSON.
func callToolJSON(ctx context.Context, s *mcp.ClientSession, name string, args map[string]any) (map[string]any, error) {
	result, err := callToolRaw(ctx, s, name, args)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	if result.IsError {
		return nil, fmt.Errorf("call %s: tool error: %s", name, truncate(extractText(result), 200))
	}
	text := extractText(result)
	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("call %s: parse JSON: %w (text: %s)", name, err, truncate(text, 100))
	}
	return data, nil
}

func callToolRaw(ctx context.Context, s *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal %s args: %w", name, err)
	}
	return s.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: json.RawMessage(payload)})
}

func extractText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if tc, ok := result.Content[0].(*mcp.TextContent); ok {
		return tc.Text
	}
	return fmt.Sprintf("%T", result.Content[0])
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
