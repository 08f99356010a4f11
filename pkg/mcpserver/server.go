package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/presets"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config holds MCP server configuration.
type Config struct {
	// BaselineDir is the directory holding per-application baselines.
	BaselineDir string

	// PolicyFile is the policy applied when a tool call names neither a
	// policy_path nor a preset.
	PolicyFile string

	// Preset is the embedded profile applied when no policy file is
	// configured. Empty means the built-in defaults.
	Preset string
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server wraps the MCP server with the gate's evaluation tools.
type Server struct {
	mcp    *mcp.Server
	config *Config
}

// MCPServer returns the underlying MCP server for direct access (e.g., testing).
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// New creates a new MCP server with all tools registered.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BaselineDir == "" {
		cfg.BaselineDir = defaults.BaselineDir
	}

	s := &Server{config: cfg}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "riskgate",
			Title:   "Riskgate MCP Server",
			Version: defaults.Version,
		},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)

	s.registerTools()

	return s
}

// RunStdio runs the MCP server over stdio transport.
// This is the mode IDE integrations (VS Code, Claude Desktop, Cursor) use.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// textResult builds a successful tool result with a single text block.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// jsonResult marshals v to indented JSON and wraps it in a text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult builds a failed tool result carrying an error message.
func errorResult(msg string) *mcp.CallToolResult {
	r := textResult(msg)
	r.IsError = true
	return r
}

// boolPtr returns a pointer to b, for optional annotation fields.
func boolPtr(b bool) *bool { return &b }

// parseArgs unmarshals the raw tool arguments into dst. Empty arguments
// leave dst at its zero value so optional-only tools accept {}.
func parseArgs(req *mcp.CallToolRequest, dst any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, dst); err != nil {
		return fmt.Errorf("parsing tool arguments: %w", err)
	}
	return nil
}

// resolvePolicy loads the policy a tool call should judge by. An explicit
// path wins over a preset name; with neither, the server's configured
// defaults apply, and failing those the built-in policy.
func (s *Server) resolvePolicy(path, preset string) (*policy.Policy, error) {
	if path != "" && preset != "" {
		return nil, fmt.Errorf("policy_path and preset are mutually exclusive")
	}
	switch {
	case path != "":
		return policy.LoadPolicy(path)
	case preset != "":
		return presets.Load(preset)
	case s.config.PolicyFile != "":
		return policy.LoadPolicy(s.config.PolicyFile)
	case s.config.Preset != "":
		return presets.Load(s.config.Preset)
	default:
		return policy.Default(), nil
	}
}

// ---------------------------------------------------------------------------
// Server Instructions — the AI's operating manual
// ---------------------------------------------------------------------------

const serverInstructions = `You are operating riskgate — a security scan policy gate that turns scanner findings into deterministic PASS/WARN/FAIL verdicts with regression tracking against per-application baselines.

## YOUR IDENTITY

You are a security gate operator. You judge scan results against gate policies, explain verdicts, and track risk score movement between runs. Every tool runs locally against files and stored baselines — no tool sends network traffic to any target.

## TOOL SELECTION GUIDE

| User Intent | Tool | Why |
|---|---|---|
| "Does this scan pass the gate?" | evaluate_findings | Full evaluation: verdict, risk score, violations, recommendations |
| "Did the risk score regress?" | check_regression | Compares a score against the stored baseline with tolerance |
| "Is the policy still sane?" | policy_health | Replays canonical scenarios and reports drift |
| "What was last accepted?" | get_baseline | Reads the stored baseline for an application |

## HOW THE GATE DECIDES

The decision table is ordered; the first matching rule wins:

1. Any CRITICAL finding → FAIL (rule: critical-findings)
2. Any HIGH finding → FAIL (rule: high-findings)
3. More MEDIUM findings than the policy tolerates → WARN (rule: medium-volume)
4. MEDIUM findings present and the weighted risk score over the limit → WARN (rule: risk-score)
5. Otherwise → PASS (rule: within-thresholds)

The risk score weighs findings 10/7/4/2/1 from CRITICAL down to INFO unless the policy overrides the weights.

## RECOMMENDED WORKFLOWS

### Workflow A: Judge a scan
1. evaluate_findings with the findings document (inline or by path)
2. Report the verdict, the matched rule, and the recommendations
3. check_regression to see whether the score moved against the baseline

### Workflow B: Investigate a surprising verdict
1. evaluate_findings → confirm the verdict and the matched rule
2. policy_health → confirm the policy still pins the canonical verdicts
3. get_baseline → compare today's score against what was last accepted

## POLICY SELECTION

Tools accept either a policy_path (YAML file on disk) or a preset name:
- strict: any MEDIUM finding warns, zero guard tolerance
- standard: the built-in defaults (3 MEDIUM findings, risk score 15)
- lenient: raised ceilings for noisy scanners, percentage guard tolerance

With neither, the server's configured default policy applies.

## INTERPRETING RESULTS

- PASS: release can proceed; the gate CLI updates the baseline on accepted runs
- WARN: review recommended; strict pipelines treat it as failure (fail-on-warn)
- FAIL: blocking findings present; the gate exits non-zero in CI
- "accepted": false in a regression report: the score grew beyond the tolerance
- "first_run": true: no baseline existed yet, so the comparison was skipped

## ERROR RECOVERY

If a tool returns an error:
- "findings file not found" → Check findings_path, or pass findings inline
- "invalid findings document" → The document must be a JSON envelope {"app_name": ..., "findings": [...]} or a bare findings array
- "policy file not found" → Check policy_path, or use a preset (strict, standard, lenient)
- "no baseline recorded" → First run for this app: run the gate CLI once to record one
- "baseline store unavailable" → Check the baseline_dir path and permissions

## RESPONSE FORMAT PREFERENCES

- Lead with the verdict and the rule that produced it
- List violations before recommendations
- Quote current vs baseline risk scores when a regression report is present
- Keep severity names uppercase (CRITICAL, HIGH, MEDIUM, LOW, INFO)`
