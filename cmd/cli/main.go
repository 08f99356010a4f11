// Command riskgate is a security-scan policy gate for CI/CD pipelines.
// It evaluates aggregated scanner findings against a policy, guards
// against risk regressions using per-application baselines, and
// communicates the outcome through semantic exit codes.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/config"
	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/ui"
	"github.com/riskgate/riskgate/presets"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(int(exitcode.Configuration))
	}

	switch os.Args[1] {
	case "gate", "run":
		runGateCmd(os.Args[2:])
	case "evaluate", "eval":
		runEvaluate(os.Args[2:])
	case "guard":
		runGuard(os.Args[2:])
	case "report":
		runReport(os.Args[2:])
	case "health", "healthcheck":
		runHealth(os.Args[2:])
	case "tune", "tuning":
		runTune(os.Args[2:])
	case "history", "hist":
		runHistory(os.Args[2:])
	case "baseline", "baselines":
		runBaseline(os.Args[2:])
	case "mcp":
		runMCP(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
		os.Exit(0)
	case "-v", "--version", "version":
		ui.PrintVersion()
		os.Exit(0)
	default:
		// Bare flags run the gate, so CI invocations can skip the
		// subcommand entirely.
		if strings.HasPrefix(os.Args[1], "-") {
			runGateCmd(os.Args[1:])
			return
		}
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Run 'riskgate help' for usage.")
		os.Exit(int(exitcode.Configuration))
	}
}

// fatalf prints an error to stderr and exits with the given code.
func fatalf(code exitcode.Code, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(int(code))
}

// fatalErr classifies the error into its exit code class and exits.
func fatalErr(err error) {
	fatalf(exitcode.Classify(err), "%v", err)
}

// envOrDefault returns the environment value or a fallback.
func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// resolvePolicy loads the active policy from a YAML file, a bundled
// preset, or the built-in defaults. File and preset are mutually
// exclusive.
func resolvePolicy(policyFile, preset string) (*policy.Policy, error) {
	if policyFile != "" && preset != "" {
		return nil, fmt.Errorf("%w: -policy and -preset are mutually exclusive", policy.ErrInvalidPolicy)
	}
	if policyFile != "" {
		return policy.LoadPolicy(policyFile)
	}
	if preset != "" {
		return presets.Load(preset)
	}
	return policy.Default(), nil
}

// guardTolerance resolves the effective regression tolerance from the
// flags and the policy's regression block. Flags win over the policy
// file, the policy file wins over the defaults.
func guardTolerance(fs *flag.FlagSet, value float64, pct bool, pol *policy.Policy) baseline.Tolerance {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["tolerance"] || set["t"] || set["tolerance-pct"] {
		return baseline.Tolerance{Value: value, Percent: pct}
	}

	if pol.Regression.TolerancePct != nil {
		return baseline.Tolerance{Value: *pol.Regression.TolerancePct, Percent: true}
	}
	if pol.Regression.Tolerance != nil {
		return baseline.Tolerance{Value: float64(*pol.Regression.Tolerance)}
	}
	return baseline.Tolerance{Value: value, Percent: pct}
}

// applyPolicyGuard copies the effective tolerance onto the config.
func applyPolicyGuard(fs *flag.FlagSet, cfg *config.Config, pol *policy.Policy) {
	tol := guardTolerance(fs, cfg.Tolerance, cfg.TolerancePercent, pol)
	cfg.Tolerance = tol.Value
	cfg.TolerancePercent = tol.Percent
}

func printUsage() {
	ui.PrintBanner()
	os.Stderr.Sync() // Sync stderr before switching to stdout

	fmt.Println(ui.SectionStyle.Render("SECURITY GATE WORKFLOW"))
	fmt.Println()
	fmt.Printf("  %s\n", ui.SubtitleStyle.Render("The CI Workflow (recommended):"))
	fmt.Println()
	fmt.Printf("    %s  Scanners emit a findings document (ZAP, nuclei, Trivy, ...)\n", ui.StatValueStyle.Render("1. scan  "))
	fmt.Printf("    %s  riskgate judges it against the policy and the stored baseline\n", ui.StatValueStyle.Render("2. gate  "))
	fmt.Printf("    %s  The exit code passes or blocks the pipeline\n", ui.StatValueStyle.Render("3. decide"))
	fmt.Println()
	fmt.Printf("  %s\n", ui.SubtitleStyle.Render("Quick Example:"))
	fmt.Printf("    %s\n", ui.HelpStyle.Render("riskgate gate -input findings.json -app payments"))
	fmt.Printf("    %s\n", ui.HelpStyle.Render("riskgate gate -i findings.json -a payments -preset strict -fail-on-warn"))
	fmt.Printf("    %s\n", ui.HelpStyle.Render("cat findings.json | riskgate gate -stdin -a payments -format json,sarif -output-dir out/"))
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("COMMANDS"))
	fmt.Println()
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("gate    "), "Full gate run: evaluate, classify, guard, record the baseline")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("evaluate"), "Evaluate findings only and write the evaluation envelope")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("guard   "), "Run the regression guard against the stored baseline")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("report  "), "Render reports from a saved evaluation envelope")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("health  "), "Check the active policy against canonical scan scenarios")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("tune    "), "Suggest policy adjustments from an evaluated run")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("history "), "List, compare, and prune recorded runs")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("baseline"), "Show, set, or clear per-application baselines")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("mcp     "), "Serve gate tools over the Model Context Protocol (stdio)")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("version "), "Print the version and exit")
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("EXIT CODES"))
	fmt.Println()
	for code := exitcode.Success; code <= exitcode.Internal; code++ {
		fmt.Printf("    %d  %s\n", int(code), exitcode.CodeDescription(code))
	}
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("OUTPUT FORMATS"))
	fmt.Println()
	fmt.Println("    console  Boxed terminal report (default)")
	fmt.Println("    json     Full evaluation envelope")
	fmt.Println("    jsonl    One event per line, for log shippers")
	fmt.Println("    md       Markdown report (github, gitlab, standard flavors)")
	fmt.Println("    sarif    SARIF 2.1.0 for code scanning upload")
	fmt.Println("    junit    JUnit XML for test-report ingestion")
	fmt.Println("    csv      Findings table for spreadsheets")
	fmt.Println("    pdf      Printable report")
	fmt.Println("    template Custom Go template (-template FILE)")
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("POLICY"))
	fmt.Println()
	fmt.Println("    The built-in policy fails on any CRITICAL or HIGH finding, warns")
	fmt.Println("    on MEDIUM volume or risk score over the limit, and passes clean")
	fmt.Println("    runs. Override it with -policy FILE or a bundled preset:")
	fmt.Println()
	fmt.Printf("    -preset %s\n", strings.Join(presets.Names(), " | "))
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("GETTING HELP"))
	fmt.Println()
	fmt.Printf("    %s\n", ui.HelpStyle.Render("riskgate <command> -h"))
	fmt.Println()
}
