package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/health"
	"github.com/riskgate/riskgate/pkg/jsonutil"
	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/ui"
)

// runHealth checks the active policy against canonical scan scenarios
// and reports any verdict drift. A drifted policy is a configuration
// problem, so drift exits with the configuration code.
func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	policyFile := fs.String("policy", "", "Policy YAML file")
	fs.StringVar(policyFile, "p", "", "Policy file (alias)")
	preset := fs.String("preset", "", "Built-in policy preset: strict, standard, lenient")
	casesPath := fs.String("cases", "", "Scenario YAML file (default: built-in scenarios)")
	asJSON := fs.Bool("json", false, "Print the health report as JSON")
	noColor := fs.Bool("no-color", false, "Disable colored output")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: riskgate health [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Evaluate canonical scan scenarios against the active policy and\n")
		fmt.Fprintf(os.Stderr, "report drift: scenarios whose verdict no longer matches what the\n")
		fmt.Fprintf(os.Stderr, "scenario expects. Run it after editing a policy file to catch\n")
		fmt.Fprintf(os.Stderr, "thresholds that block clean runs or wave through critical ones.\n\n")
		fmt.Fprintf(os.Stderr, "Exits 0 when healthy and %d when any scenario drifted.\n\n", int(exitcode.Configuration))
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  riskgate health\n")
		fmt.Fprintf(os.Stderr, "  riskgate health -policy riskgate.yaml\n")
		fmt.Fprintf(os.Stderr, "  riskgate health -preset strict -cases scenarios.yaml -json\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	ui.SetNoColor(*noColor)

	pol, err := resolvePolicy(*policyFile, *preset)
	if err != nil {
		fatalErr(err)
	}

	var cases []health.Case
	if *casesPath != "" {
		cases, err = health.LoadCases(*casesPath)
		if err != nil {
			fatalErr(err)
		}
	}

	report := health.Check(pol, cases)

	if *asJSON {
		data, err := jsonutil.MarshalIndent(report, "", "  ")
		if err != nil {
			fatalf(exitcode.Internal, "encoding report: %v", err)
		}
		fmt.Println(string(data))
	} else {
		printHealthReport(report)
	}

	if !report.Healthy() {
		os.Exit(int(exitcode.Configuration))
	}
}

// printHealthReport renders the health report for the terminal.
func printHealthReport(report *health.Report) {
	fmt.Println(ui.SectionStyle.Render("POLICY HEALTH"))
	fmt.Println()
	fmt.Printf("  Policy: %s\n", report.PolicyReference)
	fmt.Println()

	for _, cr := range report.Cases {
		status := string(policy.StatusPass)
		if cr.Drifted {
			status = string(policy.StatusFail)
		}
		fmt.Printf("  %s %-32s %s\n", ui.StatusIcon(status), cr.Name, cr.Line())
	}

	if len(report.Drifts) > 0 {
		fmt.Println()
		fmt.Println(ui.SectionStyle.Render("DRIFTS"))
		fmt.Println()
		for _, d := range report.Drifts {
			fmt.Printf("  %s: %s\n", d.Case, d.Message)
		}
	}

	fmt.Println()
	fmt.Println(report.Summary())
}
