package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/gate"
	"github.com/riskgate/riskgate/pkg/tuning"
	"github.com/riskgate/riskgate/pkg/ui"
)

// runTune analyzes an evaluated run and suggests policy and scanner
// adjustments for its most frequent findings.
func runTune(args []string) {
	fs := flag.NewFlagSet("tune", flag.ExitOnError)
	inputPath := fs.String("input", "", "Evaluation envelope path")
	fs.StringVar(inputPath, "i", "", "Evaluation envelope (alias)")
	limit := fs.Int("limit", defaults.TuningTopFindings, "Recurring findings to highlight")
	format := fs.String("format", "text", "Output format: text, md, json")
	fs.StringVar(format, "f", "text", "Output format (alias)")
	output := fs.String("output", "", "Output file path (default: stdout)")
	fs.StringVar(output, "o", "", "Output file (alias)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: riskgate tune -input <evaluation.json> [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Group the run's findings by source and rule and suggest where to\n")
		fmt.Fprintf(os.Stderr, "tune the scanners or the policy. Feed it a noisy run to find the\n")
		fmt.Fprintf(os.Stderr, "rules drowning out real findings.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  riskgate tune -input evaluation.json\n")
		fmt.Fprintf(os.Stderr, "  riskgate tune -i evaluation.json -limit 10 -format md -output TUNING.md\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if *inputPath == "" {
		fatalf(exitcode.Configuration, "evaluation envelope required (use -input)")
	}

	eval, err := gate.LoadEvaluation(*inputPath)
	if err != nil {
		fatalErr(err)
	}

	report := tuning.Analyze(eval.Findings, eval.Violations, eval.Recommendations, *limit)

	var out []byte
	switch strings.ToLower(*format) {
	case "text":
		out = []byte(renderTuningText(eval.AppName, report))
	case "md", "markdown":
		out = []byte(report.Markdown() + "\n")
	case "json":
		data, err := report.JSON()
		if err != nil {
			fatalf(exitcode.Internal, "encoding report: %v", err)
		}
		out = append(data, '\n')
	default:
		fatalf(exitcode.Configuration, "unknown tune format %q (use text, md, or json)", *format)
	}

	if *output != "" {
		if err := os.WriteFile(*output, out, 0o644); err != nil {
			fatalf(exitcode.Internal, "writing report: %v", err)
		}
		return
	}
	os.Stdout.Write(out)
}

// renderTuningText renders tuning guidance for the terminal.
func renderTuningText(app string, report *tuning.Report) string {
	var b strings.Builder
	b.WriteString(ui.SectionStyle.Render("TUNING GUIDANCE"))
	b.WriteString("\n\n")
	if app != "" {
		fmt.Fprintf(&b, "  Application: %s\n\n", app)
	}

	suggestions := report.Suggestions()
	if len(suggestions) == 0 {
		b.WriteString("  No recurring findings detected; keep the current configuration.\n")
		return b.String()
	}
	for i, s := range suggestions {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
	}

	if len(report.Recommendations) > 0 {
		b.WriteString("\n")
		b.WriteString(ui.SectionStyle.Render("POLICY RECOMMENDATIONS"))
		b.WriteString("\n\n")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", rec)
		}
	}
	return b.String()
}
