package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/riskgate/riskgate/pkg/config"
	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/gate"
	"github.com/riskgate/riskgate/pkg/input"
	"github.com/riskgate/riskgate/pkg/ui"
)

// runReport renders reports from a saved evaluation envelope by
// replaying it through the writer pipeline. The gate itself does not
// run again: no guard, no baseline write, no history record.
func runReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	inputPath := fs.String("input", "", "Evaluation envelope path (from 'riskgate evaluate' or a json gate run)")
	fs.StringVar(inputPath, "i", "", "Evaluation envelope (alias)")
	var formats input.StringSliceFlag
	fs.Var(&formats, "format", "Output format(s) - comma-separated or repeated")
	fs.Var(&formats, "f", "Output format(s) (alias)")
	output := fs.String("output", "", "Output file path")
	fs.StringVar(output, "o", "", "Output file (alias)")
	outputDir := fs.String("output-dir", "", "Directory for per-format artifacts")
	template := fs.String("template", "", "Custom report template path")
	policyFile := fs.String("policy", "", "Policy YAML file")
	fs.StringVar(policyFile, "p", "", "Policy file (alias)")
	preset := fs.String("preset", "", "Built-in policy preset: strict, standard, lenient")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	verbose := fs.Bool("verbose", false, "Detailed console report")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: riskgate report -input <evaluation.json> [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Render reports from a saved evaluation envelope in any output\n")
		fmt.Fprintf(os.Stderr, "format, without re-running the gate.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  riskgate report -input evaluation.json\n")
		fmt.Fprintf(os.Stderr, "  riskgate report -i evaluation.json -format sarif -output findings.sarif\n")
		fmt.Fprintf(os.Stderr, "  riskgate report -i evaluation.json -format md,junit,csv -output-dir reports/\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if *inputPath == "" {
		fatalf(exitcode.Configuration, "evaluation envelope required (use -input)")
	}

	cfg := config.DefaultConfig()
	cfg.InputPath = *inputPath
	cfg.Formats = formats
	cfg.OutputFile = *output
	cfg.OutputDir = *outputDir
	cfg.Template = *template
	cfg.NoColor = *noColor
	cfg.Verbose = *verbose
	cfg.HistoryDir = ""
	cfg.NoHistory = true
	cfg.Finalize()

	for _, f := range cfg.Formats {
		if !config.ValidFormat(f) {
			fatalf(exitcode.Configuration, "unknown output format %q", f)
		}
	}

	ui.SetNoColor(cfg.NoColor)
	if cfg.NoColor {
		os.Setenv("NO_COLOR", "1")
	}

	pol, err := resolvePolicy(*policyFile, *preset)
	if err != nil {
		fatalErr(err)
	}

	eval, err := gate.LoadEvaluation(cfg.InputPath)
	if err != nil {
		fatalErr(err)
	}

	disp, cleanup, err := buildDispatcher(cfg)
	if err != nil {
		fatalf(exitcode.Configuration, "%v", err)
	}

	replayErr := eval.Replay(context.Background(), disp, pol)
	if err := disp.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing outputs: %v\n", err)
	}
	cleanup()

	if replayErr != nil {
		fatalf(exitcode.Internal, "rendering report: %v", replayErr)
	}
}
