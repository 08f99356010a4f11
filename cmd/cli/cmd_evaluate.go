package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/gate"
	"github.com/riskgate/riskgate/pkg/input"
	"github.com/riskgate/riskgate/pkg/jsonutil"
	"github.com/riskgate/riskgate/pkg/ui"
)

// runEvaluate scores and classifies a findings document without the
// guard or the baseline store, and writes the evaluation envelope.
func runEvaluate(args []string) {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	inputPath := fs.String("input", "", "Findings document path (- for stdin)")
	fs.StringVar(inputPath, "i", "", "Findings document (alias)")
	app := fs.String("app", "", "Application name (default: document app_name)")
	fs.StringVar(app, "a", "", "Application name (alias)")
	stdin := fs.Bool("stdin", false, "Read findings from stdin")
	policyFile := fs.String("policy", "", "Policy YAML file")
	fs.StringVar(policyFile, "p", "", "Policy file (alias)")
	preset := fs.String("preset", "", "Built-in policy preset: strict, standard, lenient")
	failOnWarn := fs.Bool("fail-on-warn", false, "Treat WARN as gate failure")
	output := fs.String("output", "", "Envelope output path (default: stdout)")
	fs.StringVar(output, "o", "", "Output file (alias)")
	quiet := fs.Bool("quiet", false, "Suppress the verdict line")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: riskgate evaluate -input <findings.json> [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Evaluate findings against the policy and write the evaluation\n")
		fmt.Fprintf(os.Stderr, "envelope. No regression guard runs and no baseline is touched,\n")
		fmt.Fprintf(os.Stderr, "so the envelope can be judged later with 'riskgate guard'.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  riskgate evaluate -input findings.json -output evaluation.json\n")
		fmt.Fprintf(os.Stderr, "  riskgate evaluate -i findings.json -a payments -preset strict\n")
		fmt.Fprintf(os.Stderr, "  cat findings.json | riskgate evaluate -stdin > evaluation.json\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if *stdin && *inputPath == "" {
		*inputPath = "-"
	}
	if *inputPath == "" {
		fatalf(exitcode.Configuration, "findings input required (use -input or -stdin)")
	}

	pol, err := resolvePolicy(*policyFile, *preset)
	if err != nil {
		fatalErr(err)
	}

	doc, err := (&input.Source{Path: *inputPath, Stdin: *stdin, AppName: *app}).Load()
	if err != nil {
		fatalErr(err)
	}
	name := *app
	if name == "" {
		name = doc.AppName
	}
	if name == "" {
		fatalf(exitcode.Configuration, "app name required (use -app or set app_name in the document)")
	}

	eval, err := gate.Evaluate(name, doc.Findings, pol)
	if err != nil {
		fatalErr(err)
	}

	if *output != "" {
		if err := eval.Save(*output); err != nil {
			fatalf(exitcode.Internal, "writing evaluation: %v", err)
		}
		if !*quiet {
			fmt.Printf("%s %s: %s (risk score %d) -> %s\n",
				ui.StatusIcon(string(eval.Status)), name, eval.Status, eval.RiskScore, *output)
		}
	} else {
		data, err := jsonutil.MarshalIndent(eval, "", "  ")
		if err != nil {
			fatalf(exitcode.Internal, "encoding evaluation: %v", err)
		}
		fmt.Println(string(data))
	}

	exits := exitcode.New(exitcode.Config{FailOnWarn: *failOnWarn})
	exits.RecordStatus(eval.Status)
	code, _ := exits.ExitCode()
	os.Exit(int(code))
}
