package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/gate"
)

// runBaseline manages the per-application baselines the regression
// guard compares against.
func runBaseline(args []string) {
	if len(args) == 0 {
		baselineUsage()
		os.Exit(int(exitcode.Configuration))
	}

	switch args[0] {
	case "show":
		baselineShow(args[1:])
	case "set":
		baselineSet(args[1:])
	case "clear", "delete", "rm":
		baselineClear(args[1:])
	case "list", "ls":
		baselineList(args[1:])
	case "-h", "--help", "help":
		baselineUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "error: unknown baseline subcommand %q\n", args[0])
		baselineUsage()
		os.Exit(int(exitcode.Configuration))
	}
}

func baselineUsage() {
	fmt.Fprintf(os.Stderr, "Usage: riskgate baseline <subcommand> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Inspect and manage the stored baselines the regression guard\n")
	fmt.Fprintf(os.Stderr, "compares new runs against.\n\n")
	fmt.Fprintf(os.Stderr, "Subcommands:\n")
	fmt.Fprintf(os.Stderr, "  show   -app NAME        Show the stored baseline for an application\n")
	fmt.Fprintf(os.Stderr, "  set    -input FILE      Adopt an evaluation envelope as the baseline\n")
	fmt.Fprintf(os.Stderr, "  clear  -app NAME        Remove a stored baseline\n")
	fmt.Fprintf(os.Stderr, "  list                    List every stored baseline\n\n")
	fmt.Fprintf(os.Stderr, "Examples:\n")
	fmt.Fprintf(os.Stderr, "  riskgate baseline show -app payments\n")
	fmt.Fprintf(os.Stderr, "  riskgate baseline set -input evaluation.json\n")
	fmt.Fprintf(os.Stderr, "  riskgate baseline clear -app payments\n")
}

// baselineStore opens the file store and a context bounding its IO.
func baselineStore(dir string) (*baseline.FileStore, context.Context, context.CancelFunc) {
	store, err := baseline.NewFileStore(dir)
	if err != nil {
		fatalf(exitcode.Baseline, "opening baseline store: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaults.TimeoutBaselineIO)
	return store, ctx, cancel
}

func baselineShow(args []string) {
	fs := flag.NewFlagSet("baseline show", flag.ExitOnError)
	app := fs.String("app", "", "Application name")
	fs.StringVar(app, "a", "", "Application name (alias)")
	dir := fs.String("dir", defaults.BaselineDir, "Baseline directory")
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Parse(args)

	if *app == "" {
		fatalf(exitcode.Configuration, "baseline show needs -app")
	}

	store, ctx, cancel := baselineStore(*dir)
	defer cancel()

	b, err := store.Get(ctx, *app)
	if errors.Is(err, baseline.ErrBaselineNotFound) {
		// Missing baseline is the normal first-run state, not a failure.
		fmt.Printf("No baseline recorded for %q; the next gate run will establish one.\n", *app)
		return
	}
	if err != nil {
		fatalErr(err)
	}

	if *asJSON {
		printJSON(b)
		return
	}
	printBaseline(b)
}

func printBaseline(b *baseline.Baseline) {
	fmt.Printf("App       %s\n", b.AppName)
	fmt.Printf("Verdict   %s\n", b.Status)
	fmt.Printf("Score     %d across %d findings (C:%d H:%d M:%d L:%d I:%d)\n",
		b.RiskScore, b.TotalFindings,
		b.SeverityCounts.Critical, b.SeverityCounts.High, b.SeverityCounts.Medium,
		b.SeverityCounts.Low, b.SeverityCounts.Info)
	fmt.Printf("Recorded  %s\n", b.RecordedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	if !b.UpdatedAt.Equal(b.RecordedAt) {
		fmt.Printf("Updated   %s\n", b.UpdatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	if b.RunID != "" {
		fmt.Printf("Run       %s\n", b.RunID)
	}
}

func baselineSet(args []string) {
	fs := flag.NewFlagSet("baseline set", flag.ExitOnError)
	inputPath := fs.String("input", "", "Evaluation envelope to adopt")
	fs.StringVar(inputPath, "i", "", "Evaluation envelope (alias)")
	app := fs.String("app", "", "Override the envelope's application name")
	fs.StringVar(app, "a", "", "Application override (alias)")
	dir := fs.String("dir", defaults.BaselineDir, "Baseline directory")
	fs.Parse(args)

	if *inputPath == "" {
		fatalf(exitcode.Configuration, "baseline set needs -input with an evaluation envelope")
	}

	eval, err := gate.LoadEvaluation(*inputPath)
	if err != nil {
		fatalErr(err)
	}
	name := *app
	if name == "" {
		name = eval.AppName
	}

	b := baseline.FromResult(name, eval.Result(), eval.RunID, finding.Fingerprint(eval.Findings))

	store, ctx, cancel := baselineStore(*dir)
	defer cancel()
	if err := store.Put(ctx, name, b); err != nil {
		fatalErr(err)
	}
	fmt.Printf("Baseline for %q set to risk score %d (run %s)\n", name, b.RiskScore, shortID(b.RunID))
}

func baselineClear(args []string) {
	fs := flag.NewFlagSet("baseline clear", flag.ExitOnError)
	app := fs.String("app", "", "Application name")
	fs.StringVar(app, "a", "", "Application name (alias)")
	dir := fs.String("dir", defaults.BaselineDir, "Baseline directory")
	fs.Parse(args)

	if *app == "" {
		fatalf(exitcode.Configuration, "baseline clear needs -app")
	}

	store, ctx, cancel := baselineStore(*dir)
	defer cancel()

	err := store.Delete(ctx, *app)
	if errors.Is(err, baseline.ErrBaselineNotFound) {
		fmt.Printf("No baseline recorded for %q.\n", *app)
		return
	}
	if err != nil {
		fatalErr(err)
	}
	fmt.Printf("Baseline for %q cleared; the next gate run starts fresh.\n", *app)
}

func baselineList(args []string) {
	fs := flag.NewFlagSet("baseline list", flag.ExitOnError)
	dir := fs.String("dir", defaults.BaselineDir, "Baseline directory")
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Parse(args)

	store, ctx, cancel := baselineStore(*dir)
	defer cancel()

	baselines, err := store.List(ctx)
	if err != nil {
		fatalErr(err)
	}
	if *asJSON {
		printJSON(baselines)
		return
	}
	if len(baselines) == 0 {
		fmt.Println("No baselines recorded.")
		return
	}

	fmt.Printf("  %-24s %-7s %5s %9s  %s\n", "APP", "STATUS", "SCORE", "FINDINGS", "RECORDED")
	for _, b := range baselines {
		fmt.Printf("  %-24s %-7s %5d %9d  %s\n",
			b.AppName, b.Status, b.RiskScore, b.TotalFindings,
			b.RecordedAt.UTC().Format("2006-01-02 15:04"))
	}
}
