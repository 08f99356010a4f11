package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/gate"
	"github.com/riskgate/riskgate/pkg/input"
	"github.com/riskgate/riskgate/pkg/iohelper"
	"github.com/riskgate/riskgate/pkg/jsonutil"
	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/ui"
)

// runGuard compares a current evaluation against the stored baseline
// without re-evaluating findings or recording anything.
func runGuard(args []string) {
	fs := flag.NewFlagSet("guard", flag.ExitOnError)
	inputPath := fs.String("input", "", "Evaluation envelope path (from 'riskgate evaluate')")
	fs.StringVar(inputPath, "i", "", "Evaluation envelope (alias)")
	app := fs.String("app", "", "Application name (default: envelope app_name)")
	fs.StringVar(app, "a", "", "Application name (alias)")
	score := fs.Int("score", -1, "Current risk score, instead of -input")
	baselineDir := fs.String("baseline-dir", defaults.BaselineDir, "Baseline directory")
	previous := fs.String("previous", "", "Baseline JSON file to compare against, instead of the store")
	tolerance := fs.Float64("tolerance", baseline.DefaultTolerance, "Allowed risk score increase")
	fs.Float64Var(tolerance, "t", baseline.DefaultTolerance, "Tolerance (alias)")
	tolerancePct := fs.Bool("tolerance-pct", false, "Treat tolerance as percent of baseline score")
	policyFile := fs.String("policy", "", "Policy YAML file supplying guard settings")
	fs.StringVar(policyFile, "p", "", "Policy file (alias)")
	preset := fs.String("preset", "", "Built-in policy preset: strict, standard, lenient")
	asJSON := fs.Bool("json", false, "Print the regression report as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: riskgate guard -input <evaluation.json> [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Run the regression guard only: compare the current risk score\n")
		fmt.Fprintf(os.Stderr, "against the stored baseline, or against an explicit snapshot with\n")
		fmt.Fprintf(os.Stderr, "-previous. Nothing is evaluated and no baseline is written.\n\n")
		fmt.Fprintf(os.Stderr, "Exits 0 when the guard accepts the run and %d on a regression.\n\n", int(exitcode.Regression))
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  riskgate guard -input evaluation.json\n")
		fmt.Fprintf(os.Stderr, "  riskgate guard -app payments -score 12 -tolerance 10 -tolerance-pct\n")
		fmt.Fprintf(os.Stderr, "  riskgate guard -input evaluation.json -previous baseline.json -json\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if *inputPath == "" && *score < 0 {
		fatalf(exitcode.Configuration, "current evaluation required (use -input or -score)")
	}
	if *inputPath != "" && *score >= 0 {
		fatalf(exitcode.Configuration, "-input and -score are mutually exclusive")
	}

	pol, err := resolvePolicy(*policyFile, *preset)
	if err != nil {
		fatalErr(err)
	}
	tol := guardTolerance(fs, *tolerance, *tolerancePct, pol)
	if tol.Value < 0 {
		fatalf(exitcode.Configuration, "tolerance must not be negative")
	}

	name := *app
	var current *policy.Result
	if *inputPath != "" {
		eval, err := gate.LoadEvaluation(*inputPath)
		if err != nil {
			fatalErr(err)
		}
		if name == "" {
			name = eval.AppName
		}
		current = eval.Result()
	} else {
		current = &policy.Result{RiskScore: *score}
	}
	if name == "" {
		fatalf(exitcode.Configuration, "app name required (use -app)")
	}

	var store baseline.Store
	if *previous != "" {
		b, err := loadBaselineFile(*previous)
		if err != nil {
			fatalErr(err)
		}
		if b.AppName != "" && b.AppName != name {
			fatalf(exitcode.Configuration, "baseline snapshot records app %q, not %q", b.AppName, name)
		}
		store = staticStore{b: b}
	} else {
		fileStore, err := baseline.NewFileStore(*baselineDir)
		if err != nil {
			fatalErr(err)
		}
		store = fileStore
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaults.TimeoutBaselineIO)
	defer cancel()

	report, err := baseline.CheckRegression(ctx, store, name, current, tol)
	if err != nil {
		fatalErr(err)
	}

	if *asJSON {
		data, err := jsonutil.MarshalIndent(report, "", "  ")
		if err != nil {
			fatalf(exitcode.Internal, "encoding report: %v", err)
		}
		fmt.Println(string(data))
	} else {
		status := string(policy.StatusPass)
		if !report.Accepted {
			status = string(policy.StatusFail)
		}
		fmt.Printf("%s %s: %s\n", ui.StatusIcon(status), name, report.Summary)
		if report.Detail != "" {
			fmt.Printf("  %s\n", report.Detail)
		}
	}

	exits := exitcode.New(exitcode.Config{})
	exits.RecordRegression(report)
	code, _ := exits.ExitCode()
	os.Exit(int(code))
}

// loadBaselineFile reads a single baseline record from disk, for
// comparisons against an explicit snapshot instead of the store.
func loadBaselineFile(path string) (*baseline.Baseline, error) {
	data, truncated, err := iohelper.ReadFileLimited(path, iohelper.DefaultMaxInputSize)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", input.ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("reading baseline: %w", err)
	}
	if truncated {
		return nil, fmt.Errorf("%w: %s", input.ErrInputTooLarge, path)
	}

	var b baseline.Baseline
	if err := jsonutil.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", baseline.ErrInvalidBaseline, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// staticStore serves one fixed baseline, standing in for the file
// store when the guard compares against an explicit snapshot.
type staticStore struct {
	b *baseline.Baseline
}

func (s staticStore) Get(ctx context.Context, app string) (*baseline.Baseline, error) {
	if s.b == nil {
		return nil, baseline.ErrBaselineNotFound
	}
	return s.b, nil
}

func (s staticStore) Put(ctx context.Context, app string, b *baseline.Baseline) error {
	return nil
}

func (s staticStore) Delete(ctx context.Context, app string) error {
	return baseline.ErrBaselineNotFound
}

func (s staticStore) List(ctx context.Context) ([]*baseline.Baseline, error) {
	if s.b == nil {
		return nil, nil
	}
	return []*baseline.Baseline{s.b}, nil
}
