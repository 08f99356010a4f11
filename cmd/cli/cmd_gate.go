package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/config"
	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/gate"
	"github.com/riskgate/riskgate/pkg/input"
	"github.com/riskgate/riskgate/pkg/output/hooks"
	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/ui"
	"github.com/riskgate/riskgate/pkg/workerpool"
)

// runGateCmd executes the full gate pipeline: load findings, evaluate
// and classify them, run the regression guard, record the baseline,
// and exit with the run's semantic code.
func runGateCmd(args []string) {
	fs := flag.NewFlagSet("gate", flag.ExitOnError)
	cfg := config.DefaultConfig()
	cfg.RegisterFlags(fs)
	batchDir := fs.String("batch", "", "Directory of findings documents, one gate run per file")
	workers := fs.Int("workers", defaults.BatchWorkers, "Parallel gate runs in batch mode")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: riskgate gate -input <findings.json> -app <name> [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Run the full policy gate over a findings document: evaluate and\n")
		fmt.Fprintf(os.Stderr, "classify the findings, guard against risk regressions, and record\n")
		fmt.Fprintf(os.Stderr, "the baseline when the run is accepted.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  riskgate gate -input findings.json -app payments\n")
		fmt.Fprintf(os.Stderr, "  riskgate gate -i findings.json -a payments -preset strict -fail-on-warn\n")
		fmt.Fprintf(os.Stderr, "  cat findings.json | riskgate gate -stdin -a payments -format json\n")
		fmt.Fprintf(os.Stderr, "  riskgate gate -batch scans/ -workers 8 -format md -output-dir reports/\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	cfg.Finalize()

	ui.SetSilent(cfg.Silent)
	ui.SetNoColor(cfg.NoColor)
	if cfg.NoColor {
		os.Setenv("NO_COLOR", "1")
	}

	pol, err := resolvePolicy(cfg.PolicyFile, cfg.Preset)
	if err != nil {
		fatalErr(err)
	}
	applyPolicyGuard(fs, cfg, pol)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if *batchDir != "" {
		code := runGateBatch(ctx, cfg, pol, *batchDir, *workers)
		stop()
		os.Exit(int(code))
	}

	if err := cfg.Validate(); err != nil {
		fatalf(exitcode.Configuration, "%v", err)
	}
	ui.PrintBanner()

	doc, err := (&input.Source{Path: cfg.InputPath, Stdin: cfg.Stdin, AppName: cfg.AppName}).Load()
	if err != nil {
		fatalErr(err)
	}

	store, err := openBaselines(cfg)
	if err != nil {
		fatalErr(err)
	}

	disp, cleanup, err := buildDispatcher(cfg)
	if err != nil {
		fatalf(exitcode.Configuration, "%v", err)
	}

	runner := gate.NewRunner(cfg, gate.Options{Policy: pol, Baselines: store, Dispatcher: disp})
	outcome, runErr := runner.Run(ctx, doc)

	if err := disp.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing outputs: %v\n", err)
	}
	cleanup()
	stop()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
	}
	os.Exit(int(outcome.ExitCode))
}

// openBaselines opens the baseline store unless the run needs neither
// the guard nor baseline updates.
func openBaselines(cfg *config.Config) (baseline.Store, error) {
	if cfg.SkipRegression && cfg.NoBaselineUpdate {
		return nil, nil
	}
	store, err := baseline.NewFileStore(cfg.BaselineDir)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// batchResult captures one run of a batch.
type batchResult struct {
	app    string
	path   string
	status policy.Status
	score  int
	code   exitcode.Code
	err    error
}

// codeSeverity ranks exit codes by reporting priority, matching the
// exit code manager's resolution order.
var codeSeverity = map[exitcode.Code]int{
	exitcode.Internal:      7,
	exitcode.Configuration: 6,
	exitcode.Input:         5,
	exitcode.Baseline:      4,
	exitcode.GateFailed:    3,
	exitcode.Regression:    2,
	exitcode.Success:       0,
}

// worseCode returns the higher-priority of two exit codes.
func worseCode(a, b exitcode.Code) exitcode.Code {
	if codeSeverity[b] > codeSeverity[a] {
		return b
	}
	return a
}

// runGateBatch judges every findings document under dir, one gate run
// per application, and returns the worst exit code across the batch.
// Applications must be distinct: the runs share the baseline store,
// and two documents racing on one app would fight over its baseline.
func runGateBatch(ctx context.Context, cfg *config.Config, pol *policy.Policy, dir string, workers int) exitcode.Code {
	if cfg.Tolerance < 0 {
		fatalf(exitcode.Configuration, "tolerance must not be negative")
	}
	for _, f := range cfg.Formats {
		if !config.ValidFormat(f) {
			fatalf(exitcode.Configuration, "unknown output format %q", f)
		}
	}
	if cfg.MetricsAddr != "" || cfg.OTelEndpoint != "" {
		fmt.Fprintln(os.Stderr, "warning: -metrics-addr and -otel-endpoint are ignored in batch mode")
	}
	if cfg.CI {
		fmt.Fprintln(os.Stderr, "warning: -ci is ignored in batch mode")
	}
	if cfg.OutputFile != "" {
		fmt.Fprintln(os.Stderr, "warning: -output is ignored in batch mode, use -output-dir")
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		fatalf(exitcode.Configuration, "listing %s: %v", dir, err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		fatalf(exitcode.Input, "no findings documents under %s", dir)
	}

	type job struct {
		path string
		doc  *finding.Document
	}
	var jobs []job
	var results []batchResult
	seen := map[string]string{}
	for _, path := range paths {
		doc, err := (&input.Source{Path: path}).Load()
		if err != nil {
			results = append(results, batchResult{path: path, code: exitcode.Classify(err), err: err})
			continue
		}
		if doc.AppName == "" {
			results = append(results, batchResult{path: path, code: exitcode.Input,
				err: fmt.Errorf("%s: document has no app_name", path)})
			continue
		}
		if prev, dup := seen[doc.AppName]; dup {
			fatalf(exitcode.Configuration, "app %q appears in both %s and %s: batch runs need distinct applications", doc.AppName, prev, path)
		}
		seen[doc.AppName] = path
		jobs = append(jobs, job{path: path, doc: doc})
	}

	store, err := openBaselines(cfg)
	if err != nil {
		fatalErr(err)
	}

	// One history hook for the whole batch: its store serializes index
	// updates that per-run stores would race on.
	var sharedHistory *hooks.HistoryHook
	if !cfg.NoHistory && cfg.HistoryDir != "" {
		sharedHistory, err = hooks.NewHistoryHook(hooks.HistoryHookOptions{
			StorePath: cfg.HistoryDir,
			Tags:      cfg.Tags,
		})
		if err != nil {
			fatalf(exitcode.Configuration, "opening history store: %v", err)
		}
	}

	ui.PrintBanner()
	if !cfg.Silent {
		fmt.Printf("Judging %d findings documents with %d workers\n", len(jobs), workers)
	}

	runs := make([]batchResult, len(jobs))
	var renderMu sync.Mutex

	pool := workerpool.New(workers)
	pool.ParallelFor(len(jobs), func(i int) {
		runs[i] = runBatchJob(ctx, cfg, pol, store, sharedHistory, jobs[i].path, jobs[i].doc, &renderMu)
	})
	pool.Close()
	results = append(results, runs...)

	sort.Slice(results, func(i, j int) bool {
		if results[i].app != results[j].app {
			return results[i].app < results[j].app
		}
		return results[i].path < results[j].path
	})

	worst := exitcode.Success
	passed := 0
	for _, res := range results {
		if res.code == exitcode.Success {
			passed++
		}
		worst = worseCode(worst, res.code)
	}

	if !cfg.Silent {
		fmt.Println()
		fmt.Println(ui.SectionStyle.Render("BATCH SUMMARY"))
		fmt.Println()
		for _, res := range results {
			if res.err != nil {
				name := res.app
				if name == "" {
					name = filepath.Base(res.path)
				}
				fmt.Printf("  %s %-20s %v\n", ui.StatusIcon(string(policy.StatusFail)), name, res.err)
				continue
			}
			fmt.Printf("  %s %-20s %s (risk score %d, exit %d)\n",
				ui.StatusIcon(string(res.status)), res.app, res.status, res.score, int(res.code))
		}
		fmt.Println()
		fmt.Printf("  %d of %d applications passed, exit code %d (%s)\n",
			passed, len(results), int(worst), exitcode.CodeString(worst))
	}

	return worst
}

// runBatchJob executes one gate run of a batch with its own writer
// set. Rendering is serialized so concurrent console reports do not
// interleave.
func runBatchJob(ctx context.Context, parent *config.Config, pol *policy.Policy, store baseline.Store, sharedHistory *hooks.HistoryHook, path string, doc *finding.Document, renderMu *sync.Mutex) batchResult {
	cfg := *parent
	cfg.InputPath = path
	cfg.AppName = doc.AppName
	cfg.MetricsAddr = ""
	cfg.OTelEndpoint = ""
	cfg.CI = false
	cfg.NoHistory = true
	cfg.OutputFile = ""
	if parent.OutputDir != "" {
		cfg.OutputDir = filepath.Join(parent.OutputDir, doc.AppName)
	}

	disp, cleanup, err := buildDispatcher(&cfg)
	if err != nil {
		return batchResult{app: doc.AppName, path: path, code: exitcode.Configuration, err: err}
	}
	if sharedHistory != nil {
		disp.RegisterHook(sharedHistory)
	}

	runner := gate.NewRunner(&cfg, gate.Options{Policy: pol, Baselines: store, Dispatcher: disp})
	outcome, runErr := runner.Run(ctx, doc)

	renderMu.Lock()
	if err := disp.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing outputs for %s: %v\n", doc.AppName, err)
	}
	renderMu.Unlock()
	cleanup()

	res := batchResult{app: doc.AppName, path: path, code: outcome.ExitCode, err: runErr}
	if outcome.Evaluation != nil {
		res.status = outcome.Evaluation.Status
		res.score = outcome.Evaluation.RiskScore
	}
	return res
}
