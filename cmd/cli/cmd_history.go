package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/history"
	"github.com/riskgate/riskgate/pkg/jsonutil"
	"github.com/riskgate/riskgate/pkg/ui"
)

// historyUntil is the open upper bound for history listings.
var historyUntil = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// runHistory lists, inspects, compares, and prunes recorded runs.
func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dir := fs.String("dir", defaults.HistoryDir, "Run history directory")
	app := fs.String("app", "", "Filter by application")
	fs.StringVar(app, "a", "", "Application filter (alias)")
	limit := fs.Int("limit", defaults.HistoryListLimit, "Runs to list")
	since := fs.Duration("since", 0, "Window for listings and trends (e.g. 720h, 0 = all)")
	show := fs.String("show", "", "Show one run by ID (prefixes allowed)")
	latest := fs.Bool("latest", false, "Show the most recent run for -app")
	trend := fs.Bool("trend", false, "Show the risk score trend for -app")
	points := fs.Int("points", defaults.TrendPoints, "Trend points")
	compare := fs.String("compare", "", "Compare two runs: BASE:COMPARE")
	stats := fs.Bool("stats", false, "Show store statistics")
	prune := fs.Bool("prune", false, "Delete runs older than -older-than")
	olderThan := fs.Duration("older-than", defaults.PruneAge, "Retention window for -prune")
	asJSON := fs.Bool("json", false, "Print JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: riskgate history [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Work with the run history the gate records: list past runs,\n")
		fmt.Fprintf(os.Stderr, "inspect one, follow an application's risk trend, compare two runs,\n")
		fmt.Fprintf(os.Stderr, "or prune old records.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  riskgate history -app payments\n")
		fmt.Fprintf(os.Stderr, "  riskgate history -app payments -trend\n")
		fmt.Fprintf(os.Stderr, "  riskgate history -show 4fc1\n")
		fmt.Fprintf(os.Stderr, "  riskgate history -compare 4fc1:9ab2\n")
		fmt.Fprintf(os.Stderr, "  riskgate history -prune -older-than 2160h\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	store, err := history.NewStore(*dir)
	if err != nil {
		fatalf(exitcode.Configuration, "opening history store: %v", err)
	}

	from := time.Time{}
	if *since > 0 {
		from = time.Now().UTC().Add(-*since)
	}

	switch {
	case *show != "":
		historyShow(store, *show, *asJSON)
	case *latest:
		if *app == "" {
			fatalf(exitcode.Configuration, "-latest needs -app")
		}
		rec, err := store.GetLatest(*app)
		if err != nil {
			fatalf(exitcode.Configuration, "no runs recorded for %q", *app)
		}
		printRunRecord(rec, *asJSON)
	case *trend:
		if *app == "" {
			fatalf(exitcode.Configuration, "-trend needs -app")
		}
		historyTrend(store, *app, from, *points, *asJSON)
	case *compare != "":
		historyCompare(store, *compare, *asJSON)
	case *stats:
		historyStats(store, *asJSON)
	case *prune:
		pruned, err := store.Prune(*olderThan)
		if err != nil {
			fatalf(exitcode.Internal, "pruning history: %v", err)
		}
		fmt.Printf("Pruned %d runs older than %s\n", pruned, *olderThan)
	default:
		historyList(store, *app, from, *limit, *asJSON)
	}
}

// resolveRunID expands a run ID prefix to the full ID.
func resolveRunID(store *history.Store, prefix string) string {
	if _, err := store.Get(prefix); err == nil {
		return prefix
	}
	records, err := store.List("", time.Time{}, historyUntil, 0)
	if err != nil {
		fatalf(exitcode.Internal, "listing history: %v", err)
	}
	var match string
	for _, rec := range records {
		if !strings.HasPrefix(rec.ID, prefix) {
			continue
		}
		if match != "" {
			fatalf(exitcode.Configuration, "run ID %q is ambiguous", prefix)
		}
		match = rec.ID
	}
	if match == "" {
		fatalf(exitcode.Configuration, "no run with ID %q", prefix)
	}
	return match
}

func historyShow(store *history.Store, id string, asJSON bool) {
	rec, err := store.Get(resolveRunID(store, id))
	if err != nil {
		fatalf(exitcode.Configuration, "no run with ID %q", id)
	}
	printRunRecord(rec, asJSON)
}

func printRunRecord(rec *history.RunRecord, asJSON bool) {
	if asJSON {
		printJSON(rec)
		return
	}
	fmt.Printf("Run      %s\n", rec.ID)
	fmt.Printf("Time     %s\n", rec.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Printf("App      %s\n", rec.AppName)
	fmt.Printf("Verdict  %s (%s)\n", rec.Status, rec.Rule)
	fmt.Printf("Score    %d across %d findings (C:%d H:%d M:%d L:%d I:%d)\n",
		rec.RiskScore, rec.TotalFindings,
		rec.SeverityCounts.Critical, rec.SeverityCounts.High, rec.SeverityCounts.Medium,
		rec.SeverityCounts.Low, rec.SeverityCounts.Info)
	fmt.Printf("Guard    %s\n", guardLabel(rec))
	if rec.PolicyReference != "" {
		fmt.Printf("Policy   %s\n", rec.PolicyReference)
	}
	if len(rec.Tags) > 0 {
		fmt.Printf("Tags     %s\n", strings.Join(rec.Tags, ", "))
	}
}

// guardLabel renders the regression guard outcome of a record.
func guardLabel(rec *history.RunRecord) string {
	switch {
	case rec.FirstRun:
		return "first run"
	case rec.RegressionAccepted:
		return "accepted"
	default:
		return "REGRESSION"
	}
}

func historyList(store *history.Store, app string, since time.Time, limit int, asJSON bool) {
	records, err := store.List(app, since, historyUntil, limit)
	if err != nil {
		fatalf(exitcode.Internal, "listing history: %v", err)
	}
	if asJSON {
		printJSON(records)
		return
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded.")
		return
	}

	fmt.Printf("  %-10s %-17s %-20s %-6s %5s %9s  %s\n",
		"RUN", "TIME", "APP", "STATUS", "SCORE", "FINDINGS", "GUARD")
	for _, rec := range records {
		fmt.Printf("  %-10s %-17s %-20s %s %-4s %5d %9d  %s\n",
			shortID(rec.ID),
			rec.Timestamp.UTC().Format("2006-01-02 15:04"),
			rec.AppName,
			ui.StatusIcon(string(rec.Status)), rec.Status,
			rec.RiskScore, rec.TotalFindings,
			guardLabel(rec))
	}
}

// shortID truncates a run ID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func historyTrend(store *history.Store, app string, since time.Time, points int, asJSON bool) {
	trend, err := store.GetTrend(app, since, points)
	if err != nil {
		fatalf(exitcode.Internal, "loading trend: %v", err)
	}
	if asJSON {
		printJSON(trend)
		return
	}
	if len(trend) == 0 {
		fmt.Printf("No runs recorded for %q.\n", app)
		return
	}

	fmt.Println(ui.SectionStyle.Render("RISK TREND: " + app))
	fmt.Println()
	block := ui.Icon("█", "#")
	for _, p := range trend {
		bar := strings.Repeat(block, min(p.RiskScore, 40))
		fmt.Printf("  %s %s %-4s %3d %s\n",
			p.Timestamp.UTC().Format("2006-01-02 15:04"),
			ui.StatusIcon(string(p.Status)), p.Status, p.RiskScore, bar)
	}
}

func historyCompare(store *history.Store, spec string, asJSON bool) {
	baseID, compareID, ok := strings.Cut(spec, ":")
	if !ok || baseID == "" || compareID == "" {
		fatalf(exitcode.Configuration, "-compare wants BASE:COMPARE run IDs, got %q", spec)
	}

	result, err := store.Compare(resolveRunID(store, baseID), resolveRunID(store, compareID))
	if err != nil {
		fatalf(exitcode.Configuration, "comparing runs: %v", err)
	}
	if asJSON {
		printJSON(result)
		return
	}

	fmt.Println(ui.SectionStyle.Render("RUN COMPARISON"))
	fmt.Println()
	fmt.Printf("  Base     %s (%s)\n", shortID(result.BaseID), result.BaseTimestamp.UTC().Format("2006-01-02 15:04"))
	fmt.Printf("  Compare  %s (%s)\n", shortID(result.CompareID), result.CompareTimestamp.UTC().Format("2006-01-02 15:04"))
	fmt.Println()
	fmt.Printf("  Risk score  %+d\n", result.RiskScoreDelta)
	fmt.Printf("  Findings    %+d (critical %+d, high %+d, medium %+d)\n",
		result.FindingsDelta, result.CriticalDelta, result.HighDelta, result.MediumDelta)
	if result.Improved {
		fmt.Println("  Trend       improved")
	} else {
		fmt.Println("  Trend       regressed or unchanged")
	}
}

func historyStats(store *history.Store, asJSON bool) {
	stats, err := store.Stats()
	if err != nil {
		fatalf(exitcode.Internal, "reading stats: %v", err)
	}
	if asJSON {
		printJSON(stats)
		return
	}

	fmt.Printf("Runs      %d\n", stats.TotalRuns)
	fmt.Printf("Apps      %d\n", stats.UniqueApps)
	if !stats.OldestRun.IsZero() {
		fmt.Printf("Oldest    %s\n", stats.OldestRun.UTC().Format("2006-01-02 15:04"))
		fmt.Printf("Newest    %s\n", stats.NewestRun.UTC().Format("2006-01-02 15:04"))
	}
	fmt.Printf("Storage   %d bytes\n", stats.StorageSizeBytes)
}

// printJSON writes v as indented JSON on stdout.
func printJSON(v interface{}) {
	data, err := jsonutil.MarshalIndent(v, "", "  ")
	if err != nil {
		fatalf(exitcode.Internal, "encoding: %v", err)
	}
	fmt.Println(string(data))
}
