package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/config"
	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
)

// captureWriter records every event it sees, keyed by type.
type captureWriter struct {
	events []events.Event
}

func (c *captureWriter) Write(ev events.Event) error                   { c.events = append(c.events, ev); return nil }
func (c *captureWriter) Flush() error                                  { return nil }
func (c *captureWriter) Close() error                                  { return nil }
func (c *captureWriter) SupportsEvent(t events.EventType) bool         { return true }
func (c *captureWriter) byType(t events.EventType) []events.Event {
	var out []events.Event
	for _, ev := range c.events {
		if ev.EventType() == t {
			out = append(out, ev)
		}
	}
	return out
}

// brokenStore fails every read, standing in for an unreachable backend.
type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, app string) (*baseline.Baseline, error) {
	return nil, errors.New("disk on fire")
}
func (brokenStore) Put(ctx context.Context, app string, b *baseline.Baseline) error {
	return errors.New("disk on fire")
}
func (brokenStore) Delete(ctx context.Context, app string) error   { return nil }
func (brokenStore) List(ctx context.Context) ([]*baseline.Baseline, error) { return nil, nil }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AppName = "payments"
	cfg.InputPath = "findings.json"
	return cfg
}

func fileStore(t *testing.T) *baseline.FileStore {
	t.Helper()
	store, err := baseline.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func doc(findings ...finding.Finding) *finding.Document {
	return &finding.Document{AppName: "payments", Findings: findings}
}

func low(name string) finding.Finding {
	return finding.Finding{Name: name, Severity: finding.Low, Source: "zap", Rule: "10038"}
}

func medium(name string) finding.Finding {
	return finding.Finding{Name: name, Severity: finding.Medium, Source: "zap", Rule: "40012"}
}

func critical(name string) finding.Finding {
	return finding.Finding{Name: name, Severity: finding.Critical, Source: "nuclei", Rule: "CVE-2021-44228"}
}

func runGate(t *testing.T, cfg *config.Config, store baseline.Store, d *finding.Document) (*Outcome, *captureWriter, error) {
	t.Helper()
	sink := &captureWriter{}
	disp := dispatcher.New(dispatcher.Config{})
	disp.RegisterWriter(sink)

	runner := NewRunner(cfg, Options{Baselines: store, Dispatcher: disp})
	outcome, err := runner.Run(context.Background(), d)
	return outcome, sink, err
}

func TestRunFirstRun(t *testing.T) {
	store := fileStore(t)
	outcome, sink, err := runGate(t, testConfig(), store, doc(low("Cookie Without Secure Flag")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !outcome.Accepted {
		t.Error("first passing run should be accepted")
	}
	if outcome.ExitCode != exitcode.Success {
		t.Errorf("exit code = %d, want 0", outcome.ExitCode)
	}
	if outcome.Regression == nil || !outcome.Regression.FirstRun {
		t.Errorf("expected first-run guard report, got %+v", outcome.Regression)
	}
	if outcome.BaselineAction != events.BaselineUpdated {
		t.Errorf("baseline action = %q, want updated", outcome.BaselineAction)
	}

	b, err := store.Get(context.Background(), "payments")
	if err != nil {
		t.Fatalf("baseline after run: %v", err)
	}
	if b.RiskScore != 2 {
		t.Errorf("stored baseline score = %d, want 2", b.RiskScore)
	}
	if b.RunID != outcome.Evaluation.RunID {
		t.Errorf("baseline run id = %q, want %q", b.RunID, outcome.Evaluation.RunID)
	}

	// Event stream shape: start, finding, evaluation, regression,
	// baseline, summary, complete.
	for _, want := range []events.EventType{
		events.EventTypeStart,
		events.EventTypeFinding,
		events.EventTypeEvaluation,
		events.EventTypeRegression,
		events.EventTypeBaseline,
		events.EventTypeSummary,
		events.EventTypeComplete,
	} {
		if len(sink.byType(want)) == 0 {
			t.Errorf("missing %s event", want)
		}
	}
	if vs := sink.byType(events.EventTypeViolation); len(vs) != 0 {
		t.Errorf("clean run emitted %d violation events", len(vs))
	}
}

func TestRunEnvelope(t *testing.T) {
	outcome, _, err := runGate(t, testConfig(), fileStore(t), doc(critical("RCE"), low("Banner")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	e := outcome.Evaluation
	if e.AppName != "payments" {
		t.Errorf("app_name = %q", e.AppName)
	}
	if e.Status != policy.StatusFail {
		t.Errorf("status = %s, want FAIL", e.Status)
	}
	if e.RiskScore != 12 {
		t.Errorf("risk_score = %d, want 12", e.RiskScore)
	}
	if e.TotalFindings != 2 {
		t.Errorf("total_findings = %d, want 2", e.TotalFindings)
	}
	if len(e.Findings) != 2 {
		t.Errorf("findings = %d, want 2", len(e.Findings))
	}
	if e.RunID == "" || e.AnalysisTime.IsZero() {
		t.Error("run id and analysis time must be set")
	}
	if e.PolicyReference == "" {
		t.Error("policy reference must be set")
	}
	if e.Regression == nil {
		t.Error("regression block missing from envelope")
	}
}

func TestRunFailKeepsBaseline(t *testing.T) {
	store := fileStore(t)
	outcome, sink, err := runGate(t, testConfig(), store, doc(critical("RCE")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Accepted {
		t.Error("FAIL run must not be accepted")
	}
	if outcome.ExitCode != exitcode.GateFailed {
		t.Errorf("exit code = %d, want 1", outcome.ExitCode)
	}
	if outcome.BaselineAction != events.BaselineKept {
		t.Errorf("baseline action = %q, want kept", outcome.BaselineAction)
	}
	if _, err := store.Get(context.Background(), "payments"); !errors.Is(err, baseline.ErrBaselineNotFound) {
		t.Errorf("failed run must not write a baseline, got %v", err)
	}
	if vs := sink.byType(events.EventTypeViolation); len(vs) != 1 {
		t.Errorf("violation events = %d, want 1", len(vs))
	}
}

func TestRunViolationEvents(t *testing.T) {
	// One critical, one high: two violations, each carrying its tier.
	d := doc(
		critical("RCE"),
		finding.Finding{Name: "XSS", Severity: finding.High, Source: "zap", Rule: "40026"},
	)
	_, sink, err := runGate(t, testConfig(), fileStore(t), d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	vs := sink.byType(events.EventTypeViolation)
	if len(vs) != 2 {
		t.Fatalf("violation events = %d, want 2", len(vs))
	}
	first := vs[0].(*events.ViolationEvent)
	if first.Tier != finding.Critical || first.Count != 1 {
		t.Errorf("first violation tier=%s count=%d, want critical/1", first.Tier, first.Count)
	}
	second := vs[1].(*events.ViolationEvent)
	if second.Tier != finding.High || second.Count != 1 {
		t.Errorf("second violation tier=%s count=%d, want high/1", second.Tier, second.Count)
	}
}

func TestRunRegressionRejected(t *testing.T) {
	store := fileStore(t)
	seed := &baseline.Baseline{AppName: "payments", Status: policy.StatusPass, RiskScore: 2}
	if err := store.Put(context.Background(), "payments", seed); err != nil {
		t.Fatalf("seeding baseline: %v", err)
	}

	// Three medium findings: score 12, delta 10 over tolerance 5.
	outcome, sink, err := runGate(t, testConfig(), store, doc(medium("a"), medium("b"), medium("c")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Accepted {
		t.Error("regressed run must not be accepted")
	}
	if outcome.ExitCode != exitcode.Regression {
		t.Errorf("exit code = %d, want 2", outcome.ExitCode)
	}
	if outcome.Regression.Accepted {
		t.Error("guard report should be rejected")
	}
	if outcome.Regression.Delta != 10 {
		t.Errorf("delta = %d, want 10", outcome.Regression.Delta)
	}
	if outcome.BaselineAction != events.BaselineKept {
		t.Errorf("baseline action = %q, want kept", outcome.BaselineAction)
	}

	// Stored baseline must still be the seed.
	b, err := store.Get(context.Background(), "payments")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.RiskScore != 2 {
		t.Errorf("baseline score = %d, want untouched 2", b.RiskScore)
	}

	regs := sink.byType(events.EventTypeRegression)
	if len(regs) != 1 {
		t.Fatalf("regression events = %d, want 1", len(regs))
	}
	rev := regs[0].(*events.RegressionEvent)
	if rev.Accepted || rev.Delta != 10 {
		t.Errorf("regression event = %+v", rev)
	}
}

func TestRunWithinToleranceUpdatesBaseline(t *testing.T) {
	store := fileStore(t)
	seed := &baseline.Baseline{AppName: "payments", Status: policy.StatusPass, RiskScore: 2}
	if err := store.Put(context.Background(), "payments", seed); err != nil {
		t.Fatalf("seeding baseline: %v", err)
	}

	// Two low findings: score 4, delta 2 within tolerance 5.
	outcome, _, err := runGate(t, testConfig(), store, doc(low("a"), low("b")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !outcome.Accepted {
		t.Error("run within tolerance should be accepted")
	}
	if outcome.BaselineAction != events.BaselineUpdated {
		t.Errorf("baseline action = %q, want updated", outcome.BaselineAction)
	}

	b, err := store.Get(context.Background(), "payments")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.RiskScore != 4 {
		t.Errorf("baseline score = %d, want rolled forward to 4", b.RiskScore)
	}
}

func TestRunFailOnWarn(t *testing.T) {
	cfg := testConfig()
	cfg.FailOnWarn = true

	// Four medium findings: WARN by volume.
	outcome, _, err := runGate(t, cfg, fileStore(t), doc(medium("a"), medium("b"), medium("c"), medium("d")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Evaluation.Status != policy.StatusWarn {
		t.Fatalf("status = %s, want WARN", outcome.Evaluation.Status)
	}
	if outcome.Accepted {
		t.Error("WARN with fail-on-warn must not be accepted")
	}
	if outcome.ExitCode != exitcode.GateFailed {
		t.Errorf("exit code = %d, want 1", outcome.ExitCode)
	}
	if outcome.BaselineAction != events.BaselineKept {
		t.Errorf("baseline action = %q, want kept", outcome.BaselineAction)
	}
}

func TestRunWarnAcceptedByDefault(t *testing.T) {
	outcome, _, err := runGate(t, testConfig(), fileStore(t), doc(medium("a"), medium("b"), medium("c"), medium("d")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Evaluation.Status != policy.StatusWarn {
		t.Fatalf("status = %s, want WARN", outcome.Evaluation.Status)
	}
	if !outcome.Accepted {
		t.Error("WARN without fail-on-warn should be accepted")
	}
	if outcome.ExitCode != exitcode.Success {
		t.Errorf("exit code = %d, want 0", outcome.ExitCode)
	}
	if outcome.BaselineAction != events.BaselineUpdated {
		t.Errorf("baseline action = %q, want updated", outcome.BaselineAction)
	}
}

func TestRunSkipRegression(t *testing.T) {
	cfg := testConfig()
	cfg.SkipRegression = true

	outcome, sink, err := runGate(t, cfg, fileStore(t), doc(low("a")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Regression != nil {
		t.Errorf("guard report = %+v, want nil", outcome.Regression)
	}
	if len(sink.byType(events.EventTypeRegression)) != 0 {
		t.Error("regression event emitted despite skip")
	}
	if outcome.BaselineAction != events.BaselineUpdated {
		t.Errorf("baseline action = %q, want updated", outcome.BaselineAction)
	}
}

func TestRunNoBaselineUpdate(t *testing.T) {
	cfg := testConfig()
	cfg.NoBaselineUpdate = true
	store := fileStore(t)

	outcome, _, err := runGate(t, cfg, store, doc(low("a")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.BaselineAction != events.BaselineSkipped {
		t.Errorf("baseline action = %q, want skipped", outcome.BaselineAction)
	}
	if _, err := store.Get(context.Background(), "payments"); !errors.Is(err, baseline.ErrBaselineNotFound) {
		t.Errorf("baseline written despite -no-baseline-update, got %v", err)
	}
}

func TestRunInvalidSeverity(t *testing.T) {
	d := doc(finding.Finding{Name: "odd", Severity: "catastrophic", Source: "zap"})
	outcome, sink, err := runGate(t, testConfig(), fileStore(t), d)
	if err == nil {
		t.Fatal("expected error for invalid severity")
	}
	if !errors.Is(err, finding.ErrInvalidSeverity) {
		t.Errorf("error = %v, want ErrInvalidSeverity", err)
	}
	if outcome.ExitCode != exitcode.Input {
		t.Errorf("exit code = %d, want 4", outcome.ExitCode)
	}
	if outcome.Evaluation != nil {
		t.Error("no envelope expected for an unjudgeable run")
	}

	errs := sink.byType(events.EventTypeError)
	if len(errs) != 1 {
		t.Fatalf("error events = %d, want 1", len(errs))
	}
	if ev := errs[0].(*events.ErrorEvent); !ev.Fatal || ev.Stage != "evaluation" {
		t.Errorf("error event = %+v", ev)
	}
}

func TestRunBaselineUnavailable(t *testing.T) {
	outcome, _, err := runGate(t, testConfig(), brokenStore{}, doc(low("a")))
	if err == nil {
		t.Fatal("expected error for unreachable store")
	}
	if !errors.Is(err, baseline.ErrBaselineUnavailable) {
		t.Errorf("error = %v, want ErrBaselineUnavailable", err)
	}
	if outcome.ExitCode != exitcode.Baseline {
		t.Errorf("exit code = %d, want 5", outcome.ExitCode)
	}
}

func TestRunNoStore(t *testing.T) {
	outcome, sink, err := runGate(t, testConfig(), nil, doc(low("a")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Regression != nil {
		t.Error("no store should mean no guard report")
	}
	if outcome.BaselineAction != events.BaselineSkipped {
		t.Errorf("baseline action = %q, want skipped", outcome.BaselineAction)
	}
	if len(sink.byType(events.EventTypeRegression)) != 0 {
		t.Error("regression event without a store")
	}
}

func TestRunSummaryEvent(t *testing.T) {
	_, sink, err := runGate(t, testConfig(), fileStore(t), doc(critical("RCE")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sums := sink.byType(events.EventTypeSummary)
	if len(sums) != 1 {
		t.Fatalf("summary events = %d, want 1", len(sums))
	}
	s := sums[0].(*events.SummaryEvent)
	if s.Verdict.Status != policy.StatusFail {
		t.Errorf("verdict = %s, want FAIL", s.Verdict.Status)
	}
	if s.Verdict.Rule != policy.RuleCriticalFindings {
		t.Errorf("rule = %q, want %q", s.Verdict.Rule, policy.RuleCriticalFindings)
	}
	if s.Verdict.RiskScore != 10 {
		t.Errorf("risk score = %d, want 10", s.Verdict.RiskScore)
	}
	if s.ExitCode != int(exitcode.GateFailed) {
		t.Errorf("exit code = %d, want 1", s.ExitCode)
	}
	if s.Policy.MediumCountMax != 3 || s.Policy.RiskScoreMax != 15 {
		t.Errorf("policy info = %+v", s.Policy)
	}
	if s.Regression == nil || !s.Regression.FirstRun {
		t.Errorf("summary regression info = %+v", s.Regression)
	}

	comps := sink.byType(events.EventTypeComplete)
	if len(comps) != 1 {
		t.Fatalf("complete events = %d, want 1", len(comps))
	}
	c := comps[0].(*events.CompleteEvent)
	if c.Success {
		t.Error("FAIL run reported success")
	}
	if c.Summary == nil {
		t.Error("complete event missing summary")
	}
}
