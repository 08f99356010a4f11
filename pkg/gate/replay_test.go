package gate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
)

func replay(t *testing.T, e *Evaluation) *captureWriter {
	t.Helper()
	sink := &captureWriter{}
	disp := dispatcher.New(dispatcher.Config{})
	disp.RegisterWriter(sink)
	if err := e.Replay(context.Background(), disp, policy.Default()); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	return sink
}

func TestReplayEventStream(t *testing.T) {
	outcome, _, err := runGate(t, testConfig(), fileStore(t), doc(critical("RCE"), low("Banner")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	sink := replay(t, outcome.Evaluation)

	counts := map[events.EventType]int{
		events.EventTypeStart:      1,
		events.EventTypeFinding:    2,
		events.EventTypeEvaluation: 1,
		events.EventTypeViolation:  1,
		events.EventTypeRegression: 1,
		events.EventTypeSummary:    1,
		events.EventTypeComplete:   1,
	}
	for typ, want := range counts {
		if got := len(sink.byType(typ)); got != want {
			t.Errorf("%s events = %d, want %d", typ, got, want)
		}
	}

	s := sink.byType(events.EventTypeSummary)[0].(*events.SummaryEvent)
	if s.Verdict.Status != policy.StatusFail || s.Verdict.RiskScore != 12 {
		t.Errorf("verdict = %s/%d, want FAIL/12", s.Verdict.Status, s.Verdict.RiskScore)
	}
	if s.Verdict.Rule != policy.RuleCriticalFindings {
		t.Errorf("rule = %q, want %q", s.Verdict.Rule, policy.RuleCriticalFindings)
	}
	if s.ExitCode != int(exitcode.GateFailed) {
		t.Errorf("exit code = %d, want 1", s.ExitCode)
	}

	c := sink.byType(events.EventTypeComplete)[0].(*events.CompleteEvent)
	if c.Success || c.Summary == nil {
		t.Errorf("complete = success %v, summary %v", c.Success, c.Summary)
	}
}

func TestReplayPreservesRunIdentity(t *testing.T) {
	outcome, _, err := runGate(t, testConfig(), fileStore(t), doc(low("Banner")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	e := outcome.Evaluation
	sink := replay(t, e)

	s := sink.byType(events.EventTypeSummary)[0].(*events.SummaryEvent)
	if s.Run != e.RunID {
		t.Errorf("summary run = %q, want %q", s.Run, e.RunID)
	}
	if !s.Timing.StartedAt.Equal(e.AnalysisTime) {
		t.Errorf("started at = %v, want analysis time %v", s.Timing.StartedAt, e.AnalysisTime)
	}
	if s.Policy.Reference != e.PolicyReference {
		t.Errorf("policy reference = %q, want %q", s.Policy.Reference, e.PolicyReference)
	}
}

func TestReplayRejectedGuardExitCode(t *testing.T) {
	pol := policy.Default()
	result, err := pol.Evaluate(doc(low("Banner")).Findings)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	e := NewEvaluation("payments", result, doc(low("Banner")).Findings, pol.Reference(), "run-9", time.Now().UTC())
	e.Regression = &baseline.RegressionReport{
		Accepted:      false,
		BaselineScore: 2,
		CurrentScore:  30,
		Delta:         28,
		Tolerance:     5,
		Summary:       "Risk score increased by 28 which exceeds the threshold of 5.",
	}

	sink := replay(t, e)
	c := sink.byType(events.EventTypeComplete)[0].(*events.CompleteEvent)
	if c.ExitCode != int(exitcode.Regression) {
		t.Errorf("exit code = %d, want 2", c.ExitCode)
	}
	if got := len(sink.byType(events.EventTypeRegression)); got != 1 {
		t.Errorf("regression events = %d, want 1", got)
	}
}

func TestReplaySavedEnvelope(t *testing.T) {
	outcome, _, err := runGate(t, testConfig(), fileStore(t), doc(medium("CSP missing")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	path := filepath.Join(t.TempDir(), "evaluation.json")
	if err := outcome.Evaluation.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadEvaluation(path)
	if err != nil {
		t.Fatalf("LoadEvaluation: %v", err)
	}

	sink := replay(t, loaded)
	s := sink.byType(events.EventTypeSummary)[0].(*events.SummaryEvent)
	if s.Verdict.Status != policy.StatusPass || s.Verdict.RiskScore != 4 {
		t.Errorf("verdict = %s/%d, want PASS/4", s.Verdict.Status, s.Verdict.RiskScore)
	}
	if s.ExitCode != int(exitcode.Success) {
		t.Errorf("exit code = %d, want 0", s.ExitCode)
	}
}

func TestReplayNilDispatcher(t *testing.T) {
	e := &Evaluation{AppName: "payments", Status: policy.StatusPass}
	if err := e.Replay(context.Background(), nil, nil); err != nil {
		t.Errorf("Replay with nil dispatcher: %v", err)
	}
}
