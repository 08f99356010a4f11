package hooks

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/scoring"
)

// =============================================================================
// Test Fixtures
// =============================================================================

const testRunID = "run-test-123"

func newTestStartEvent(totalFindings int) *events.StartEvent {
	return events.NewStartEvent(testRunID, "payments", "default", totalFindings, events.GateConfig{
		InputPath:      "findings.json",
		Tolerance:      5,
		UpdateBaseline: true,
		Formats:        []string{"json"},
	})
}

func newTestFindingEvent(severity events.Severity, weight int) *events.FindingEvent {
	return events.NewFindingEvent(testRunID, "payments", 0, finding.Finding{
		Name:     "SQL Injection",
		Severity: severity,
		Source:   "zap",
		Rule:     "40018",
	}, weight)
}

func newTestEvaluationEvent(status policy.Status, score int) *events.EvaluationEvent {
	return events.NewEvaluationEvent(testRunID, "payments", &policy.Result{
		Status:         status,
		RiskScore:      score,
		SeverityCounts: scoring.Counts{High: 1, Low: 1},
		TotalFindings:  2,
	}, policy.RuleHighFindings)
}

func newTestViolationEvent(tier events.Severity, count int) *events.ViolationEvent {
	return events.NewViolationEvent(testRunID, "payments", policy.StatusFail,
		policy.RuleHighFindings, tier, "1 high severity finding(s) detected", count)
}

func newTestRegressionEvent(accepted bool, baselineScore, currentScore int) *events.RegressionEvent {
	summary := "risk score within tolerance"
	if !accepted {
		summary = "risk score regression detected"
	}
	return events.NewRegressionEvent(testRunID, "payments", accepted, false,
		baselineScore, currentScore, currentScore-baselineScore, "5", summary)
}

func newTestBaselineEvent(action events.BaselineAction) *events.BaselineEvent {
	return events.NewBaselineEvent(testRunID, "payments", action, 9, "")
}

func newTestErrorEvent(fatal bool) *events.ErrorEvent {
	return events.NewErrorEvent(testRunID, "evaluation", "input", "unknown severity: extreme", fatal)
}

func newTestSummaryEvent(status policy.Status, score int) *events.SummaryEvent {
	started := time.Now().Add(-2 * time.Second)
	return &events.SummaryEvent{
		BaseEvent: events.BaseEvent{
			Type: events.EventTypeSummary,
			Time: time.Now(),
			Run:  testRunID,
		},
		Version: "1.2.0",
		AppName: "payments",
		Verdict: events.VerdictInfo{
			Status:    status,
			Rule:      policy.RuleHighFindings,
			RiskScore: score,
		},
		Totals:          scoring.Counts{High: 1, Low: 1},
		TotalFindings:   2,
		Violations:      []string{"1 high severity finding(s) detected"},
		Recommendations: []string{"Resolve high severity findings before release"},
		Policy: events.PolicyInfo{
			Reference:      "default",
			MediumCountMax: 3,
			RiskScoreMax:   15,
		},
		Timing: events.SummaryTiming{
			StartedAt:   started,
			CompletedAt: time.Now(),
			DurationSec: 2.0,
		},
		ExitCode:   1,
		ExitReason: "gate failed",
	}
}

func newTestCompleteEvent(success bool) *events.CompleteEvent {
	code := 0
	reason := "success"
	if !success {
		code = 1
		reason = "gate failed"
	}
	return &events.CompleteEvent{
		BaseEvent: events.BaseEvent{
			Type: events.EventTypeComplete,
			Time: time.Now(),
			Run:  testRunID,
		},
		Success:    success,
		ExitCode:   code,
		ExitReason: reason,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// HistoryHook Tests
// =============================================================================

func TestHistoryHook_SavesSummary(t *testing.T) {
	hook, err := NewHistoryHook(HistoryHookOptions{
		StorePath: t.TempDir(),
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create hook: %v", err)
	}

	summary := newTestSummaryEvent(policy.StatusFail, 9)
	if err := hook.OnEvent(context.Background(), summary); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	rec, err := hook.store.Get(testRunID)
	if err != nil {
		t.Fatalf("expected saved record: %v", err)
	}
	if rec.AppName != "payments" {
		t.Errorf("expected app 'payments', got %q", rec.AppName)
	}
	if rec.Status != policy.StatusFail {
		t.Errorf("expected status FAIL, got %v", rec.Status)
	}
	if rec.RiskScore != 9 {
		t.Errorf("expected risk score 9, got %d", rec.RiskScore)
	}
	if rec.ViolationCount != 1 {
		t.Errorf("expected 1 violation, got %d", rec.ViolationCount)
	}
	if rec.Duration != 2000 {
		t.Errorf("expected duration 2000ms, got %d", rec.Duration)
	}
}

func TestHistoryHook_NoRegressionBlockRecordsAccepted(t *testing.T) {
	hook, err := NewHistoryHook(HistoryHookOptions{
		StorePath: t.TempDir(),
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create hook: %v", err)
	}

	// Summary without a regression block: the guard never ran.
	summary := newTestSummaryEvent(policy.StatusPass, 3)
	if err := hook.OnEvent(context.Background(), summary); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	rec, err := hook.store.Get(testRunID)
	if err != nil {
		t.Fatalf("expected saved record: %v", err)
	}
	if !rec.RegressionAccepted {
		t.Error("expected accepted=true when no regression guard ran")
	}
	if rec.FirstRun {
		t.Error("expected first_run=false when no regression guard ran")
	}
}

func TestHistoryHook_RegressionBlockCarriedOver(t *testing.T) {
	hook, err := NewHistoryHook(HistoryHookOptions{
		StorePath: t.TempDir(),
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create hook: %v", err)
	}

	summary := newTestSummaryEvent(policy.StatusPass, 12)
	summary.Regression = &events.RegressionInfo{
		Accepted:      false,
		BaselineScore: 2,
		CurrentScore:  12,
		Delta:         10,
		Tolerance:     "5",
		Summary:       "risk score regression detected",
	}
	if err := hook.OnEvent(context.Background(), summary); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	rec, err := hook.store.Get(testRunID)
	if err != nil {
		t.Fatalf("expected saved record: %v", err)
	}
	if rec.RegressionAccepted {
		t.Error("expected rejected regression to be recorded")
	}
}

func TestHistoryHook_IgnoresOtherEvents(t *testing.T) {
	hook, err := NewHistoryHook(HistoryHookOptions{
		StorePath: t.TempDir(),
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create hook: %v", err)
	}

	if err := hook.OnEvent(context.Background(), newTestEvaluationEvent(policy.StatusPass, 3)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}
	if err := hook.OnEvent(context.Background(), newTestCompleteEvent(true)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	records, err := hook.store.ListAll(10)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records for non-summary events, got %d", len(records))
	}
}

func TestHistoryHook_TagsAttached(t *testing.T) {
	hook, err := NewHistoryHook(HistoryHookOptions{
		StorePath: t.TempDir(),
		Tags:      []string{"nightly", "release-7.2"},
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create hook: %v", err)
	}

	if err := hook.OnEvent(context.Background(), newTestSummaryEvent(policy.StatusPass, 3)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	rec, err := hook.store.Get(testRunID)
	if err != nil {
		t.Fatalf("expected saved record: %v", err)
	}
	if len(rec.Tags) != 2 || rec.Tags[0] != "nightly" {
		t.Errorf("expected tags to be attached, got %v", rec.Tags)
	}
}

func TestHistoryHook_EventTypes(t *testing.T) {
	hook, err := NewHistoryHook(HistoryHookOptions{
		StorePath: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create hook: %v", err)
	}

	types := hook.EventTypes()
	if len(types) != 1 || types[0] != events.EventTypeSummary {
		t.Errorf("expected [summary], got %v", types)
	}
}

func TestHistoryHook_SaveFailureDoesNotAbortRun(t *testing.T) {
	rec := &logRecorder{}
	dir := filepath.Join(t.TempDir(), "history")
	hook, err := NewHistoryHook(HistoryHookOptions{
		StorePath: dir,
		Logger:    slog.New(rec),
	})
	if err != nil {
		t.Fatalf("failed to create hook: %v", err)
	}

	// Replace the store directory with a regular file so the index
	// write fails with ENOTDIR regardless of user privileges.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("failed to remove store dir: %v", err)
	}
	if err := os.WriteFile(dir, []byte("not a directory"), 0644); err != nil {
		t.Fatalf("failed to block store path: %v", err)
	}

	// A save error is logged, never returned: history loss must not
	// change the gate verdict.
	if err := hook.OnEvent(context.Background(), newTestSummaryEvent(policy.StatusPass, 3)); err != nil {
		t.Fatalf("expected nil error on save failure, got %v", err)
	}

	found := false
	for _, r := range rec.getRecords() {
		if strings.Contains(r.Message, "failed to save run record") {
			if r.Level != slog.LevelWarn {
				t.Errorf("expected Warn level, got %v", r.Level)
			}
			found = true
		}
	}
	if !found {
		t.Error("expected 'failed to save run record' log message")
	}
}
