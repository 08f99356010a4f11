package hooks

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
)

// =============================================================================
// logRecorder — captures slog.Record entries for assertions
// =============================================================================

type logRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (r *logRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *logRecorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *logRecorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *logRecorder) WithGroup(string) slog.Handler      { return r }

func (r *logRecorder) getRecords() []slog.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	dst := make([]slog.Record, len(r.records))
	copy(dst, r.records)
	return dst
}

// lastRecord fails the test unless exactly one record was captured.
func (r *logRecorder) lastRecord(t *testing.T) slog.Record {
	t.Helper()
	records := r.getRecords()
	if len(records) != 1 {
		t.Fatalf("expected 1 log record, got %d", len(records))
	}
	return records[0]
}

// hasAttr reports whether the record carries an attribute with the key.
func hasAttr(rec slog.Record, key string) bool {
	found := false
	rec.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			found = true
			return false
		}
		return true
	})
	return found
}

// =============================================================================
// orDefault tests
// =============================================================================

func TestOrDefault_NilReturnsDefault(t *testing.T) {
	result := orDefault(nil)
	if result != slog.Default() {
		t.Error("expected slog.Default() for nil input")
	}
}

func TestOrDefault_NonNilReturnsInput(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	result := orDefault(custom)
	if result != custom {
		t.Error("expected custom logger to be returned")
	}
}

// =============================================================================
// LoggerHook tests
// =============================================================================

func loggerHookWithRecorder() (*LoggerHook, *logRecorder) {
	rec := &logRecorder{}
	return NewLoggerHook(slog.New(rec)), rec
}

func TestLoggerHook_StartEventLogsInfo(t *testing.T) {
	hook, rec := loggerHookWithRecorder()

	if err := hook.OnEvent(context.Background(), newTestStartEvent(3)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	r := rec.lastRecord(t)
	if r.Message != "gate run started" {
		t.Errorf("expected 'gate run started', got %q", r.Message)
	}
	if r.Level != slog.LevelInfo {
		t.Errorf("expected Info level, got %v", r.Level)
	}
	if !hasAttr(r, "run_id") || !hasAttr(r, "app") {
		t.Error("expected run_id and app attributes")
	}
}

func TestLoggerHook_FindingEventLogsDebug(t *testing.T) {
	hook, rec := loggerHookWithRecorder()

	if err := hook.OnEvent(context.Background(), newTestFindingEvent(events.SeverityHigh, 7)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	r := rec.lastRecord(t)
	if r.Level != slog.LevelDebug {
		t.Errorf("expected Debug level for finding, got %v", r.Level)
	}
	if !hasAttr(r, "severity") || !hasAttr(r, "weight") {
		t.Error("expected severity and weight attributes")
	}
}

func TestLoggerHook_EvaluationLevelFollowsVerdict(t *testing.T) {
	tests := []struct {
		name   string
		status policy.Status
		want   slog.Level
	}{
		{"pass logs info", policy.StatusPass, slog.LevelInfo},
		{"warn logs warn", policy.StatusWarn, slog.LevelWarn},
		{"fail logs warn", policy.StatusFail, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook, rec := loggerHookWithRecorder()

			if err := hook.OnEvent(context.Background(), newTestEvaluationEvent(tt.status, 9)); err != nil {
				t.Fatalf("OnEvent failed: %v", err)
			}

			r := rec.lastRecord(t)
			if r.Message != "verdict computed" {
				t.Errorf("expected 'verdict computed', got %q", r.Message)
			}
			if r.Level != tt.want {
				t.Errorf("expected %v level, got %v", tt.want, r.Level)
			}
		})
	}
}

func TestLoggerHook_ViolationLogsWarn(t *testing.T) {
	hook, rec := loggerHookWithRecorder()

	if err := hook.OnEvent(context.Background(), newTestViolationEvent(events.SeverityHigh, 1)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	r := rec.lastRecord(t)
	if r.Message != "policy violation" {
		t.Errorf("expected 'policy violation', got %q", r.Message)
	}
	if r.Level != slog.LevelWarn {
		t.Errorf("expected Warn level, got %v", r.Level)
	}
	if !hasAttr(r, "message") {
		t.Error("expected message attribute")
	}
}

func TestLoggerHook_RegressionLevelFollowsAcceptance(t *testing.T) {
	hook, rec := loggerHookWithRecorder()

	if err := hook.OnEvent(context.Background(), newTestRegressionEvent(true, 2, 4)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}
	if err := hook.OnEvent(context.Background(), newTestRegressionEvent(false, 2, 12)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	records := rec.getRecords()
	if len(records) != 2 {
		t.Fatalf("expected 2 log records, got %d", len(records))
	}
	if records[0].Level != slog.LevelInfo {
		t.Errorf("expected Info for accepted regression, got %v", records[0].Level)
	}
	if records[1].Level != slog.LevelWarn {
		t.Errorf("expected Warn for rejected regression, got %v", records[1].Level)
	}
}

func TestLoggerHook_BaselineActionInMessage(t *testing.T) {
	hook, rec := loggerHookWithRecorder()

	if err := hook.OnEvent(context.Background(), newTestBaselineEvent(events.BaselineUpdated)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	r := rec.lastRecord(t)
	if r.Message != "baseline updated" {
		t.Errorf("expected 'baseline updated', got %q", r.Message)
	}
}

func TestLoggerHook_ErrorLevelFollowsFatal(t *testing.T) {
	hook, rec := loggerHookWithRecorder()

	if err := hook.OnEvent(context.Background(), newTestErrorEvent(false)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}
	if err := hook.OnEvent(context.Background(), newTestErrorEvent(true)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	records := rec.getRecords()
	if len(records) != 2 {
		t.Fatalf("expected 2 log records, got %d", len(records))
	}
	if records[0].Level != slog.LevelWarn {
		t.Errorf("expected Warn for recoverable error, got %v", records[0].Level)
	}
	if records[1].Level != slog.LevelError {
		t.Errorf("expected Error for fatal error, got %v", records[1].Level)
	}
	if !hasAttr(records[1], "error") {
		t.Error("expected error attribute")
	}
}

func TestLoggerHook_SummaryLogsExitCode(t *testing.T) {
	hook, rec := loggerHookWithRecorder()

	if err := hook.OnEvent(context.Background(), newTestSummaryEvent(policy.StatusFail, 9)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	r := rec.lastRecord(t)
	if r.Message != "gate run summary" {
		t.Errorf("expected 'gate run summary', got %q", r.Message)
	}
	if !hasAttr(r, "exit_code") || !hasAttr(r, "risk_score") {
		t.Error("expected exit_code and risk_score attributes")
	}
}

func TestLoggerHook_CompleteLogsDebug(t *testing.T) {
	hook, rec := loggerHookWithRecorder()

	if err := hook.OnEvent(context.Background(), newTestCompleteEvent(true)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	r := rec.lastRecord(t)
	if r.Level != slog.LevelDebug {
		t.Errorf("expected Debug level for complete, got %v", r.Level)
	}
}

func TestLoggerHook_ReceivesAllEventTypes(t *testing.T) {
	hook := NewLoggerHook(discardLogger())
	if types := hook.EventTypes(); types != nil {
		t.Errorf("expected nil (all events), got %v", types)
	}
}

func TestLoggerHook_NilLoggerDefaults(t *testing.T) {
	hook := NewLoggerHook(nil)
	if hook.logger == nil {
		t.Fatal("expected defaulted logger")
	}

	// Must not panic with the default logger.
	if err := hook.OnEvent(context.Background(), newTestCompleteEvent(true)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}
}
