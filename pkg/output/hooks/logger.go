package hooks

import (
	"context"
	"log/slog"

	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*LoggerHook)(nil)

// LoggerHook logs every gate event through slog. The log level follows
// the event: findings and completions are Debug, violations Warn,
// fatal errors Error, everything else Info.
type LoggerHook struct {
	logger *slog.Logger
}

// NewLoggerHook creates a logger hook. A nil logger falls back to
// slog.Default().
func NewLoggerHook(logger *slog.Logger) *LoggerHook {
	return &LoggerHook{logger: orDefault(logger)}
}

// OnEvent logs the event with attributes matching its JSON shape.
func (h *LoggerHook) OnEvent(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case *events.StartEvent:
		h.logger.LogAttrs(ctx, slog.LevelInfo, "gate run started",
			slog.String("run_id", e.RunID()),
			slog.String("app", e.AppName),
			slog.String("policy", e.PolicyReference),
			slog.Int("findings", e.TotalFindings),
		)
	case *events.FindingEvent:
		h.logger.LogAttrs(ctx, slog.LevelDebug, "finding",
			slog.String("app", e.AppName),
			slog.Int("index", e.Index),
			slog.String("severity", string(e.Finding.Severity)),
			slog.String("source", e.Finding.Source),
			slog.String("rule", e.Finding.Rule),
			slog.Int("weight", e.Weight),
		)
	case *events.EvaluationEvent:
		h.logger.LogAttrs(ctx, h.verdictLevel(e.Status), "verdict computed",
			slog.String("app", e.AppName),
			slog.String("status", string(e.Status)),
			slog.String("rule", e.Rule),
			slog.Int("risk_score", e.RiskScore),
			slog.Int("findings", e.TotalFindings),
		)
	case *events.ViolationEvent:
		h.logger.LogAttrs(ctx, slog.LevelWarn, "policy violation",
			slog.String("app", e.AppName),
			slog.String("tier", string(e.Tier)),
			slog.String("priority", e.Priority),
			slog.String("message", e.Message),
		)
	case *events.RegressionEvent:
		level := slog.LevelInfo
		if !e.Accepted {
			level = slog.LevelWarn
		}
		h.logger.LogAttrs(ctx, level, "regression check",
			slog.String("app", e.AppName),
			slog.Bool("accepted", e.Accepted),
			slog.Bool("first_run", e.FirstRun),
			slog.Int("baseline_score", e.BaselineScore),
			slog.Int("current_score", e.CurrentScore),
			slog.Int("delta", e.Delta),
			slog.String("tolerance", e.Tolerance),
		)
	case *events.BaselineEvent:
		h.logger.LogAttrs(ctx, slog.LevelInfo, "baseline "+string(e.Action),
			slog.String("app", e.AppName),
			slog.Int("risk_score", e.RiskScore),
			slog.String("reason", e.Reason),
		)
	case *events.ErrorEvent:
		level := slog.LevelWarn
		if e.Fatal {
			level = slog.LevelError
		}
		h.logger.LogAttrs(ctx, level, "gate error",
			slog.String("stage", e.Stage),
			slog.String("type", e.ErrorType),
			slog.String("error", e.Message),
		)
	case *events.SummaryEvent:
		h.logger.LogAttrs(ctx, slog.LevelInfo, "gate run summary",
			slog.String("app", e.AppName),
			slog.String("status", string(e.Verdict.Status)),
			slog.String("rule", e.Verdict.Rule),
			slog.Int("risk_score", e.Verdict.RiskScore),
			slog.Int("violations", len(e.Violations)),
			slog.Int("exit_code", e.ExitCode),
			slog.String("exit_reason", e.ExitReason),
		)
	case *events.CompleteEvent:
		h.logger.LogAttrs(ctx, slog.LevelDebug, "gate run complete",
			slog.Bool("success", e.Success),
			slog.Int("exit_code", e.ExitCode),
		)
	}
	return nil
}

// verdictLevel maps a verdict to a log level. PASS logs at Info; WARN
// and FAIL log at Warn so CI log scanners surface them.
func (h *LoggerHook) verdictLevel(status policy.Status) slog.Level {
	if status == policy.StatusPass {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

// EventTypes returns nil so the hook receives every event.
func (h *LoggerHook) EventTypes() []events.EventType { return nil }

// orDefault returns l if non-nil, otherwise slog.Default().
func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
