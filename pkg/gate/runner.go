package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/config"
	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
)

// Options wires the runner's collaborators. Nil fields degrade
// gracefully: no store skips the guard, no dispatcher drops events.
type Options struct {
	// Policy is the policy to judge runs by. Nil means defaults.
	Policy *policy.Policy

	// Baselines is the store the guard reads and accepted runs write.
	Baselines baseline.Store

	// Dispatcher receives the run's event stream.
	Dispatcher *dispatcher.Dispatcher

	// Logger receives diagnostics. Nil means slog.Default.
	Logger *slog.Logger
}

// Runner executes gate runs against a fixed configuration.
type Runner struct {
	cfg    *config.Config
	pol    *policy.Policy
	store  baseline.Store
	disp   *dispatcher.Dispatcher
	logger *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg *config.Config, opts Options) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	pol := opts.Policy
	if pol == nil {
		pol = policy.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:    cfg,
		pol:    pol,
		store:  opts.Baselines,
		disp:   opts.Dispatcher,
		logger: logger,
	}
}

// Outcome is what a gate run leaves behind: the envelope, the guard
// report, the acceptance decision, and the exit outcome.
type Outcome struct {
	// Evaluation is the run artifact. Nil when evaluation never ran.
	Evaluation *Evaluation

	// Regression is the guard report. Nil when the guard was skipped.
	Regression *baseline.RegressionReport

	// Accepted is the overall acceptance: the verdict was acceptable
	// under the configured policy AND the guard accepted the run.
	Accepted bool

	// BaselineAction records what happened to the stored baseline.
	BaselineAction events.BaselineAction

	ExitCode   exitcode.Code
	ExitReason string
	Duration   time.Duration
}

// Run executes the full gate pipeline over a findings document.
//
// A non-nil error means the run could not be judged: the findings were
// invalid or the baseline store was unavailable. The outcome is still
// returned with the exit code describing the failure, so callers exit
// correctly either way.
func (r *Runner) Run(ctx context.Context, doc *finding.Document) (*Outcome, error) {
	started := time.Now().UTC()
	runID := uuid.NewString()
	exits := exitcode.New(exitcode.Config{FailOnWarn: r.cfg.FailOnWarn})

	app := r.cfg.AppName
	if app == "" {
		app = doc.AppName
	}

	r.emit(ctx, events.NewStartEvent(runID, app, r.pol.Reference(), len(doc.Findings), r.gateConfig()))

	result, err := r.pol.Evaluate(doc.Findings)
	if err != nil {
		return r.abort(ctx, exits, runID, started, "evaluation", err)
	}
	decision := r.pol.Decide(result.SeverityCounts, result.RiskScore)

	weights := r.pol.Weights.Resolve()
	for i, f := range doc.Findings {
		r.emit(ctx, events.NewFindingEvent(runID, app, i, f, weights.Get(f.Severity)))
	}
	r.emit(ctx, events.NewEvaluationEvent(runID, app, result, decision.Rule))
	r.emitViolations(ctx, runID, app, result, decision.Rule)

	var report *baseline.RegressionReport
	if r.store != nil && !r.cfg.SkipRegression {
		tol := r.cfg.GuardTolerance()
		report, err = baseline.CheckRegression(ctx, r.store, app, result, tol)
		if err != nil {
			return r.abort(ctx, exits, runID, started, "regression", err)
		}
		r.emit(ctx, events.NewRegressionEvent(runID, app,
			report.Accepted, report.FirstRun,
			report.BaselineScore, report.CurrentScore, report.Delta,
			tol.String(), report.Summary))
		exits.RecordRegression(report)
	}
	exits.RecordStatus(result.Status)

	accepted := r.statusAcceptable(result.Status) && (report == nil || report.Accepted)
	action := r.updateBaseline(ctx, exits, runID, app, accepted, result, doc.Findings)

	code, reason := exits.ExitCode()
	completed := time.Now().UTC()

	eval := NewEvaluation(app, result, doc.Findings, r.pol.Reference(), runID, started)
	eval.Regression = report

	summary := r.buildSummary(runID, app, result, decision, report, started, completed, code, reason)
	r.emit(ctx, summary)
	r.emit(ctx, &events.CompleteEvent{
		BaseEvent:  events.BaseEvent{Type: events.EventTypeComplete, Time: completed, Run: runID},
		Success:    code == exitcode.Success,
		ExitCode:   int(code),
		ExitReason: reason,
		Summary:    summary,
	})

	return &Outcome{
		Evaluation:     eval,
		Regression:     report,
		Accepted:       accepted,
		BaselineAction: action,
		ExitCode:       code,
		ExitReason:     reason,
		Duration:       completed.Sub(started),
	}, nil
}

// statusAcceptable applies the caller's WARN policy to the verdict.
func (r *Runner) statusAcceptable(status policy.Status) bool {
	switch status {
	case policy.StatusFail:
		return false
	case policy.StatusWarn:
		return !r.cfg.FailOnWarn
	default:
		return true
	}
}

// updateBaseline persists the run as the new baseline when the run was
// accepted and updates are enabled. A failed write surfaces as a
// baseline error on the exit code, not a crash.
func (r *Runner) updateBaseline(ctx context.Context, exits *exitcode.Manager, runID, app string, accepted bool, result *policy.Result, findings []finding.Finding) events.BaselineAction {
	action := events.BaselineSkipped
	reason := ""

	switch {
	case r.store == nil:
		reason = "no baseline store configured"
	case r.cfg.NoBaselineUpdate:
		reason = "baseline updates disabled"
	case !accepted:
		action = events.BaselineKept
		reason = "run not accepted"
	default:
		b := baseline.FromResult(app, result, runID, finding.Fingerprint(findings))
		if err := r.store.Put(ctx, app, b); err != nil {
			r.logger.Warn("baseline write failed", "app", app, "error", err)
			exits.RecordError(err)
			r.emit(ctx, events.NewErrorEvent(runID, "baseline",
				exitcode.CodeString(exitcode.Classify(err)), err.Error(), false))
			action = events.BaselineKept
			reason = "baseline write failed"
		} else {
			action = events.BaselineUpdated
		}
	}

	r.emit(ctx, events.NewBaselineEvent(runID, app, action, result.RiskScore, reason))
	return action
}

// abort ends a run that could not be judged. It emits a fatal error
// event and a failed complete event, and returns the outcome alongside
// the error.
func (r *Runner) abort(ctx context.Context, exits *exitcode.Manager, runID string, started time.Time, stage string, err error) (*Outcome, error) {
	exits.RecordError(err)
	code, reason := exits.ExitCode()
	completed := time.Now().UTC()

	r.emit(ctx, events.NewErrorEvent(runID, stage,
		exitcode.CodeString(exitcode.Classify(err)), err.Error(), true))
	r.emit(ctx, &events.CompleteEvent{
		BaseEvent:  events.BaseEvent{Type: events.EventTypeComplete, Time: completed, Run: runID},
		Success:    false,
		ExitCode:   int(code),
		ExitReason: reason,
	})

	return &Outcome{
		ExitCode:   code,
		ExitReason: reason,
		Duration:   completed.Sub(started),
	}, err
}

// emitViolations dispatches one violation event per violation message.
func (r *Runner) emitViolations(ctx context.Context, runID, app string, result *policy.Result, rule string) {
	for _, ev := range violationEvents(runID, app, result, rule, r.pol) {
		r.emit(ctx, ev)
	}
}

// violationEvents replays the violation predicates so each violation
// event carries its tier and count. The predicate order mirrors the
// policy's violation rendering, so messages and details line up.
func violationEvents(runID, app string, result *policy.Result, rule string, pol *policy.Policy) []*events.ViolationEvent {
	c := result.SeverityCounts
	score := result.RiskScore
	mediumMax := pol.MediumCountMax()
	scoreMax := pol.RiskScoreMax()

	type detail struct {
		tier  events.Severity
		count int
	}
	details := make([]detail, 0, len(result.Violations))
	if c.Critical > 0 {
		details = append(details, detail{finding.Critical, c.Critical})
	}
	if c.High > 0 {
		details = append(details, detail{finding.High, c.High})
	}
	if c.Medium > mediumMax {
		details = append(details, detail{finding.Medium, c.Medium})
	}
	if c.Medium > 0 && c.Medium <= mediumMax && score > scoreMax {
		details = append(details, detail{"", score})
	}

	out := make([]*events.ViolationEvent, 0, len(result.Violations))
	for i, msg := range result.Violations {
		d := detail{}
		if i < len(details) {
			d = details[i]
		}
		out = append(out, events.NewViolationEvent(runID, app, result.Status,
			rule, d.tier, msg, d.count))
	}
	return out
}

// gateConfig snapshots the run configuration for the start event.
func (r *Runner) gateConfig() events.GateConfig {
	return events.GateConfig{
		InputPath:      r.cfg.InputPath,
		BaselineDir:    r.cfg.BaselineDir,
		Tolerance:      r.cfg.Tolerance,
		TolerancePct:   r.cfg.TolerancePercent,
		FailOnWarn:     r.cfg.FailOnWarn,
		UpdateBaseline: !r.cfg.NoBaselineUpdate,
		Formats:        r.cfg.Formats,
		Tags:           r.cfg.Tags,
	}
}

// buildSummary assembles the summary event for the run.
func (r *Runner) buildSummary(runID, app string, result *policy.Result, decision policy.Decision, report *baseline.RegressionReport, started, completed time.Time, code exitcode.Code, reason string) *events.SummaryEvent {
	info := events.PolicyInfo{
		Reference:      r.pol.Reference(),
		MediumCountMax: r.pol.MediumCountMax(),
		RiskScoreMax:   r.pol.RiskScoreMax(),
	}
	return newSummaryEvent(runID, app, result, decision, info, report,
		r.cfg.GuardTolerance().String(), started, completed, code, reason)
}

// newSummaryEvent assembles the summary event from its parts.
func newSummaryEvent(runID, app string, result *policy.Result, decision policy.Decision, info events.PolicyInfo, report *baseline.RegressionReport, tolerance string, started, completed time.Time, code exitcode.Code, reason string) *events.SummaryEvent {
	summary := &events.SummaryEvent{
		BaseEvent: events.BaseEvent{Type: events.EventTypeSummary, Time: completed, Run: runID},
		Version:   defaults.Version,
		AppName:   app,
		Verdict: events.VerdictInfo{
			Status:    result.Status,
			Rule:      decision.Rule,
			RiskScore: result.RiskScore,
		},
		Totals:          result.SeverityCounts,
		TotalFindings:   result.TotalFindings,
		Violations:      result.Violations,
		Recommendations: result.Recommendations,
		Policy:          info,
		Timing: events.SummaryTiming{
			StartedAt:   started,
			CompletedAt: completed,
			DurationSec: completed.Sub(started).Seconds(),
		},
		ExitCode:   int(code),
		ExitReason: reason,
	}
	if report != nil {
		summary.Regression = &events.RegressionInfo{
			Accepted:      report.Accepted,
			FirstRun:      report.FirstRun,
			BaselineScore: report.BaselineScore,
			CurrentScore:  report.CurrentScore,
			Delta:         report.Delta,
			Tolerance:     tolerance,
			Summary:       report.Summary,
		}
	}
	return summary
}

// emit dispatches an event, logging rather than failing on dispatch
// errors. A broken writer must not change the verdict.
func (r *Runner) emit(ctx context.Context, ev events.Event) {
	if r.disp == nil {
		return
	}
	if err := r.disp.Dispatch(ctx, ev); err != nil {
		r.logger.Warn("event dispatch failed", "type", ev.EventType(), "error", err)
	}
}
