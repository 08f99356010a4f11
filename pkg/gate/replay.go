package gate

import (
	"context"

	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/exitcode"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
)

// Replay re-emits a saved evaluation as a full event stream, so every
// writer format can render a report from the envelope alone, without
// re-running the gate. The verdict, findings, violations, and guard
// outcome come from the envelope; the policy supplies the weights and
// thresholds shown alongside them.
//
// The stream carries the envelope's run ID and analysis time, and the
// exit outcome is reconstructed from the stored status and guard
// report. Replaying does not touch baselines or history.
func (e *Evaluation) Replay(ctx context.Context, disp *dispatcher.Dispatcher, pol *policy.Policy) error {
	if disp == nil {
		return nil
	}
	if pol == nil {
		pol = policy.Default()
	}

	result := e.Result()
	decision := pol.Decide(result.SeverityCounts, result.RiskScore)
	ref := e.PolicyReference
	if ref == "" {
		ref = pol.Reference()
	}

	exits := exitcode.New(exitcode.Config{})
	if e.Regression != nil {
		exits.RecordRegression(e.Regression)
	}
	exits.RecordStatus(result.Status)
	code, reason := exits.ExitCode()

	at := e.AnalysisTime
	var firstErr error
	emit := func(ev events.Event) {
		if err := disp.Dispatch(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	emit(events.NewStartEvent(e.RunID, e.AppName, ref, e.TotalFindings, events.GateConfig{}))

	weights := pol.Weights.Resolve()
	for i, f := range e.Findings {
		emit(events.NewFindingEvent(e.RunID, e.AppName, i, f, weights.Get(f.Severity)))
	}
	emit(events.NewEvaluationEvent(e.RunID, e.AppName, result, decision.Rule))
	for _, ev := range violationEvents(e.RunID, e.AppName, result, decision.Rule, pol) {
		emit(ev)
	}

	tolerance := ""
	if rep := e.Regression; rep != nil {
		tol := baseline.Tolerance{Value: rep.Tolerance, Percent: rep.TolerancePct}
		tolerance = tol.String()
		emit(events.NewRegressionEvent(e.RunID, e.AppName,
			rep.Accepted, rep.FirstRun,
			rep.BaselineScore, rep.CurrentScore, rep.Delta,
			tolerance, rep.Summary))
	}

	info := events.PolicyInfo{
		Reference:      ref,
		MediumCountMax: pol.MediumCountMax(),
		RiskScoreMax:   pol.RiskScoreMax(),
	}
	summary := newSummaryEvent(e.RunID, e.AppName, result, decision, info,
		e.Regression, tolerance, at, at, code, reason)
	emit(summary)
	emit(&events.CompleteEvent{
		BaseEvent:  events.BaseEvent{Type: events.EventTypeComplete, Time: at, Run: e.RunID},
		Success:    code == exitcode.Success,
		ExitCode:   int(code),
		ExitReason: reason,
		Summary:    summary,
	})

	return firstErr
}
