package hooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/riskgate/riskgate/pkg/history"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*HistoryHook)(nil)

// HistoryHook saves gate runs to a historical store for trend analysis.
// It listens for SummaryEvent and creates a permanent record.
type HistoryHook struct {
	store  *history.Store
	tags   []string
	logger *slog.Logger
}

// HistoryHookOptions configures the history hook.
type HistoryHookOptions struct {
	// StorePath is the directory where historical data is stored.
	StorePath string

	// Tags are user-defined labels to attach to each run record.
	Tags []string

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// NewHistoryHook creates a new history hook.
func NewHistoryHook(opts HistoryHookOptions) (*HistoryHook, error) {
	store, err := history.NewStore(opts.StorePath)
	if err != nil {
		return nil, err
	}

	return &HistoryHook{
		store:  store,
		tags:   opts.Tags,
		logger: orDefault(opts.Logger),
	}, nil
}

// OnEvent processes events and saves gate runs to history.
// Only SummaryEvent is processed to create a complete record.
func (h *HistoryHook) OnEvent(ctx context.Context, event events.Event) error {
	summary, ok := event.(*events.SummaryEvent)
	if !ok {
		return nil
	}

	record := h.buildRecord(summary)
	if err := h.store.Save(record); err != nil {
		h.logger.Warn("failed to save run record", slog.String("error", err.Error()))
		return nil
	}

	h.logger.Info("saved run record", slog.String("id", record.ID), slog.String("app", record.AppName))
	return nil
}

// EventTypes returns the event types this hook handles.
func (h *HistoryHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeSummary,
	}
}

// buildRecord creates a RunRecord from a SummaryEvent.
func (h *HistoryHook) buildRecord(summary *events.SummaryEvent) *history.RunRecord {
	runID := summary.RunID()
	if runID == "" {
		runID = time.Now().Format("20060102-150405")
	}

	// A summary without a regression block means the guard never ran;
	// record the run as accepted so it does not read as a rejection.
	regressionAccepted := true
	firstRun := false
	if summary.Regression != nil {
		regressionAccepted = summary.Regression.Accepted
		firstRun = summary.Regression.FirstRun
	}

	return &history.RunRecord{
		ID:                 runID,
		Timestamp:          summary.Timestamp(),
		AppName:            summary.AppName,
		Status:             summary.Verdict.Status,
		Rule:               summary.Verdict.Rule,
		RiskScore:          summary.Verdict.RiskScore,
		TotalFindings:      summary.TotalFindings,
		SeverityCounts:     summary.Totals,
		ViolationCount:     len(summary.Violations),
		RegressionAccepted: regressionAccepted,
		FirstRun:           firstRun,
		PolicyReference:    summary.Policy.Reference,
		Duration:           int64(summary.Timing.DurationSec * 1000),
		Version:            summary.Version,
		Tags:               h.tags,
		Notes:              "",
	}
}
