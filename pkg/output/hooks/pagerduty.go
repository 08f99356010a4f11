package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/iohelper"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*PagerDutyHook)(nil)

// pagerDutyEventsURL is the PagerDuty Events API v2 endpoint.
const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDutyHook creates incidents in PagerDuty via the Events API v2.
// A failed gate triggers an incident keyed to the application, so
// repeated failures for the same app deduplicate onto one incident.
// With AutoResolve, a later passing run resolves it.
type PagerDutyHook struct {
	routingKey string
	endpoint   string
	client     *http.Client
	opts       PagerDutyOptions
	logger     *slog.Logger
}

// PagerDutyOptions configures the PagerDuty hook behavior.
type PagerDutyOptions struct {
	// Source identifier (default: "riskgate").
	Source string

	// Component for the incident (default: "security-gate").
	Component string

	// MinSeverity requires the findings behind a failure to reach this
	// tier before an incident is triggered. Empty triggers on any FAIL.
	MinSeverity events.Severity

	// AutoResolve resolves the incident when the app passes again.
	AutoResolve bool

	// Timeout for HTTP requests (default: 10s).
	Timeout time.Duration

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// pagerDutyEvent represents the PagerDuty Events API v2 payload.
type pagerDutyEvent struct {
	RoutingKey  string            `json:"routing_key"`
	EventAction string            `json:"event_action"`
	DedupKey    string            `json:"dedup_key"`
	Payload     *pagerDutyPayload `json:"payload,omitempty"`
}

// pagerDutyPayload contains the incident details.
type pagerDutyPayload struct {
	Summary       string                 `json:"summary"`
	Source        string                 `json:"source"`
	Severity      string                 `json:"severity"`
	Timestamp     string                 `json:"timestamp"`
	Component     string                 `json:"component,omitempty"`
	Group         string                 `json:"group,omitempty"`
	Class         string                 `json:"class,omitempty"`
	CustomDetails map[string]interface{} `json:"custom_details,omitempty"`
}

// pagerDutySeverityMap maps finding severity to PagerDuty severity.
var pagerDutySeverityMap = map[events.Severity]string{
	events.SeverityCritical: "critical",
	events.SeverityHigh:     "error",
	events.SeverityMedium:   "warning",
	events.SeverityLow:      "info",
	events.SeverityInfo:     "info",
}

// NewPagerDutyHook creates a new PagerDuty hook that sends events to PagerDuty.
func NewPagerDutyHook(routingKey string, opts PagerDutyOptions) *PagerDutyHook {
	// Apply defaults
	if opts.Source == "" {
		opts.Source = defaults.ToolName
	}
	if opts.Component == "" {
		opts.Component = "security-gate"
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaults.TimeoutWebhook
	}

	return &PagerDutyHook{
		routingKey: routingKey,
		endpoint:   pagerDutyEventsURL,
		client:     &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		logger:     orDefault(opts.Logger),
	}
}

// OnEvent processes summary events. A FAIL verdict triggers an
// incident; a PASS verdict resolves it when AutoResolve is set.
func (h *PagerDutyHook) OnEvent(ctx context.Context, event events.Event) error {
	summary, ok := event.(*events.SummaryEvent)
	if !ok {
		return nil
	}

	switch summary.Verdict.Status {
	case policy.StatusFail:
		if h.opts.MinSeverity != "" && !severityMeetsMin(dominantSeverity(summary.Totals), h.opts.MinSeverity) {
			return nil
		}
		return h.sendEvent(ctx, h.buildTrigger(summary))
	case policy.StatusPass:
		if !h.opts.AutoResolve {
			return nil
		}
		return h.sendEvent(ctx, pagerDutyEvent{
			RoutingKey:  h.routingKey,
			EventAction: "resolve",
			DedupKey:    h.dedupKey(summary.AppName),
		})
	default:
		return nil
	}
}

// EventTypes returns the event types this hook handles.
func (h *PagerDutyHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeSummary,
	}
}

// sendEvent posts an event to the PagerDuty Events API.
func (h *PagerDutyHook) sendEvent(ctx context.Context, pdEvent pagerDutyEvent) error {
	body, err := json.Marshal(pdEvent)
	if err != nil {
		h.logger.Warn("failed to marshal event", slog.String("error", err.Error()))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		h.logger.Warn("failed to create request", slog.String("error", err.Error()))
		return nil
	}

	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
	req.Header.Set("User-Agent", defaults.ToolName+"/"+defaults.Version)

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("failed to send event", slog.String("error", err.Error()))
		return nil
	}
	defer iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode >= 400 {
		h.logger.Warn("error response", slog.Int("status", resp.StatusCode))
	}

	return nil
}

// buildTrigger constructs the trigger payload for a failed gate.
func (h *PagerDutyHook) buildTrigger(summary *events.SummaryEvent) pagerDutyEvent {
	pdSeverity := pagerDutySeverityMap[dominantSeverity(summary.Totals)]
	if pdSeverity == "" {
		pdSeverity = "error"
	}

	customDetails := map[string]interface{}{
		"risk_score":       summary.Verdict.RiskScore,
		"rule":             summary.Verdict.Rule,
		"total_findings":   summary.TotalFindings,
		"severity_counts":  summary.Totals,
		"policy_reference": summary.Policy.Reference,
	}
	if len(summary.Violations) > 0 {
		customDetails["violations"] = summary.Violations
	}
	if reg := summary.Regression; reg != nil && !reg.Accepted {
		customDetails["baseline_score"] = reg.BaselineScore
		customDetails["score_delta"] = reg.Delta
	}

	return pagerDutyEvent{
		RoutingKey:  h.routingKey,
		EventAction: "trigger",
		DedupKey:    h.dedupKey(summary.AppName),
		Payload: &pagerDutyPayload{
			Summary:       fmt.Sprintf("Security gate FAIL: %s (risk score %d)", summary.AppName, summary.Verdict.RiskScore),
			Source:        h.opts.Source,
			Severity:      pdSeverity,
			Timestamp:     summary.Timestamp().Format(time.RFC3339),
			Component:     h.opts.Component,
			Group:         summary.Policy.Reference,
			Class:         "security-gate",
			CustomDetails: customDetails,
		},
	}
}

// dedupKey creates the per-application deduplication key.
// Format: riskgate-gate-{app}
func (h *PagerDutyHook) dedupKey(app string) string {
	return strings.Join([]string{defaults.ToolName, "gate", app}, "-")
}
