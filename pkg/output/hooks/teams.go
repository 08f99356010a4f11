package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/iohelper"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*TeamsHook)(nil)

// TeamsHook sends formatted messages to Microsoft Teams via incoming
// webhooks. It uses MessageCard format for rich formatting of gate
// summaries, with the card color following the verdict.
type TeamsHook struct {
	webhookURL string
	client     *http.Client
	opts       TeamsOptions
	violations []*events.ViolationEvent
	mu         sync.Mutex
	logger     *slog.Logger
}

// TeamsOptions configures the Teams hook behavior.
type TeamsOptions struct {
	// MinSeverity filters collected violations below this tier.
	MinSeverity events.Severity

	// OnlyFailures skips the summary when the gate passes.
	OnlyFailures bool

	// Timeout for HTTP requests (default: 10s).
	Timeout time.Duration

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// Teams theme colors keyed by gate verdict.
const (
	teamsColorGreen  = "00FF00" // PASS
	teamsColorYellow = "FFFF00" // WARN
	teamsColorRed    = "FF0000" // FAIL
	teamsColorBlue   = "0076D7" // Default/neutral
)

// NewTeamsHook creates a new Teams hook that sends messages to the given webhook URL.
func NewTeamsHook(webhookURL string, opts TeamsOptions) *TeamsHook {
	// Apply defaults
	if opts.Timeout == 0 {
		opts.Timeout = defaults.TimeoutWebhook
	}

	return &TeamsHook{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		violations: make([]*events.ViolationEvent, 0),
		logger:     orDefault(opts.Logger),
	}
}

// OnEvent processes events and sends them to Teams.
// Summary events trigger the MessageCard to be sent.
func (h *TeamsHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch e := event.(type) {
	case *events.ViolationEvent:
		return h.handleViolation(e)
	case *events.SummaryEvent:
		return h.handleSummary(ctx, e)
	default:
		return nil
	}
}

// EventTypes returns the event types this hook handles.
func (h *TeamsHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeViolation,
		events.EventTypeSummary,
	}
}

// handleViolation collects violations for the summary card.
func (h *TeamsHook) handleViolation(violation *events.ViolationEvent) error {
	// Apply MinSeverity filter before collecting
	if h.opts.MinSeverity != "" && !severityMeetsMin(violation.Tier, h.opts.MinSeverity) {
		return nil
	}

	// Cap to prevent unbounded growth.
	const maxCollectedViolations = 100
	if len(h.violations) < maxCollectedViolations {
		h.violations = append(h.violations, violation)
	}
	return nil
}

// handleSummary sends the MessageCard to Teams.
func (h *TeamsHook) handleSummary(ctx context.Context, summary *events.SummaryEvent) error {
	// Apply OnlyFailures filter
	if h.opts.OnlyFailures && summary.Verdict.Status == policy.StatusPass {
		return nil
	}

	return h.send(ctx, h.buildMessageCard(summary))
}

// buildMessageCard builds the Teams MessageCard for the gate summary.
func (h *TeamsHook) buildMessageCard(summary *events.SummaryEvent) teamsMessageCard {
	facts := []teamsFact{
		{Name: "App", Value: summary.AppName},
		{Name: "Policy", Value: summary.Policy.Reference},
		{Name: "Status", Value: string(summary.Verdict.Status)},
		{Name: "Rule", Value: summary.Verdict.Rule},
		{Name: "Risk Score", Value: fmt.Sprintf("%d", summary.Verdict.RiskScore)},
		{Name: "Findings", Value: fmt.Sprintf("%d", summary.TotalFindings)},
	}

	sections := []teamsSection{
		{
			ActivityTitle: fmt.Sprintf("%s Security Gate %s", verdictIcon(summary.Verdict.Status), summary.Verdict.Status),
			Facts:         facts,
			Markdown:      true,
		},
	}

	// Add violations section if any
	if violationFacts := h.buildViolationFacts(5); len(violationFacts) > 0 {
		sections = append(sections, teamsSection{
			ActivityTitle: "Violations",
			Facts:         violationFacts,
			Markdown:      true,
		})
	}

	// Add regression section when the guard rejected the run
	if reg := summary.Regression; reg != nil && !reg.Accepted {
		sections = append(sections, teamsSection{
			ActivityTitle: "🚨 Risk Regression",
			Facts: []teamsFact{
				{Name: "Baseline Score", Value: fmt.Sprintf("%d", reg.BaselineScore)},
				{Name: "Current Score", Value: fmt.Sprintf("%d", reg.CurrentScore)},
				{Name: "Delta", Value: fmt.Sprintf("%+d", reg.Delta)},
				{Name: "Tolerance", Value: reg.Tolerance},
			},
			Markdown: true,
		})
	}

	return teamsMessageCard{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: verdictThemeColor(summary.Verdict.Status),
		Summary:    fmt.Sprintf("Security Gate %s: %s", summary.Verdict.Status, summary.AppName),
		Sections:   sections,
	}
}

// buildViolationFacts builds fact entries for the top violations.
func (h *TeamsHook) buildViolationFacts(n int) []teamsFact {
	if len(h.violations) == 0 {
		return nil
	}

	count := n
	if len(h.violations) < count {
		count = len(h.violations)
	}

	facts := make([]teamsFact, count)
	for i := 0; i < count; i++ {
		v := h.violations[i]
		facts[i] = teamsFact{
			Name:  capitalize(string(v.Tier)),
			Value: v.Message,
		}
	}

	return facts
}

// verdictThemeColor returns the card color for a gate verdict.
func verdictThemeColor(status policy.Status) string {
	switch status {
	case policy.StatusPass:
		return teamsColorGreen
	case policy.StatusWarn:
		return teamsColorYellow
	case policy.StatusFail:
		return teamsColorRed
	default:
		return teamsColorBlue
	}
}

// send posts the MessageCard to Teams.
func (h *TeamsHook) send(ctx context.Context, card teamsMessageCard) error {
	body, err := json.Marshal(card)
	if err != nil {
		h.logger.Warn("failed to marshal message card", slog.String("error", err.Error()))
		return nil // Don't fail the gate
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.webhookURL, bytes.NewReader(body))
	if err != nil {
		h.logger.Warn("failed to create request", slog.String("error", err.Error()))
		return nil
	}
	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
	req.Header.Set("User-Agent", defaults.ToolName+"/"+defaults.Version)

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("failed to send message", slog.String("error", err.Error()))
		return nil // Don't fail the gate
	}
	defer iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode >= 400 {
		h.logger.Warn("error response", slog.Int("status", resp.StatusCode))
	}

	return nil
}

// Teams MessageCard types for JSON serialization.

type teamsMessageCard struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Sections   []teamsSection `json:"sections"`
}

type teamsSection struct {
	ActivityTitle string      `json:"activityTitle"`
	Facts         []teamsFact `json:"facts"`
	Markdown      bool        `json:"markdown"`
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
