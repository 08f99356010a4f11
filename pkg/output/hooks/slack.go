package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
	"unicode"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/iohelper"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*SlackHook)(nil)

// SlackHook sends formatted messages to Slack via incoming webhooks.
// It uses Slack's Block Kit for the gate summary and sends an immediate
// alert when the regression guard rejects a run. Violations are
// collected during the run so the summary can show them with their
// severity tier.
type SlackHook struct {
	webhookURL string
	client     *http.Client
	opts       SlackOptions
	violations []*events.ViolationEvent
	mu         sync.Mutex
	logger     *slog.Logger
}

// SlackOptions configures the Slack hook behavior.
type SlackOptions struct {
	// Channel override (uses webhook default if empty).
	Channel string

	// Username for bot (default: "riskgate").
	Username string

	// IconEmoji for bot avatar (default: ":vertical_traffic_light:").
	IconEmoji string

	// MinSeverity filters collected violations below this tier.
	MinSeverity events.Severity

	// OnlyFailures skips the summary when the gate passes.
	OnlyFailures bool

	// Timeout for HTTP requests (default: 10s).
	Timeout time.Duration

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// NewSlackHook creates a new Slack hook that sends messages to the given webhook URL.
func NewSlackHook(webhookURL string, opts SlackOptions) *SlackHook {
	// Apply defaults
	if opts.Username == "" {
		opts.Username = defaults.ToolName
	}
	if opts.IconEmoji == "" {
		opts.IconEmoji = ":vertical_traffic_light:"
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaults.TimeoutWebhook
	}

	return &SlackHook{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		violations: make([]*events.ViolationEvent, 0),
		logger:     orDefault(opts.Logger),
	}
}

// OnEvent processes events and sends them to Slack.
// A rejected regression triggers an immediate alert; the summary event
// sends the complete Block Kit message.
func (h *SlackHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch e := event.(type) {
	case *events.ViolationEvent:
		return h.handleViolation(e)
	case *events.RegressionEvent:
		return h.handleRegression(ctx, e)
	case *events.SummaryEvent:
		return h.handleSummary(ctx, e)
	default:
		return nil
	}
}

// EventTypes returns the event types this hook handles.
func (h *SlackHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeViolation,
		events.EventTypeRegression,
		events.EventTypeSummary,
	}
}

// handleViolation collects violations for the summary message.
func (h *SlackHook) handleViolation(violation *events.ViolationEvent) error {
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

// handleRegression sends an immediate alert when the guard rejects the
// run. Accepted comparisons only show up in the summary.
func (h *SlackHook) handleRegression(ctx context.Context, reg *events.RegressionEvent) error {
	if reg.Accepted {
		return nil
	}

	message := slackMessage{
		Username:  h.opts.Username,
		IconEmoji: h.opts.IconEmoji,
		Channel:   h.opts.Channel,
		Text:      fmt.Sprintf("🚨 *Risk Regression Detected: %s*", reg.AppName),
		Attachments: []slackAttachment{
			{
				Color: "danger",
				Fields: []slackField{
					{Title: "Baseline Score", Value: strconv.Itoa(reg.BaselineScore), Short: true},
					{Title: "Current Score", Value: strconv.Itoa(reg.CurrentScore), Short: true},
					{Title: "Delta", Value: fmt.Sprintf("+%d", reg.Delta), Short: true},
					{Title: "Tolerance", Value: reg.Tolerance, Short: true},
					{Title: "Detail", Value: reg.Summary, Short: false},
				},
			},
		},
	}

	return h.send(ctx, message)
}

// handleSummary sends the final gate summary to Slack.
func (h *SlackHook) handleSummary(ctx context.Context, summary *events.SummaryEvent) error {
	// Apply OnlyFailures filter
	if h.opts.OnlyFailures && summary.Verdict.Status == policy.StatusPass {
		return nil
	}

	message := slackBlockMessage{
		Username:  h.opts.Username,
		IconEmoji: h.opts.IconEmoji,
		Channel:   h.opts.Channel,
		Blocks:    h.buildSummaryBlocks(summary),
	}

	return h.send(ctx, message)
}

// buildSummaryBlocks builds Block Kit blocks for the gate summary.
func (h *SlackHook) buildSummaryBlocks(summary *events.SummaryEvent) []slackBlock {
	blocks := make([]slackBlock, 0, 6)

	// Header with verdict
	blocks = append(blocks, slackBlock{
		Type: "header",
		Text: &slackText{
			Type: "plain_text",
			Text: fmt.Sprintf("%s Security Gate %s", verdictIcon(summary.Verdict.Status), summary.Verdict.Status),
		},
	})

	// App and policy section
	appField := slackText{Type: "mrkdwn", Text: fmt.Sprintf("*App:*\n%s", summary.AppName)}
	policyField := slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Policy:*\n%s", summary.Policy.Reference)}
	blocks = append(blocks, slackBlock{
		Type:   "section",
		Fields: []*slackText{&appField, &policyField},
	})

	// Score and findings section
	scoreField := slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Risk Score:*\n%d", summary.Verdict.RiskScore)}
	findingsField := slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Findings:*\n%d", summary.TotalFindings)}
	ruleField := slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Rule:*\n%s", summary.Verdict.Rule)}
	blocks = append(blocks, slackBlock{
		Type:   "section",
		Fields: []*slackText{&scoreField, &findingsField, &ruleField},
	})

	// Violations, if any
	if len(h.violations) > 0 || len(summary.Violations) > 0 {
		blocks = append(blocks, slackBlock{Type: "divider"})
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Violations:*\n%s", h.formatViolations(summary, 5)),
			},
		})
	}

	// Regression comparison, when the guard ran
	if reg := summary.Regression; reg != nil {
		verdict := "accepted"
		if !reg.Accepted {
			verdict = "rejected 🚨"
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Regression:* baseline %d, current %d (delta %+d, tolerance %s) %s",
					reg.BaselineScore, reg.CurrentScore, reg.Delta, reg.Tolerance, verdict),
			},
		})
	}

	return blocks
}

// formatViolations formats the top n violations as a bullet list.
// Collected violation events carry the severity tier; when the hook
// missed them it falls back to the summary's plain messages.
func (h *SlackHook) formatViolations(summary *events.SummaryEvent, n int) string {
	var buf bytes.Buffer

	if len(h.violations) > 0 {
		count := n
		if len(h.violations) < count {
			count = len(h.violations)
		}
		for i := 0; i < count; i++ {
			v := h.violations[i]
			buf.WriteString(fmt.Sprintf("• [%s] %s\n", capitalize(string(v.Tier)), v.Message))
		}
		return buf.String()
	}

	count := n
	if len(summary.Violations) < count {
		count = len(summary.Violations)
	}
	for i := 0; i < count; i++ {
		buf.WriteString(fmt.Sprintf("• %s\n", summary.Violations[i]))
	}
	return buf.String()
}

// send posts the message to Slack.
func (h *SlackHook) send(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("failed to marshal message", slog.String("error", err.Error()))
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

// verdictIcon returns the emoji for a gate verdict.
func verdictIcon(status policy.Status) string {
	switch status {
	case policy.StatusPass:
		return "✅"
	case policy.StatusWarn:
		return "⚠️"
	case policy.StatusFail:
		return "❌"
	default:
		return "🛡️"
	}
}

// capitalize returns the string with the first letter uppercase.
// Handles empty strings, uppercase letters, numbers, and Unicode safely.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	// Get first rune and uppercase it safely
	for i, r := range s {
		if i == 0 {
			return string(unicode.ToUpper(r)) + s[1:]
		}
	}
	return s
}

// Slack message types for JSON serialization.

type slackMessage struct {
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackBlockMessage struct {
	Username  string       `json:"username,omitempty"`
	IconEmoji string       `json:"icon_emoji,omitempty"`
	Channel   string       `json:"channel,omitempty"`
	Blocks    []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string       `json:"type"`
	Text   *slackText   `json:"text,omitempty"`
	Fields []*slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
