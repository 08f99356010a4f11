// Package hooks provides event hooks for real-time integrations.
// Hooks receive gate events from the dispatcher and forward them to
// external systems such as generic webhooks, Slack, Microsoft Teams,
// PagerDuty, and issue trackers. Delivery failures are logged and never
// change the gate verdict.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/iohelper"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/scoring"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*WebhookHook)(nil)

// WebhookHook posts gate events to an HTTP endpoint as JSON.
// It supports retries with exponential backoff, custom headers,
// and filtering by event type or severity.
type WebhookHook struct {
	endpoint string
	client   *http.Client
	opts     WebhookOptions
	logger   *slog.Logger
}

// WebhookOptions configures the webhook hook behavior.
type WebhookOptions struct {
	// Headers to include in requests.
	Headers map[string]string

	// Timeout for HTTP requests (default: 10s).
	Timeout time.Duration

	// RetryCount for failed requests (default: 3).
	RetryCount int

	// AllEvents forwards the full event stream. By default only the
	// summary event is delivered.
	AllEvents bool

	// MinSeverity filters finding and violation events below this tier.
	// Events without a severity always pass.
	MinSeverity events.Severity

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// severityOrder maps severity to numeric order for comparison.
// Higher number = more severe.
var severityOrder = map[events.Severity]int{
	events.SeverityInfo:     1,
	events.SeverityLow:      2,
	events.SeverityMedium:   3,
	events.SeverityHigh:     4,
	events.SeverityCritical: 5,
}

// severityMeetsMin reports whether sev is at least as severe as min.
// An empty or unknown min passes everything, and an unknown sev passes
// too so malformed events are never silently dropped.
func severityMeetsMin(sev, min events.Severity) bool {
	minOrder, ok := severityOrder[min]
	if !ok {
		return true
	}

	sevOrder, ok := severityOrder[sev]
	if !ok {
		return true
	}

	return sevOrder >= minOrder
}

// dominantSeverity returns the most severe tier with a non-zero count.
// Empty counts report info.
func dominantSeverity(counts scoring.Counts) events.Severity {
	switch {
	case counts.Critical > 0:
		return events.SeverityCritical
	case counts.High > 0:
		return events.SeverityHigh
	case counts.Medium > 0:
		return events.SeverityMedium
	case counts.Low > 0:
		return events.SeverityLow
	default:
		return events.SeverityInfo
	}
}

// NewWebhookHook creates a new webhook hook that sends events to the
// given endpoint. The hook is safe for concurrent use.
func NewWebhookHook(endpoint string, opts WebhookOptions) *WebhookHook {
	// Apply defaults
	if opts.Timeout == 0 {
		opts.Timeout = defaults.TimeoutWebhook
	}
	if opts.RetryCount == 0 {
		opts.RetryCount = defaults.RetryWebhook
	}

	return &WebhookHook{
		endpoint: endpoint,
		client:   &http.Client{Timeout: opts.Timeout},
		opts:     opts,
		logger:   orDefault(opts.Logger),
	}
}

// OnEvent sends the event to the configured webhook endpoint.
// It returns nil on success or if the event should be skipped.
// Errors are logged but do not fail the gate run.
func (h *WebhookHook) OnEvent(ctx context.Context, event events.Event) error {
	// Without AllEvents, only the run summary is delivered.
	if !h.opts.AllEvents && event.EventType() != events.EventTypeSummary {
		return nil
	}

	// Apply MinSeverity filter
	if h.opts.MinSeverity != "" && !h.meetsMinSeverity(event) {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("failed to marshal event", slog.String("error", err.Error()))
		return nil
	}

	if err := h.sendWithRetry(ctx, event.EventType(), body); err != nil {
		h.logger.Warn("failed to send event after retries", slog.String("error", err.Error()))
		return nil
	}

	return nil
}

// EventTypes returns nil to receive all event types.
// Filtering is done in OnEvent based on options.
func (h *WebhookHook) EventTypes() []events.EventType {
	return nil
}

// meetsMinSeverity checks if the event meets the minimum severity threshold.
func (h *WebhookHook) meetsMinSeverity(event events.Event) bool {
	var sev events.Severity
	switch e := event.(type) {
	case *events.FindingEvent:
		sev = e.Finding.Severity
	case *events.ViolationEvent:
		sev = e.Tier
	default:
		return true // Events without a severity pass through
	}

	return severityMeetsMin(sev, h.opts.MinSeverity)
}

// sendWithRetry sends the request with exponential backoff retries.
func (h *WebhookHook) sendWithRetry(ctx context.Context, eventType events.EventType, body []byte) error {
	var lastErr error

	for attempt := 0; attempt < h.opts.RetryCount; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s, ...
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", defaults.ContentTypeJSON)
		req.Header.Set("User-Agent", defaults.ToolName+"/"+defaults.Version)
		req.Header.Set("X-Riskgate-Event-Type", string(eventType))

		for key, value := range h.opts.Headers {
			req.Header.Set(key, value)
		}

		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}
		// Drain inline rather than defer: the loop may run again.
		iohelper.DrainAndClose(resp.Body)

		// Success
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		// Retry on 5xx errors
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		// Don't retry on 4xx errors
		return fmt.Errorf("client error: %d", resp.StatusCode)
	}

	return lastErr
}
