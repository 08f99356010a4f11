package hooks

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/iohelper"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*JiraHook)(nil)

// validJiraProjectKey matches valid Jira project keys (uppercase alphanumeric, 2-10 chars).
var validJiraProjectKey = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// JiraHook creates issues in Jira via the REST API v3.
// It creates one issue per failed gate run.
type JiraHook struct {
	baseURL string
	client  *http.Client
	opts    JiraOptions
	logger  *slog.Logger
}

// JiraOptions configures the Jira hook behavior.
type JiraOptions struct {
	// ProjectKey for issue creation (required).
	ProjectKey string

	// IssueType (default: "Bug").
	IssueType string

	// Username for basic auth.
	Username string

	// APIToken for authentication.
	APIToken string

	// MinSeverity requires the findings behind a failure to reach this
	// tier before an issue is created. Empty creates one on any FAIL.
	MinSeverity events.Severity

	// Labels to add to issues.
	Labels []string

	// AssigneeID to assign issues to.
	AssigneeID string

	// Timeout for HTTP requests (default: 10s).
	Timeout time.Duration

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// jiraIssue represents the Jira REST API v3 issue creation payload.
type jiraIssue struct {
	Fields jiraFields `json:"fields"`
}

// jiraFields contains the issue fields.
type jiraFields struct {
	Project     jiraProject     `json:"project"`
	Summary     string          `json:"summary"`
	Description jiraADFDocument `json:"description"`
	IssueType   jiraIssueType   `json:"issuetype"`
	Priority    *jiraPriority   `json:"priority,omitempty"`
	Labels      []string        `json:"labels,omitempty"`
	Assignee    *jiraAssignee   `json:"assignee,omitempty"`
}

// jiraProject identifies the Jira project.
type jiraProject struct {
	Key string `json:"key"`
}

// jiraIssueType identifies the issue type.
type jiraIssueType struct {
	Name string `json:"name"`
}

// jiraPriority identifies the priority.
type jiraPriority struct {
	Name string `json:"name"`
}

// jiraAssignee identifies the assignee.
type jiraAssignee struct {
	ID string `json:"id"`
}

// jiraADFDocument represents an Atlassian Document Format document.
type jiraADFDocument struct {
	Type    string        `json:"type"`
	Version int           `json:"version"`
	Content []jiraADFNode `json:"content"`
}

// jiraADFNode represents a node in an ADF document.
type jiraADFNode struct {
	Type    string                 `json:"type"`
	Content []jiraADFNode          `json:"content,omitempty"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
	Text    string                 `json:"text,omitempty"`
}

// jiraPriorityMap maps finding severity to Jira priority names.
var jiraPriorityMap = map[events.Severity]string{
	events.SeverityCritical: "Highest",
	events.SeverityHigh:     "High",
	events.SeverityMedium:   "Medium",
	events.SeverityLow:      "Low",
	events.SeverityInfo:     "Lowest",
}

// NewJiraHook creates a new Jira hook that creates issues in Jira.
// Returns an error if baseURL is invalid, credentials are missing, or
// ProjectKey is malformed.
func NewJiraHook(baseURL string, opts JiraOptions) (*JiraHook, error) {
	// Validate base URL
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid Jira base URL: %q", baseURL)
	}

	// Require authentication credentials
	if opts.Username == "" || opts.APIToken == "" {
		return nil, fmt.Errorf("jira requires Username and APIToken for authentication")
	}

	// Validate project key (Jira keys are uppercase alpha + digits, e.g. SEC, PROJ10)
	if !validJiraProjectKey.MatchString(opts.ProjectKey) {
		return nil, fmt.Errorf("invalid Jira project key: %q (must be 2-10 uppercase alphanumeric chars starting with a letter)", opts.ProjectKey)
	}

	// Apply defaults
	if opts.IssueType == "" {
		opts.IssueType = "Bug"
	}
	if opts.Labels == nil {
		opts.Labels = []string{defaults.ToolName, "security-gate"}
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaults.TimeoutWebhook
	}

	return &JiraHook{
		baseURL: baseURL,
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		logger:  orDefault(opts.Logger),
	}, nil
}

// OnEvent processes summary events and creates issues for failed runs.
func (h *JiraHook) OnEvent(ctx context.Context, event events.Event) error {
	summary, ok := event.(*events.SummaryEvent)
	if !ok {
		return nil
	}

	if summary.Verdict.Status != policy.StatusFail {
		return nil
	}

	// Apply MinSeverity filter
	if h.opts.MinSeverity != "" && !severityMeetsMin(dominantSeverity(summary.Totals), h.opts.MinSeverity) {
		return nil
	}

	return h.createIssue(ctx, summary)
}

// EventTypes returns the event types this hook handles.
func (h *JiraHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeSummary,
	}
}

// createIssue creates a Jira issue for the failed gate run.
func (h *JiraHook) createIssue(ctx context.Context, summary *events.SummaryEvent) error {
	issue := h.buildIssue(summary)

	body, err := json.Marshal(issue)
	if err != nil {
		h.logger.Warn("failed to marshal issue", slog.String("error", err.Error()))
		return nil
	}

	endpoint := fmt.Sprintf("%s/rest/api/3/issue", h.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		h.logger.Warn("failed to create request", slog.String("error", err.Error()))
		return nil
	}

	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
	req.Header.Set("Accept", defaults.ContentTypeJSON)
	req.Header.Set("User-Agent", defaults.ToolName+"/"+defaults.Version)

	auth := base64.StdEncoding.EncodeToString([]byte(h.opts.Username + ":" + h.opts.APIToken))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("failed to create issue", slog.String("error", err.Error()))
		return nil
	}
	defer iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode >= 400 {
		// Decode error response for better troubleshooting
		var errResp struct {
			ErrorMessages []string          `json:"errorMessages"`
			Errors        map[string]string `json:"errors"`
		}
		if decErr := json.NewDecoder(resp.Body).Decode(&errResp); decErr == nil {
			if len(errResp.ErrorMessages) > 0 {
				h.logger.Warn("API error", slog.Int("status", resp.StatusCode), slog.Any("errors", errResp.ErrorMessages))
			} else if len(errResp.Errors) > 0 {
				h.logger.Warn("API error", slog.Int("status", resp.StatusCode), slog.Any("errors", errResp.Errors))
			} else {
				h.logger.Warn("error response", slog.Int("status", resp.StatusCode))
			}
		} else {
			h.logger.Warn("error response", slog.Int("status", resp.StatusCode))
		}
		return nil
	}

	// Parse response to log created issue key
	var result struct {
		Key  string `json:"key"`
		Self string `json:"self"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Key != "" {
		h.logger.Info("created issue", slog.String("key", result.Key), slog.String("url", result.Self))
	}

	return nil
}

// buildIssue constructs the Jira issue payload from a failed gate run.
func (h *JiraHook) buildIssue(summary *events.SummaryEvent) jiraIssue {
	title := fmt.Sprintf("[%s] Security gate failed: %s (risk score %d)",
		defaults.ToolName, summary.AppName, summary.Verdict.RiskScore)

	priority := jiraPriorityMap[dominantSeverity(summary.Totals)]
	if priority == "" {
		priority = "High"
	}

	issue := jiraIssue{
		Fields: jiraFields{
			Project:     jiraProject{Key: h.opts.ProjectKey},
			Summary:     title,
			Description: h.buildADFDescription(summary),
			IssueType:   jiraIssueType{Name: h.opts.IssueType},
			Priority:    &jiraPriority{Name: priority},
			Labels:      h.opts.Labels,
		},
	}

	if h.opts.AssigneeID != "" {
		issue.Fields.Assignee = &jiraAssignee{ID: h.opts.AssigneeID}
	}

	return issue
}

// buildADFDescription creates an Atlassian Document Format description.
func (h *JiraHook) buildADFDescription(summary *events.SummaryEvent) jiraADFDocument {
	content := []jiraADFNode{
		// Introduction paragraph
		{
			Type: "paragraph",
			Content: []jiraADFNode{
				{Type: "text", Text: "The security gate rejected the latest scan results for this application."},
			},
		},
		// Verdict heading
		h.buildHeading("Verdict"),
		h.buildVerdictList(summary),
	}

	// Violations section
	if len(summary.Violations) > 0 {
		items := make([]jiraADFNode, 0, len(summary.Violations))
		for _, v := range summary.Violations {
			items = append(items, h.buildListItem(v))
		}
		content = append(content,
			h.buildHeading("Violations"),
			jiraADFNode{Type: "bulletList", Content: items},
		)
	}

	// Regression section when the guard rejected the run
	if reg := summary.Regression; reg != nil && !reg.Accepted {
		content = append(content,
			h.buildHeading("Regression"),
			jiraADFNode{
				Type: "bulletList",
				Content: []jiraADFNode{
					h.buildListItem(fmt.Sprintf("Baseline score: %d", reg.BaselineScore)),
					h.buildListItem(fmt.Sprintf("Current score: %d", reg.CurrentScore)),
					h.buildListItem(fmt.Sprintf("Delta: %+d (tolerance %s)", reg.Delta, reg.Tolerance)),
				},
			},
		)
	}

	// Recommended actions
	if len(summary.Recommendations) > 0 {
		items := make([]jiraADFNode, 0, len(summary.Recommendations))
		for _, r := range summary.Recommendations {
			items = append(items, h.buildListItem(r))
		}
		content = append(content,
			h.buildHeading("Recommended Actions"),
			jiraADFNode{Type: "bulletList", Content: items},
		)
	}

	return jiraADFDocument{
		Type:    "doc",
		Version: 1,
		Content: content,
	}
}

// buildVerdictList creates a bullet list of verdict details.
func (h *JiraHook) buildVerdictList(summary *events.SummaryEvent) jiraADFNode {
	items := []jiraADFNode{
		h.buildListItem(fmt.Sprintf("App: %s", summary.AppName)),
		h.buildListItem(fmt.Sprintf("Status: %s", summary.Verdict.Status)),
		h.buildListItem(fmt.Sprintf("Rule: %s", summary.Verdict.Rule)),
		h.buildListItem(fmt.Sprintf("Risk score: %d", summary.Verdict.RiskScore)),
		h.buildListItem(fmt.Sprintf("Findings: %d", summary.TotalFindings)),
		h.buildListItem(fmt.Sprintf("Policy: %s", summary.Policy.Reference)),
	}

	return jiraADFNode{
		Type:    "bulletList",
		Content: items,
	}
}

// buildHeading creates a level-2 heading node.
func (h *JiraHook) buildHeading(text string) jiraADFNode {
	return jiraADFNode{
		Type:  "heading",
		Attrs: map[string]interface{}{"level": 2},
		Content: []jiraADFNode{
			{Type: "text", Text: text},
		},
	}
}

// buildListItem creates a list item node for the ADF document.
func (h *JiraHook) buildListItem(text string) jiraADFNode {
	return jiraADFNode{
		Type: "listItem",
		Content: []jiraADFNode{
			{
				Type: "paragraph",
				Content: []jiraADFNode{
					{Type: "text", Text: text},
				},
			},
		},
	}
}
