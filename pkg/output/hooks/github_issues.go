package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/iohelper"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*GitHubIssuesHook)(nil)

// validGitHubName matches valid GitHub owner and repo names (alphanumeric, hyphen, underscore, dot).
var validGitHubName = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// GitHubIssuesHook creates issues in GitHub via the REST API v3.
// It creates one issue per failed gate run.
type GitHubIssuesHook struct {
	baseURL string
	client  *http.Client
	opts    GitHubIssuesOptions
	logger  *slog.Logger
}

// GitHubIssuesOptions configures the GitHub Issues hook behavior.
type GitHubIssuesOptions struct {
	// Token is the GitHub personal access token or GitHub App token.
	// Required scopes: repo (for private repos) or public_repo (for public repos).
	Token string

	// Owner is the repository owner (user or organization).
	Owner string

	// Repo is the repository name.
	Repo string

	// BaseURL is the API base URL for GitHub Enterprise (default: https://api.github.com).
	// For GitHub Enterprise, use: https://github.example.com/api/v3
	BaseURL string

	// Labels to add to issues (e.g., "security", "release-blocker").
	Labels []string

	// Assignees are GitHub usernames to assign to issues.
	Assignees []string

	// MinSeverity requires the findings behind a failure to reach this
	// tier before an issue is created. Empty creates one on any FAIL.
	MinSeverity events.Severity

	// Timeout for HTTP requests (default: 10s).
	Timeout time.Duration

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// githubIssueRequest is the GitHub API issue create request.
type githubIssueRequest struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Labels    []string `json:"labels,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

// githubIssueResponse is the GitHub API create issue response.
type githubIssueResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// githubErrorResponse represents a GitHub API error.
type githubErrorResponse struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

// NewGitHubIssuesHook creates a new GitHub Issues hook.
// Returns an error if Owner or Repo contain invalid characters.
func NewGitHubIssuesHook(opts GitHubIssuesOptions) (*GitHubIssuesHook, error) {
	if !validGitHubName.MatchString(opts.Owner) {
		return nil, fmt.Errorf("invalid GitHub owner: %q", opts.Owner)
	}
	if !validGitHubName.MatchString(opts.Repo) {
		return nil, fmt.Errorf("invalid GitHub repo: %q", opts.Repo)
	}

	if opts.Timeout == 0 {
		opts.Timeout = defaults.TimeoutWebhook
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}

	return &GitHubIssuesHook{
		baseURL: baseURL,
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		logger:  orDefault(opts.Logger),
	}, nil
}

// OnEvent processes summary events and creates issues for failed runs.
func (h *GitHubIssuesHook) OnEvent(ctx context.Context, event events.Event) error {
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
func (h *GitHubIssuesHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeSummary,
	}
}

// createIssue creates a GitHub issue for the failed gate run.
func (h *GitHubIssuesHook) createIssue(ctx context.Context, summary *events.SummaryEvent) error {
	issue := h.buildIssue(summary)

	body, err := json.Marshal(issue)
	if err != nil {
		h.logger.Warn("failed to marshal issue", slog.String("error", err.Error()))
		return nil
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues", h.baseURL, h.opts.Owner, h.opts.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		h.logger.Warn("failed to create request", slog.String("error", err.Error()))
		return nil
	}

	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Authorization", "Bearer "+h.opts.Token)
	req.Header.Set("User-Agent", defaults.ToolName+"/"+defaults.Version)

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("request failed", slog.String("error", err.Error()))
		return nil
	}
	defer iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp githubErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			h.logger.Warn("API error", slog.Int("status", resp.StatusCode), slog.String("error", errResp.Message))
		} else {
			h.logger.Warn("API error", slog.Int("status", resp.StatusCode))
		}
		return nil
	}

	var issueResp githubIssueResponse
	if err := json.NewDecoder(resp.Body).Decode(&issueResp); err != nil {
		h.logger.Warn("failed to decode response", slog.String("error", err.Error()))
		return nil
	}

	h.logger.Info("created issue", slog.Int("number", issueResp.Number), slog.String("url", issueResp.HTMLURL))
	return nil
}

// buildIssue constructs the GitHub issue request from a failed gate run.
func (h *GitHubIssuesHook) buildIssue(summary *events.SummaryEvent) githubIssueRequest {
	dominant := dominantSeverity(summary.Totals)

	// Build labels
	labels := append([]string{}, h.opts.Labels...)
	labels = append(labels, severityToGitHubLabel(dominant))

	// Build title
	title := fmt.Sprintf("[Security Gate] %s failed with risk score %d",
		summary.AppName, summary.Verdict.RiskScore)

	// Build markdown body
	var sb strings.Builder

	sb.WriteString("## Security Gate Failure\n\n")

	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| **App** | `%s` |\n", summary.AppName))
	sb.WriteString(fmt.Sprintf("| **Status** | %s |\n", summary.Verdict.Status))
	sb.WriteString(fmt.Sprintf("| **Rule** | %s |\n", summary.Verdict.Rule))
	sb.WriteString(fmt.Sprintf("| **Risk Score** | %d |\n", summary.Verdict.RiskScore))
	sb.WriteString(fmt.Sprintf("| **Findings** | %d |\n", summary.TotalFindings))
	sb.WriteString(fmt.Sprintf("| **Highest Severity** | %s |\n", severityEmoji(dominant)))
	sb.WriteString(fmt.Sprintf("| **Policy** | %s |\n", summary.Policy.Reference))

	if len(summary.Violations) > 0 {
		sb.WriteString("\n### Violations\n\n")
		for _, v := range summary.Violations {
			sb.WriteString(fmt.Sprintf("- %s\n", v))
		}
	}

	if reg := summary.Regression; reg != nil && !reg.Accepted {
		sb.WriteString("\n### Regression\n\n")
		sb.WriteString("| Baseline | Current | Delta | Tolerance |\n")
		sb.WriteString("|----------|---------|-------|-----------|\n")
		sb.WriteString(fmt.Sprintf("| %d | %d | %+d | %s |\n",
			reg.BaselineScore, reg.CurrentScore, reg.Delta, reg.Tolerance))
	}

	if len(summary.Recommendations) > 0 {
		sb.WriteString("\n### Recommended Actions\n\n")
		for i, r := range summary.Recommendations {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, r))
		}
	}

	sb.WriteString("\n---\n")
	sb.WriteString(fmt.Sprintf("*Created by %s v%s*\n", defaults.ToolName, defaults.Version))

	return githubIssueRequest{
		Title:     title,
		Body:      sb.String(),
		Labels:    labels,
		Assignees: h.opts.Assignees,
	}
}

// severityEmoji returns a severity indicator with emoji.
func severityEmoji(sev events.Severity) string {
	switch sev {
	case events.SeverityCritical:
		return "🔴 Critical"
	case events.SeverityHigh:
		return "🟠 High"
	case events.SeverityMedium:
		return "🟡 Medium"
	case events.SeverityLow:
		return "🟢 Low"
	default:
		return "ℹ️ Info"
	}
}

// severityToGitHubLabel converts severity to a GitHub-friendly label.
func severityToGitHubLabel(sev events.Severity) string {
	switch sev {
	case events.SeverityCritical:
		return "severity:critical"
	case events.SeverityHigh:
		return "severity:high"
	case events.SeverityMedium:
		return "severity:medium"
	case events.SeverityLow:
		return "severity:low"
	default:
		return "severity:info"
	}
}
