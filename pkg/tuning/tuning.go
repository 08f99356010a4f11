// Package tuning derives tuning guidance from recurring findings.
// It groups a run's findings by source and rule, surfaces the most
// frequent groups, and suggests where the upstream scan configuration
// can be adjusted when a finding is expected noise.
//
// The analysis never parses vendor report formats; it only reads the
// normalized finding fields, including the self-declared source tool.
package tuning

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/jsonutil"
)

// TopFinding is one recurring source:rule group with the details of
// its first occurrence.
type TopFinding struct {
	Source      string           `json:"source"`
	Rule        string           `json:"rule"`
	Name        string           `json:"name"`
	Count       int              `json:"count"`
	Severity    finding.Severity `json:"severity"`
	Location    string           `json:"location"`
	Description string           `json:"description"`
}

// Report is the tuning guidance for one run. GeneratedAt is a
// preformatted UTC timestamp so the report is stable once produced.
type Report struct {
	GeneratedAt     string       `json:"generated_at"`
	TopFindings     []TopFinding `json:"top_findings"`
	Violations      []string     `json:"violations"`
	Recommendations []string     `json:"recommendations"`
}

// timestampLayout matches the display format used in generated reports.
const timestampLayout = "2006-01-02 15:04 UTC"

// Analyze groups findings by source:rule and returns the limit most
// frequent groups together with the run's violations and
// recommendations. A limit of zero or less uses
// defaults.TuningTopFindings. Ties keep input order, so the analysis
// is deterministic for a given finding list.
func Analyze(findings []finding.Finding, violations, recommendations []string, limit int) *Report {
	if limit <= 0 {
		limit = defaults.TuningTopFindings
	}

	counts := make(map[string]int)
	details := make(map[string]TopFinding)
	order := make([]string, 0, len(findings))

	for _, f := range findings {
		source := f.Source
		if source == "" {
			source = "Unknown"
		}
		rule := f.Rule
		if rule == "" {
			rule = f.Name
		}
		key := source + ":" + rule

		if _, seen := counts[key]; !seen {
			order = append(order, key)
			details[key] = TopFinding{
				Source:      source,
				Rule:        rule,
				Name:        f.Name,
				Severity:    f.Severity,
				Location:    f.Location,
				Description: f.Description,
			}
		}
		counts[key]++
	}

	// Most frequent first; first-seen order breaks ties.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > limit {
		order = order[:limit]
	}

	top := make([]TopFinding, 0, len(order))
	for _, key := range order {
		tf := details[key]
		tf.Count = counts[key]
		top = append(top, tf)
	}

	if violations == nil {
		violations = []string{}
	}
	if recommendations == nil {
		recommendations = []string{}
	}

	return &Report{
		GeneratedAt:     time.Now().UTC().Format(timestampLayout),
		TopFindings:     top,
		Violations:      violations,
		Recommendations: recommendations,
	}
}

// Suggestions renders one actionable suggestion per recurring finding.
// Suggestions mention the finding's self-declared source tool when a
// known tuning surface exists for it.
func (r *Report) Suggestions() []string {
	suggestions := make([]string, 0, len(r.TopFindings))
	for _, tf := range r.TopFindings {
		base := fmt.Sprintf("%s rule %s (%s) triggered %d times at %s.",
			tf.Source, tf.Rule, tf.Name, tf.Count, tf.Location)
		switch strings.ToLower(tf.Source) {
		case "zap":
			base += " Consider tightening the ZAP alert filters (IGNORE/WARN/FAIL) or adding a suppression upstream."
		case "nuclei":
			base += " Refine the nuclei template selection to align with this endpoint."
		default:
			base += " Review whether this finding can be tuned or requires further investigation."
		}
		suggestions = append(suggestions, base)
	}
	return suggestions
}

// Markdown renders the report as a standalone markdown fragment.
func (r *Report) Markdown() string {
	lines := []string{
		fmt.Sprintf("### Automated tuning guidance (generated %s)", r.GeneratedAt),
		"",
	}

	suggestions := r.Suggestions()
	if len(suggestions) == 0 {
		lines = append(lines, "- No recurring findings detected; keep the baseline config as-is.")
	} else {
		for i, suggestion := range suggestions {
			lines = append(lines, fmt.Sprintf("- **%d.** %s", i+1, suggestion))
		}
	}

	if len(r.Violations) > 0 {
		lines = append(lines, "", "**Recent violations:**")
		for _, violation := range r.Violations {
			lines = append(lines, "- "+violation)
		}
	}
	if len(r.Recommendations) > 0 {
		lines = append(lines, "", "**Policy recommendations:**")
		for _, rec := range r.Recommendations {
			lines = append(lines, "- "+rec)
		}
	}

	return strings.Join(lines, "\n")
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return jsonutil.MarshalIndent(r, "", "  ")
}
