package finding

import "sort"

// Finding is one normalized issue reported by an upstream scanner.
// Severity is the only field the gate evaluates; everything else is
// context carried through to reports and tuning guidance.
type Finding struct {
	Name        string   `json:"name"`
	Severity    Severity `json:"severity"`
	Source      string   `json:"source,omitempty"`
	Rule        string   `json:"rule,omitempty"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description,omitempty"`
	Solution    string   `json:"solution,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Document is the normalized input envelope produced by scanner adapters.
type Document struct {
	AppName  string    `json:"app_name"`
	Findings []Finding `json:"findings"`
}

// SortDescending orders findings in place by severity rank (critical
// first), then by name for a stable report layout.
func SortDescending(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		ri, rj := findings[i].Severity.Rank(), findings[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return findings[i].Name < findings[j].Name
	})
}

// AtOrAbove returns the findings whose severity rank is at least that of
// min. Used by reports to pull the critical/high focus section.
func AtOrAbove(findings []Finding, min Severity) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Severity.Rank() >= min.Rank() {
			out = append(out, f)
		}
	}
	return out
}
