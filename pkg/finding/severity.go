package finding

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Severity represents the severity tier of a security finding.
// All values are lowercase strings; upstream adapters may emit any
// casing, which ParseSeverity normalizes at the boundary.
type Severity string

const (
	// Critical represents immediate compromise (RCE, auth bypass).
	Critical Severity = "critical"

	// High represents significant impact requiring prompt fix (SQLi, stored XSS).
	High Severity = "high"

	// Medium represents moderate impact (reflected XSS, CSRF).
	Medium Severity = "medium"

	// Low represents limited impact (verbose errors, minor info leak).
	Low Severity = "low"

	// Info represents informational findings with no direct security impact.
	Info Severity = "info"
)

// Tiers returns all severity tiers in descending order of weight.
func Tiers() []Severity {
	return []Severity{Critical, High, Medium, Low, Info}
}

// ParseSeverity normalizes s case-insensitively to a canonical tier.
// Anything that does not match one of the five tiers is an error wrapping
// ErrInvalidSeverity; callers must treat that as fatal for the run rather
// than bucketing the finding somewhere quieter.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
	}
	return sev, nil
}

// IsValid reports whether s is a recognized severity tier.
func (s Severity) IsValid() bool {
	switch s {
	case Critical, High, Medium, Low, Info:
		return true
	}
	return false
}

// Rank returns a numeric rank for sorting and clustering.
// Critical=5, High=4, Medium=3, Low=2, Info=1, Unknown=0.
func (s Severity) Rank() int {
	switch s {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}

var labelCaser = cases.Title(language.English)

// Label returns the display form of the severity ("Critical", "High", ...).
func (s Severity) Label() string {
	return labelCaser.String(string(s))
}

// Upper returns the uppercase wire form used by report consumers
// ("CRITICAL", "HIGH", ...).
func (s Severity) Upper() string {
	return strings.ToUpper(string(s))
}

// ToSARIF maps severity to SARIF result level.
// Critical/High → error, Medium → warning, Low/Info → note.
// See: https://docs.oasis-open.org/sarif/sarif/v2.1.0/
func (s Severity) ToSARIF() string {
	switch s {
	case Critical, High:
		return "error"
	case Medium:
		return "warning"
	default:
		return "note"
	}
}

// ToSARIFScore maps severity to GitHub security-severity score.
// These scores align with GitHub Advanced Security severity thresholds.
func (s Severity) ToSARIFScore() string {
	switch s {
	case Critical:
		return "9.5"
	case High:
		return "8.0"
	case Medium:
		return "5.5"
	case Low:
		return "2.0"
	default:
		return "0.0"
	}
}
