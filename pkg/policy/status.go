package policy

import (
	"fmt"
	"strings"
)

// Status is the overall verdict of a policy evaluation.
type Status string

const (
	// StatusPass means every threshold was respected.
	StatusPass Status = "PASS"

	// StatusWarn means the findings need attention but do not block.
	StatusWarn Status = "WARN"

	// StatusFail means the findings violate a blocking threshold.
	StatusFail Status = "FAIL"
)

// Statuses returns all verdicts ordered from best to worst.
func Statuses() []Status {
	return []Status{StatusPass, StatusWarn, StatusFail}
}

// ParseStatus converts a string into a Status, accepting any casing.
// Returns ErrInvalidStatus for unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// IsValid reports whether the status is one of the known verdicts.
func (s Status) IsValid() bool {
	switch s {
	case StatusPass, StatusWarn, StatusFail:
		return true
	}
	return false
}

// Rank returns a numeric severity for the verdict, higher is worse.
func (s Status) Rank() int {
	switch s {
	case StatusFail:
		return 2
	case StatusWarn:
		return 1
	case StatusPass:
		return 0
	default:
		return -1
	}
}

// Worst returns the more severe of the two verdicts.
func Worst(a, b Status) Status {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// String returns the wire form of the status.
func (s Status) String() string {
	return string(s)
}
