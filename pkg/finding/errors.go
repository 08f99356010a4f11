package finding

import "errors"

// Sentinel errors for finding validation failures.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidSeverity indicates a finding carried a severity that does
	// not match any canonical tier (including a missing severity). The
	// evaluation must halt rather than silently bucket the finding: a
	// miscounted tier would corrupt the risk score and the gate decision.
	ErrInvalidSeverity = errors.New("finding: invalid severity")
)
