package finding

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("aggregating: %w", ErrInvalidSeverity)
	if !errors.Is(wrapped, ErrInvalidSeverity) {
		t.Error("errors.Is must work through wrapping for ErrInvalidSeverity")
	}
	if got := ErrInvalidSeverity.Error(); got != "finding: invalid severity" {
		t.Errorf("ErrInvalidSeverity.Error() = %q", got)
	}
}
