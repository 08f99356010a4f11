// Package exitcode provides semantic exit codes for CI/CD integration.
// Exit codes communicate evaluation outcomes to automation pipelines.
//
// Exit codes:
//   - 0: Success (gate passed)
//   - 1: Gate failed (configurable)
//   - 2: Regression detected
//   - 3: Invalid configuration
//   - 4: Invalid input
//   - 5: Baseline unavailable
//   - 6: Internal error
package exitcode

import (
	"errors"
	"fmt"
	"sync"

	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/input"
	"github.com/riskgate/riskgate/pkg/policy"
)

// Code represents a semantic exit code for CI/CD pipelines.
type Code int

const (
	// Success indicates the evaluation completed and the gate passed.
	Success Code = 0
	// GateFailed indicates the findings violated a blocking threshold.
	GateFailed Code = 1
	// Regression indicates the risk score grew beyond the tolerance.
	Regression Code = 2
	// Configuration indicates invalid configuration was provided.
	Configuration Code = 3
	// Input indicates the findings input was missing or malformed.
	Input Code = 4
	// Baseline indicates the baseline store could not be used.
	Baseline Code = 5
	// Internal indicates an unexpected failure inside the tool.
	Internal Code = 6
)

// codeStrings maps exit codes to machine-readable names.
var codeStrings = map[Code]string{
	Success:       "success",
	GateFailed:    "gate_failed",
	Regression:    "regression_detected",
	Configuration: "invalid_configuration",
	Input:         "invalid_input",
	Baseline:      "baseline_unavailable",
	Internal:      "internal_error",
}

// codeDescriptions provides detailed descriptions for exit codes.
var codeDescriptions = map[Code]string{
	Success:       "Evaluation completed and the gate passed",
	GateFailed:    "One or more policy thresholds were violated",
	Regression:    "Risk score increased beyond the allowed tolerance",
	Configuration: "Invalid configuration provided",
	Input:         "Findings input was missing or malformed",
	Baseline:      "Baseline store was unavailable",
	Internal:      "Evaluation aborted by an internal error",
}

// Config holds configuration for the exit code manager.
type Config struct {
	// FailCode is the exit code to return when the gate fails.
	// Default: 1
	FailCode int

	// FailOnWarn treats a WARN verdict as a gate failure.
	FailOnWarn bool
}

// DefaultConfig returns the default exit code configuration.
func DefaultConfig() Config {
	return Config{
		FailCode: 1,
	}
}

// Manager tracks evaluation outcomes and determines the exit code.
type Manager struct {
	cfg Config
	mu  sync.Mutex

	gateFailed    bool
	warned        bool
	regression    bool
	configError   bool
	inputError    bool
	baselineError bool
	internalError bool
}

// New creates a new exit code manager with the given configuration.
func New(cfg Config) *Manager {
	if cfg.FailCode == 0 {
		cfg.FailCode = 1
	}
	return &Manager{cfg: cfg}
}

// RecordStatus records the gate verdict of an evaluation.
func (m *Manager) RecordStatus(status policy.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch status {
	case policy.StatusFail:
		m.gateFailed = true
	case policy.StatusWarn:
		m.warned = true
	}
}

// RecordRegression records the outcome of the regression guard.
func (m *Manager) RecordRegression(report *baseline.RegressionReport) {
	if report == nil || report.Accepted {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regression = true
}

// RecordError classifies an error into the matching state flag.
func (m *Manager) RecordError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	switch Classify(err) {
	case Configuration:
		m.configError = true
	case Input:
		m.inputError = true
	case Baseline:
		m.baselineError = true
	default:
		m.internalError = true
	}
}

// SetConfigError marks that a configuration error occurred.
func (m *Manager) SetConfigError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configError = true
}

// SetInputError marks that the findings input was unusable.
func (m *Manager) SetInputError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputError = true
}

// SetBaselineError marks that the baseline store failed.
func (m *Manager) SetBaselineError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baselineError = true
}

// SetInternalError marks that an unexpected failure occurred.
func (m *Manager) SetInternalError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.internalError = true
}

// ExitCode returns the appropriate exit code based on recorded outcomes.
// The returned string provides a human-readable reason for the code.
//
// Priority order (highest to lowest):
//  1. Internal error
//  2. Configuration error
//  3. Input error
//  4. Baseline unavailable
//  5. Gate failed
//  6. Regression detected
//  7. Success
func (m *Manager) ExitCode() (Code, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.internalError {
		return Internal, codeDescriptions[Internal]
	}
	if m.configError {
		return Configuration, codeDescriptions[Configuration]
	}
	if m.inputError {
		return Input, codeDescriptions[Input]
	}
	if m.baselineError {
		return Baseline, codeDescriptions[Baseline]
	}
	if m.gateFailed || (m.cfg.FailOnWarn && m.warned) {
		return Code(m.cfg.FailCode), codeDescriptions[GateFailed]
	}
	if m.regression {
		return Regression, codeDescriptions[Regression]
	}

	return Success, codeDescriptions[Success]
}

// Reset clears all recorded outcomes and state flags.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateFailed = false
	m.warned = false
	m.regression = false
	m.configError = false
	m.inputError = false
	m.baselineError = false
	m.internalError = false
}

// Classify maps an error to the exit code describing it.
func Classify(err error) Code {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, policy.ErrPolicyNotFound),
		errors.Is(err, policy.ErrInvalidPolicy):
		return Configuration
	case errors.Is(err, input.ErrInputNotFound),
		errors.Is(err, input.ErrInvalidInput),
		errors.Is(err, input.ErrInputTooLarge),
		errors.Is(err, finding.ErrInvalidSeverity):
		return Input
	case errors.Is(err, baseline.ErrBaselineUnavailable),
		errors.Is(err, baseline.ErrInvalidBaseline):
		return Baseline
	default:
		return Internal
	}
}

// CodeString returns the machine-readable name of an exit code.
func CodeString(code Code) string {
	if s, ok := codeStrings[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown_code_%d", code)
}

// CodeDescription returns a detailed description of an exit code.
func CodeDescription(code Code) string {
	if s, ok := codeDescriptions[code]; ok {
		return s
	}
	return fmt.Sprintf("Unknown exit code %d", code)
}
