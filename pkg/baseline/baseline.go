package baseline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/scoring"
)

// Version is the current baseline record format version.
const Version = "1.0"

// ErrBaselineNotFound is returned when no baseline exists for an application.
var ErrBaselineNotFound = errors.New("baseline not found")

// ErrInvalidBaseline is returned when a stored baseline is malformed.
var ErrInvalidBaseline = errors.New("invalid baseline")

// ErrBaselineUnavailable is returned when the store cannot be reached
// or read. Callers must treat this as a hard failure, never as a
// missing baseline.
var ErrBaselineUnavailable = errors.New("baseline unavailable")

// Baseline is the persisted reference evaluation for one application.
type Baseline struct {
	Version        string         `json:"version"`
	AppName        string         `json:"app_name"`
	Status         policy.Status  `json:"status"`
	RiskScore      int            `json:"risk_score"`
	SeverityCounts scoring.Counts `json:"severity_counts"`
	TotalFindings  int            `json:"total_findings"`

	// Fingerprint identifies the finding set the record was built from,
	// so an unchanged scan can be told apart from a coincidentally
	// equal score.
	Fingerprint string `json:"fingerprint,omitempty"`

	// RunID is the evaluation run that produced this record.
	RunID string `json:"run_id,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FromResult builds the baseline record to persist after an accepted run.
func FromResult(app string, result *policy.Result, runID, fingerprint string) *Baseline {
	now := time.Now().UTC()
	return &Baseline{
		Version:        Version,
		AppName:        app,
		Status:         result.Status,
		RiskScore:      result.RiskScore,
		SeverityCounts: result.SeverityCounts,
		TotalFindings:  result.TotalFindings,
		Fingerprint:    fingerprint,
		RunID:          runID,
		RecordedAt:     now,
		UpdatedAt:      now,
	}
}

// Validate checks the record for fields required by the guard.
// Returns an error wrapping ErrInvalidBaseline.
func (b *Baseline) Validate() error {
	if b.Version == "" {
		return fmt.Errorf("%w: missing version field", ErrInvalidBaseline)
	}
	if b.AppName == "" {
		return fmt.Errorf("%w: missing app_name field", ErrInvalidBaseline)
	}
	if b.RiskScore < 0 {
		return fmt.Errorf("%w: negative risk score", ErrInvalidBaseline)
	}
	return nil
}

// Store persists baselines keyed by application name.
type Store interface {
	// Get returns the baseline for the application.
	// Returns ErrBaselineNotFound when none has been recorded.
	Get(ctx context.Context, app string) (*Baseline, error)

	// Put records the baseline for the application, replacing any
	// previous record.
	Put(ctx context.Context, app string, b *Baseline) error

	// Delete removes the baseline for the application.
	// Returns ErrBaselineNotFound when none exists.
	Delete(ctx context.Context, app string) error

	// List returns all recorded baselines, sorted by application name.
	List(ctx context.Context) ([]*Baseline, error)
}
