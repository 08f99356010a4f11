package baseline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/riskgate/riskgate/pkg/policy"
)

// DefaultTolerance is the absolute risk score increase accepted before
// the guard rejects a run.
const DefaultTolerance = 5

// Tolerance configures how much risk score growth the guard accepts.
type Tolerance struct {
	// Value is the accepted increase: an absolute score delta, or a
	// percentage of the baseline score when Percent is set.
	Value float64

	// Percent interprets Value as a percentage of the baseline score.
	Percent bool
}

// DefaultToleranceValue returns the guard's built-in tolerance.
func DefaultToleranceValue() Tolerance {
	return Tolerance{Value: DefaultTolerance}
}

// Allowance returns the absolute score increase accepted against the
// given baseline score.
func (t Tolerance) Allowance(baselineScore int) float64 {
	if t.Percent {
		return float64(baselineScore) * t.Value / 100
	}
	return t.Value
}

// String renders the tolerance the way guard messages expect it.
func (t Tolerance) String() string {
	v := strconv.FormatFloat(t.Value, 'f', -1, 64)
	if t.Percent {
		return v + "%"
	}
	return v
}

// RegressionReport is the outcome of comparing a run against the
// stored baseline. The guard only reports; mapping a rejection to an
// exit code or a blocked pipeline is the caller's job.
type RegressionReport struct {
	// Accepted is false when the score increase exceeds the tolerance.
	Accepted bool `json:"accepted"`

	// FirstRun is set when no baseline existed for the application.
	FirstRun bool `json:"first_run"`

	// Unchanged is set when the score matches the baseline exactly.
	Unchanged bool `json:"unchanged"`

	BaselineScore int     `json:"baseline_score"`
	CurrentScore  int     `json:"current_score"`
	Delta         int     `json:"delta"`
	Tolerance     float64 `json:"tolerance"`
	TolerancePct  bool    `json:"tolerance_pct,omitempty"`

	// BaselineRunID identifies the run that recorded the baseline.
	BaselineRunID string `json:"baseline_run_id,omitempty"`

	// BaselineRecordedAt is when the baseline was first recorded.
	BaselineRecordedAt time.Time `json:"baseline_recorded_at,omitzero"`

	// Detail is the score comparison line, empty on a first run.
	Detail string `json:"detail,omitempty"`

	// Summary is the guard's one-line verdict.
	Summary string `json:"summary"`
}

// CheckRegression compares the current evaluation against the stored
// baseline for the application.
//
// A missing baseline means a first run: the report comes back accepted
// with FirstRun set and the caller is expected to record the baseline.
// Any other store failure returns an error wrapping
// ErrBaselineUnavailable; the guard fails closed rather than silently
// skipping the comparison.
func CheckRegression(ctx context.Context, store Store, app string, current *policy.Result, tol Tolerance) (*RegressionReport, error) {
	b, err := store.Get(ctx, app)
	if err != nil {
		if errors.Is(err, ErrBaselineNotFound) {
			return &RegressionReport{
				Accepted:     true,
				FirstRun:     true,
				CurrentScore: current.RiskScore,
				Tolerance:    tol.Value,
				TolerancePct: tol.Percent,
				Summary:      "No previous evaluation found, skipping regression check.",
			}, nil
		}
		if errors.Is(err, ErrBaselineUnavailable) || errors.Is(err, ErrInvalidBaseline) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrBaselineUnavailable, err)
	}

	delta := current.RiskScore - b.RiskScore
	accepted := float64(delta) <= tol.Allowance(b.RiskScore)

	report := &RegressionReport{
		Accepted:           accepted,
		Unchanged:          delta == 0,
		BaselineScore:      b.RiskScore,
		CurrentScore:       current.RiskScore,
		Delta:              delta,
		Tolerance:          tol.Value,
		TolerancePct:       tol.Percent,
		BaselineRunID:      b.RunID,
		BaselineRecordedAt: b.RecordedAt,
		Detail: fmt.Sprintf("Current risk score: %d, previous: %d, delta: %d",
			current.RiskScore, b.RiskScore, delta),
	}
	if accepted {
		report.Summary = "Regression guard passed."
	} else {
		report.Summary = fmt.Sprintf("Risk score increased by %d which exceeds the threshold of %s.",
			delta, tol)
	}

	return report, nil
}
