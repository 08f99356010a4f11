package baseline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/riskgate/riskgate/pkg/policy"
)

// stubStore lets tests inject store outcomes without touching disk.
type stubStore struct {
	baseline *Baseline
	getErr   error
	putErr   error
}

func (s *stubStore) Get(ctx context.Context, app string) (*Baseline, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.baseline == nil {
		return nil, ErrBaselineNotFound
	}
	return s.baseline, nil
}

func (s *stubStore) Put(ctx context.Context, app string, b *Baseline) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.baseline = b
	return nil
}

func (s *stubStore) Delete(ctx context.Context, app string) error { return nil }

func (s *stubStore) List(ctx context.Context) ([]*Baseline, error) { return nil, nil }

func result(score int) *policy.Result {
	return &policy.Result{Status: policy.StatusPass, RiskScore: score}
}

func TestCheckRegression_FirstRun(t *testing.T) {
	store := &stubStore{}

	report, err := CheckRegression(context.Background(), store, "new-app", result(12), DefaultToleranceValue())
	if err != nil {
		t.Fatalf("CheckRegression: %v", err)
	}
	if !report.Accepted || !report.FirstRun {
		t.Errorf("first run must be accepted, got %+v", report)
	}
	if report.Delta != 0 || report.BaselineScore != 0 {
		t.Errorf("first run should carry no delta, got %+v", report)
	}
	if report.Summary != "No previous evaluation found, skipping regression check." {
		t.Errorf("unexpected summary: %q", report.Summary)
	}
	if report.Detail != "" {
		t.Errorf("first run should carry no detail, got %q", report.Detail)
	}
}

func TestCheckRegression(t *testing.T) {
	tests := []struct {
		name          string
		baselineScore int
		currentScore  int
		tol           Tolerance
		wantAccepted  bool
		wantDelta     int
		wantUnchanged bool
		wantSummary   string
	}{
		{
			name:          "within tolerance",
			baselineScore: 10,
			currentScore:  14,
			tol:           Tolerance{Value: 5},
			wantAccepted:  true,
			wantDelta:     4,
			wantSummary:   "Regression guard passed.",
		},
		{
			name:          "exactly at tolerance",
			baselineScore: 10,
			currentScore:  15,
			tol:           Tolerance{Value: 5},
			wantAccepted:  true,
			wantDelta:     5,
			wantSummary:   "Regression guard passed.",
		},
		{
			name:          "over tolerance",
			baselineScore: 10,
			currentScore:  25,
			tol:           Tolerance{Value: 10},
			wantAccepted:  false,
			wantDelta:     15,
			wantSummary:   "Risk score increased by 15 which exceeds the threshold of 10.",
		},
		{
			name:          "one over default tolerance",
			baselineScore: 10,
			currentScore:  16,
			tol:           DefaultToleranceValue(),
			wantAccepted:  false,
			wantDelta:     6,
			wantSummary:   "Risk score increased by 6 which exceeds the threshold of 5.",
		},
		{
			name:          "improvement",
			baselineScore: 20,
			currentScore:  8,
			tol:           Tolerance{Value: 5},
			wantAccepted:  true,
			wantDelta:     -12,
			wantSummary:   "Regression guard passed.",
		},
		{
			name:          "unchanged",
			baselineScore: 10,
			currentScore:  10,
			tol:           Tolerance{Value: 0},
			wantAccepted:  true,
			wantDelta:     0,
			wantUnchanged: true,
			wantSummary:   "Regression guard passed.",
		},
		{
			name:          "zero tolerance rejects any growth",
			baselineScore: 10,
			currentScore:  11,
			tol:           Tolerance{Value: 0},
			wantAccepted:  false,
			wantDelta:     1,
			wantSummary:   "Risk score increased by 1 which exceeds the threshold of 0.",
		},
		{
			name:          "percent within",
			baselineScore: 100,
			currentScore:  110,
			tol:           Tolerance{Value: 10, Percent: true},
			wantAccepted:  true,
			wantDelta:     10,
			wantSummary:   "Regression guard passed.",
		},
		{
			name:          "percent over",
			baselineScore: 100,
			currentScore:  111,
			tol:           Tolerance{Value: 10, Percent: true},
			wantAccepted:  false,
			wantDelta:     11,
			wantSummary:   "Risk score increased by 11 which exceeds the threshold of 10%.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStore{baseline: testBaseline("api", tt.baselineScore)}

			report, err := CheckRegression(context.Background(), store, "api", result(tt.currentScore), tt.tol)
			if err != nil {
				t.Fatalf("CheckRegression: %v", err)
			}
			if report.Accepted != tt.wantAccepted {
				t.Errorf("got accepted=%v, want %v", report.Accepted, tt.wantAccepted)
			}
			if report.Delta != tt.wantDelta {
				t.Errorf("got delta=%d, want %d", report.Delta, tt.wantDelta)
			}
			if report.Unchanged != tt.wantUnchanged {
				t.Errorf("got unchanged=%v, want %v", report.Unchanged, tt.wantUnchanged)
			}
			if report.FirstRun {
				t.Error("first run flag set with a baseline present")
			}
			if report.Summary != tt.wantSummary {
				t.Errorf("got summary %q, want %q", report.Summary, tt.wantSummary)
			}
			wantDetail := fmt.Sprintf("Current risk score: %d, previous: %d, delta: %d",
				tt.currentScore, tt.baselineScore, tt.wantDelta)
			if report.Detail != wantDetail {
				t.Errorf("got detail %q, want %q", report.Detail, wantDetail)
			}
		})
	}
}

func TestCheckRegression_StoreFailure(t *testing.T) {
	tests := []struct {
		name    string
		getErr  error
		wantErr error
	}{
		{"unavailable store", ErrBaselineUnavailable, ErrBaselineUnavailable},
		{"corrupt baseline", ErrInvalidBaseline, ErrInvalidBaseline},
		{"unexpected error wrapped", errors.New("disk on fire"), ErrBaselineUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStore{getErr: tt.getErr}

			report, err := CheckRegression(context.Background(), store, "api", result(10), DefaultToleranceValue())
			if err == nil {
				t.Fatal("store failure must not be treated as a first run")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error should wrap %v, got: %v", tt.wantErr, err)
			}
			if report != nil {
				t.Errorf("no report expected on store failure, got %+v", report)
			}
		})
	}
}

func TestTolerance_Allowance(t *testing.T) {
	tests := []struct {
		name          string
		tol           Tolerance
		baselineScore int
		want          float64
	}{
		{"absolute", Tolerance{Value: 5}, 100, 5},
		{"percent", Tolerance{Value: 10, Percent: true}, 50, 5},
		{"percent of zero baseline", Tolerance{Value: 10, Percent: true}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tol.Allowance(tt.baselineScore); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTolerance_String(t *testing.T) {
	tests := []struct {
		tol  Tolerance
		want string
	}{
		{Tolerance{Value: 5}, "5"},
		{Tolerance{Value: 2.5}, "2.5"},
		{Tolerance{Value: 10, Percent: true}, "10%"},
	}
	for _, tt := range tests {
		if got := tt.tol.String(); got != tt.want {
			t.Errorf("Tolerance%+v.String() = %q, want %q", tt.tol, got, tt.want)
		}
	}
}
