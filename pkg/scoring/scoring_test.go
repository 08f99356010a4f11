package scoring

import (
	"errors"
	"testing"

	"github.com/riskgate/riskgate/pkg/finding"
)

func TestAggregate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		findings []finding.Finding
		want     Counts
	}{
		{
			name:     "empty set",
			findings: nil,
			want:     Counts{},
		},
		{
			name: "one per tier",
			findings: []finding.Finding{
				{Name: "a", Severity: finding.Critical},
				{Name: "b", Severity: finding.High},
				{Name: "c", Severity: finding.Medium},
				{Name: "d", Severity: finding.Low},
				{Name: "e", Severity: finding.Info},
			},
			want: Counts{Critical: 1, High: 1, Medium: 1, Low: 1, Info: 1},
		},
		{
			name: "mixed case from upstream",
			findings: []finding.Finding{
				{Name: "a", Severity: "CRITICAL"},
				{Name: "b", Severity: "High"},
				{Name: "c", Severity: " medium "},
			},
			want: Counts{Critical: 1, High: 1, Medium: 1},
		},
		{
			name: "repeat tier",
			findings: []finding.Finding{
				{Name: "a", Severity: finding.Medium},
				{Name: "b", Severity: finding.Medium},
				{Name: "c", Severity: finding.Medium},
				{Name: "d", Severity: finding.Medium},
			},
			want: Counts{Medium: 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Aggregate(tt.findings)
			if err != nil {
				t.Fatalf("Aggregate: %v", err)
			}
			if got != tt.want {
				t.Errorf("Aggregate = %+v, want %+v", got, tt.want)
			}
			if got.Total() != len(tt.findings) {
				t.Errorf("Total() = %d, want %d", got.Total(), len(tt.findings))
			}
		})
	}
}

func TestAggregate_InvalidSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		findings []finding.Finding
	}{
		{"unknown tier", []finding.Finding{{Name: "x", Severity: "severe"}}},
		{"missing severity", []finding.Finding{{Name: "x"}}},
		{"bad finding after good ones", []finding.Finding{
			{Name: "ok", Severity: finding.Low},
			{Name: "bad", Severity: "moderate"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Aggregate(tt.findings)
			if err == nil {
				t.Fatal("Aggregate accepted an invalid severity")
			}
			if !errors.Is(err, finding.ErrInvalidSeverity) {
				t.Errorf("error = %v, want ErrInvalidSeverity", err)
			}
		})
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	defaults := DefaultWeights()

	tests := []struct {
		name   string
		counts Counts
		w      Weights
		want   int
	}{
		{"empty", Counts{}, defaults, 0},
		{"one critical", Counts{Critical: 1}, defaults, 10},
		{"four medium", Counts{Medium: 4}, defaults, 16},
		{"two medium", Counts{Medium: 2}, defaults, 8},
		{"all tiers", Counts{Critical: 1, High: 1, Medium: 1, Low: 1, Info: 1}, defaults, 24},
		{"low volume drives score", Counts{Medium: 1, Low: 6}, defaults, 16},
		{"custom weights", Counts{Critical: 2, Info: 3}, Weights{Critical: 1, Info: 1}, 5},
		{"zeroed tier weight", Counts{Info: 100}, Weights{Critical: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Score(tt.counts, tt.w); got != tt.want {
				t.Errorf("Score(%+v) = %d, want %d", tt.counts, got, tt.want)
			}
		})
	}
}

func TestScore_MonotonicInFindings(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	base := Counts{Critical: 1, High: 2, Medium: 3, Low: 4, Info: 5}
	baseScore := Score(base, w)

	additions := []Counts{
		{Critical: base.Critical + 1, High: base.High, Medium: base.Medium, Low: base.Low, Info: base.Info},
		{Critical: base.Critical, High: base.High + 1, Medium: base.Medium, Low: base.Low, Info: base.Info},
		{Critical: base.Critical, High: base.High, Medium: base.Medium + 1, Low: base.Low, Info: base.Info},
		{Critical: base.Critical, High: base.High, Medium: base.Medium, Low: base.Low + 1, Info: base.Info},
		{Critical: base.Critical, High: base.High, Medium: base.Medium, Low: base.Low, Info: base.Info + 1},
	}
	for _, c := range additions {
		if got := Score(c, w); got < baseScore {
			t.Errorf("adding a finding decreased the score: %d < %d for %+v", got, baseScore, c)
		}
	}
}

func TestWeightsValidate(t *testing.T) {
	t.Parallel()

	if err := DefaultWeights().Validate(); err != nil {
		t.Errorf("default weights invalid: %v", err)
	}
	if err := (Weights{}).Validate(); err != nil {
		t.Errorf("zero weights should validate: %v", err)
	}
	if err := (Weights{Medium: -1}).Validate(); err == nil {
		t.Error("negative weight must not validate")
	}
}

func TestCountsGet(t *testing.T) {
	t.Parallel()

	c := Counts{Critical: 1, High: 2, Medium: 3, Low: 4, Info: 5}
	for _, tier := range finding.Tiers() {
		if got := c.Get(tier); got == 0 {
			t.Errorf("Get(%s) = 0, want non-zero", tier)
		}
	}
	if got := c.Get("bogus"); got != 0 {
		t.Errorf("Get(bogus) = %d, want 0", got)
	}
}

func TestWeightsGet(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	want := map[finding.Severity]int{
		finding.Critical: 10,
		finding.High:     7,
		finding.Medium:   4,
		finding.Low:      2,
		finding.Info:     1,
	}
	for tier, weight := range want {
		if got := w.Get(tier); got != weight {
			t.Errorf("Get(%s) = %d, want %d", tier, got, weight)
		}
	}
	if got := w.Get("bogus"); got != 0 {
		t.Errorf("Get(bogus) = %d, want 0", got)
	}
}
