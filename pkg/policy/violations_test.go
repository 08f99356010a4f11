package policy

import (
	"reflect"
	"testing"

	"github.com/riskgate/riskgate/pkg/scoring"
)

func TestViolations_Messages(t *testing.T) {
	policy := Default()

	tests := []struct {
		name   string
		counts scoring.Counts
		want   []string
	}{
		{
			name:   "clean",
			counts: scoring.Counts{},
			want:   []string{},
		},
		{
			name:   "critical",
			counts: scoring.Counts{Critical: 2},
			want:   []string{"Found 2 CRITICAL severity findings"},
		},
		{
			name:   "high",
			counts: scoring.Counts{High: 1},
			want:   []string{"Found 1 HIGH severity findings"},
		},
		{
			name:   "critical and high stacked in order",
			counts: scoring.Counts{Critical: 1, High: 3},
			want: []string{
				"Found 1 CRITICAL severity findings",
				"Found 3 HIGH severity findings",
			},
		},
		{
			name:   "medium volume includes threshold",
			counts: scoring.Counts{Medium: 5},
			want:   []string{"Found 5 MEDIUM severity findings (threshold: 3)"},
		},
		{
			name:   "risk score includes threshold",
			counts: scoring.Counts{Medium: 3, Low: 2},
			want:   []string{"Risk score 16 exceeds allowed threshold (threshold: 15)"},
		},
		{
			name:   "score over limit without mediums is not a violation",
			counts: scoring.Counts{Low: 10},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := scoring.Score(tt.counts, scoring.DefaultWeights())
			got := policy.Violations(tt.counts, score)
			if got == nil {
				t.Fatal("violations must never be nil")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestViolations_ConfiguredThresholdRendered(t *testing.T) {
	policy := &Policy{
		Thresholds: Thresholds{
			MediumCount: intPtr(1),
			RiskScore:   intPtr(5),
		},
	}

	counts := scoring.Counts{Medium: 2}
	score := scoring.Score(counts, scoring.DefaultWeights())
	got := policy.Violations(counts, score)
	want := []string{"Found 2 MEDIUM severity findings (threshold: 1)"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	counts = scoring.Counts{Medium: 1}
	score = scoring.Score(counts, scoring.DefaultWeights())
	got = policy.Violations(counts, score)
	if len(got) != 0 {
		t.Fatalf("unexpected violations: %v", got)
	}

	counts = scoring.Counts{Medium: 1, Low: 1}
	score = scoring.Score(counts, scoring.DefaultWeights())
	got = policy.Violations(counts, score)
	want = []string{"Risk score 6 exceeds allowed threshold (threshold: 5)"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRecommendations_Messages(t *testing.T) {
	policy := Default()

	tests := []struct {
		name   string
		counts scoring.Counts
		want   []string
	}{
		{
			name:   "clean gets the maintenance line",
			counts: scoring.Counts{},
			want:   []string{"Continue maintaining the current security posture"},
		},
		{
			name:   "critical",
			counts: scoring.Counts{Critical: 1},
			want:   []string{"Immediately address all CRITICAL vulnerabilities"},
		},
		{
			name:   "high",
			counts: scoring.Counts{High: 2},
			want:   []string{"Prioritize remediation of HIGH severity issues"},
		},
		{
			name:   "medium volume",
			counts: scoring.Counts{Medium: 4},
			want:   []string{"Plan to reduce MEDIUM severity findings below policy thresholds"},
		},
		{
			name:   "risk score",
			counts: scoring.Counts{Medium: 2, Low: 4},
			want:   []string{"Reduce the aggregate risk score below policy thresholds"},
		},
		{
			name:   "everything at once",
			counts: scoring.Counts{Critical: 1, High: 1, Medium: 9},
			want: []string{
				"Immediately address all CRITICAL vulnerabilities",
				"Prioritize remediation of HIGH severity issues",
				"Plan to reduce MEDIUM severity findings below policy thresholds",
			},
		},
		{
			name:   "low noise stays on maintenance",
			counts: scoring.Counts{Low: 3, Info: 10},
			want:   []string{"Continue maintaining the current security posture"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := scoring.Score(tt.counts, scoring.DefaultWeights())
			got := policy.Recommendations(tt.counts, score)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
