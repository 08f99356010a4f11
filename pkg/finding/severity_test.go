package finding

import (
	"errors"
	"testing"
)

func TestSeverityIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    Severity
		want bool
	}{
		{Critical, true},
		{High, true},
		{Medium, true},
		{Low, true},
		{Info, true},
		{"Unknown", false},
		{"", false},
		{"CRITICAL", false}, // case-sensitive
		{"Critical", false}, // must be lowercase
	}
	for _, tt := range tests {
		t.Run(string(tt.s), func(t *testing.T) {
			t.Parallel()
			if got := tt.s.IsValid(); got != tt.want {
				t.Errorf("Severity(%q).IsValid() = %v, want %v", tt.s, got, tt.want)
			}
		})
	}
}

func TestSeverityRank(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    Severity
		want int
	}{
		{Critical, 5},
		{High, 4},
		{Medium, 3},
		{Low, 2},
		{Info, 1},
		{"Unknown", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.s), func(t *testing.T) {
			t.Parallel()
			if got := tt.s.Rank(); got != tt.want {
				t.Errorf("Severity(%q).Rank() = %d, want %d", tt.s, got, tt.want)
			}
		})
	}
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    Severity
		wantErr bool
	}{
		{"lowercase", "critical", Critical, false},
		{"uppercase", "CRITICAL", Critical, false},
		{"mixed case", "High", High, false},
		{"padded", "  medium  ", Medium, false},
		{"info", "INFO", Info, false},
		{"unknown", "severe", "", true},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSeverity(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSeverity(%q) = %q, want error", tt.in, got)
				}
				if !errors.Is(err, ErrInvalidSeverity) {
					t.Errorf("ParseSeverity(%q) error = %v, want ErrInvalidSeverity", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSeverity(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseSeverity(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSeverityLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s     Severity
		label string
		upper string
	}{
		{Critical, "Critical", "CRITICAL"},
		{High, "High", "HIGH"},
		{Medium, "Medium", "MEDIUM"},
		{Low, "Low", "LOW"},
		{Info, "Info", "INFO"},
	}
	for _, tt := range tests {
		if got := tt.s.Label(); got != tt.label {
			t.Errorf("Severity(%q).Label() = %q, want %q", tt.s, got, tt.label)
		}
		if got := tt.s.Upper(); got != tt.upper {
			t.Errorf("Severity(%q).Upper() = %q, want %q", tt.s, got, tt.upper)
		}
	}
}

func TestSeverityToSARIF(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s     Severity
		level string
		score string
	}{
		{Critical, "error", "9.5"},
		{High, "error", "8.0"},
		{Medium, "warning", "5.5"},
		{Low, "note", "2.0"},
		{Info, "note", "0.0"},
		{"bogus", "note", "0.0"},
	}
	for _, tt := range tests {
		if got := tt.s.ToSARIF(); got != tt.level {
			t.Errorf("Severity(%q).ToSARIF() = %q, want %q", tt.s, got, tt.level)
		}
		if got := tt.s.ToSARIFScore(); got != tt.score {
			t.Errorf("Severity(%q).ToSARIFScore() = %q, want %q", tt.s, got, tt.score)
		}
	}
}

func TestTiersOrder(t *testing.T) {
	t.Parallel()

	tiers := Tiers()
	if len(tiers) != 5 {
		t.Fatalf("Tiers() returned %d tiers, want 5", len(tiers))
	}
	for i := 1; i < len(tiers); i++ {
		if tiers[i-1].Rank() <= tiers[i].Rank() {
			t.Errorf("Tiers() not in descending rank order at %d: %v", i, tiers)
		}
	}
}
