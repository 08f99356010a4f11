package finding

import "testing"

func TestFingerprint_OrderIndependent(t *testing.T) {
	t.Parallel()

	a := []Finding{
		{Name: "SQLi", Severity: Critical, Source: "zap", Rule: "40018", Location: "/search"},
		{Name: "XSS", Severity: Medium, Source: "zap", Rule: "40012", Location: "/profile"},
	}
	b := []Finding{a[1], a[0]}

	if got, want := Fingerprint(a), Fingerprint(b); got != want {
		t.Errorf("fingerprint depends on ordering: %q vs %q", got, want)
	}
}

func TestFingerprint_SensitiveToSeverity(t *testing.T) {
	t.Parallel()

	a := []Finding{{Name: "SQLi", Severity: Critical, Source: "zap", Rule: "40018"}}
	b := []Finding{{Name: "SQLi", Severity: High, Source: "zap", Rule: "40018"}}

	if Fingerprint(a) == Fingerprint(b) {
		t.Error("fingerprint must change when a finding's severity changes")
	}
}

func TestFingerprint_Shape(t *testing.T) {
	t.Parallel()

	got := Fingerprint(nil)
	if len(got) != 32 {
		t.Errorf("Fingerprint(nil) length = %d, want 32 hex chars", len(got))
	}
	if got != Fingerprint([]Finding{}) {
		t.Error("nil and empty finding sets must fingerprint identically")
	}
}
