package ui

import (
	"bytes"
	"testing"
)

func TestIcon(t *testing.T) {
	tests := []struct {
		name    string
		unicode string
		ascii   string
	}{
		{"check", "✔", "[+]"},
		{"cross", "✘", "[-]"},
		{"warning", "▲", "[!]"},
		{"empty_ascii", "📊", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Icon(tt.unicode, tt.ascii)

			// In test environment stderr is piped, so we expect ASCII.
			if !UnicodeTerminal() {
				if result != tt.ascii {
					t.Errorf("Icon(%q, %q) = %q; want ASCII %q (non-terminal env)",
						tt.unicode, tt.ascii, result, tt.ascii)
				}
			} else {
				if result != tt.unicode {
					t.Errorf("Icon(%q, %q) = %q; want Unicode %q (terminal env)",
						tt.unicode, tt.ascii, result, tt.unicode)
				}
			}
		})
	}
}

func TestStatusIcon(t *testing.T) {
	if UnicodeTerminal() {
		t.Skip("stderr is a real terminal; ASCII marker assertions require piped stderr")
	}

	tests := []struct {
		status string
		want   string
	}{
		{"PASS", "[+]"},
		{"WARN", "[!]"},
		{"FAIL", "[-]"},
		{"UNKNOWN", "[ ]"},
		{"", "[ ]"},
	}

	for _, tt := range tests {
		if got := StatusIcon(tt.status); got != tt.want {
			t.Errorf("StatusIcon(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestUnicodeTerminal(t *testing.T) {
	// In a test runner, stderr is piped — UnicodeTerminal() should return false.
	// This is a stable invariant for CI and local test runs.
	if UnicodeTerminal() {
		t.Log("UnicodeTerminal() returned true — running in a real terminal")
	} else {
		t.Log("UnicodeTerminal() returned false — piped/redirected (expected in tests)")
	}
}

func TestSanitizeString(t *testing.T) {
	if UnicodeTerminal() {
		t.Skip("stderr is a real terminal; sanitization assertions require piped stderr")
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ascii unchanged", "gate PASS risk=12", "gate PASS risk=12"},
		{"emoji dropped", "done 🎉", "done "},
		{"badge dropped", "✔ PASS", " PASS"},
		{"variation selector dropped", "warn️", "warn"},
		{"latin1 kept", "café", "café"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeString(tt.input); got != tt.want {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizef(t *testing.T) {
	if UnicodeTerminal() {
		t.Skip("stderr is a real terminal")
	}

	got := Sanitizef("score %d 🎯", 15)
	if got != "score 15 " {
		t.Errorf("Sanitizef = %q, want %q", got, "score 15 ")
	}
}

func TestFprintf(t *testing.T) {
	var buf bytes.Buffer
	Fprintf(&buf, "status %s", "PASS")
	if got := buf.String(); got != "status PASS" {
		t.Errorf("Fprintf wrote %q, want %q", got, "status PASS")
	}
}
