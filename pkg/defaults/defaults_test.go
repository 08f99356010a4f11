package defaults

import (
	"strings"
	"testing"
)

func TestUserAgent(t *testing.T) {
	tests := []struct {
		name    string
		context string
		want    string
	}{
		{"no context", "", "riskgate/" + Version},
		{"with context", "ci", "riskgate/" + Version + " (ci)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserAgent(tt.context); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPathsAreRelative(t *testing.T) {
	for _, path := range []string{StateDir, BaselineDir, HistoryDir, PolicyFile} {
		if strings.HasPrefix(path, "/") {
			t.Errorf("%q must stay relative to the working directory", path)
		}
	}
	if !strings.HasPrefix(BaselineDir, StateDir) || !strings.HasPrefix(HistoryDir, StateDir) {
		t.Error("store directories should live under the state directory")
	}
}

func TestVersionShape(t *testing.T) {
	if Version == "" || strings.Count(Version, ".") != 2 {
		t.Errorf("version %q should be semver-shaped", Version)
	}
}
