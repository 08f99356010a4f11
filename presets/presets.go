package presets

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/riskgate/riskgate/pkg/policy"
)

// Load resolves a bundled profile by name (case-insensitive). The error
// for an unknown name wraps policy.ErrPolicyNotFound, so callers
// classify it exactly like a missing policy file.
func Load(name string) (*policy.Policy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	data, err := FS.ReadFile(key + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: no preset named %q (available: %s)",
			policy.ErrPolicyNotFound, name, strings.Join(Names(), ", "))
	}

	pol, err := policy.ParsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", key, err)
	}
	return pol, nil
}

// Names returns the bundled profile names in sorted order.
func Names() []string {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}
