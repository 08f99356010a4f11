package finding

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"
)

// Fingerprint returns a stable murmur3-128 hash of a finding set,
// hex-encoded. Two runs over the same findings produce the same
// fingerprint regardless of ordering, so baselines and history records
// can tell "nothing changed" apart from "same score by coincidence".
func Fingerprint(findings []Finding) string {
	lines := make([]string, 0, len(findings))
	for _, f := range findings {
		lines = append(lines, strings.Join([]string{
			f.Source, f.Rule, f.Name, string(f.Severity), f.Location,
		}, "|"))
	}
	sort.Strings(lines)

	h := murmur3.New128()
	for _, line := range lines {
		// murmur3 Write never returns an error
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	h1, h2 := h.Sum128()
	return fmt.Sprintf("%016x%016x", h1, h2)
}
