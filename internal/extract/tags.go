// Package extract turns free text into keyword tags for the catalog matcher.
package extract

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeTags NFKC-normalizes, lower-cases and trims tags, collapsing inner
// whitespace. Empty and duplicate tags are dropped; first occurrence wins.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.Join(strings.Fields(norm.NFKC.String(t)), " ")
		t = strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
