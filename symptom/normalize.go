package symptom

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a symptom string: NFKC form, lowercase, underscores
// replaced by spaces, runs of whitespace collapsed to single spaces, trimmed.
// Normalizing an already-normalized string is a no-op.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeAll normalizes every token, dropping entries that normalize to "".
func NormalizeAll(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if n := Normalize(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}
