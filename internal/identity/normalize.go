package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Key normalizes a roster identifier, display name or schedule field for
// comparison: trimmed, all whitespace removed, lowercased.
// Input is folded to NFC first so composed and decomposed spellings of the
// same name produce the same key.
func Key(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
