// Package roster builds the read-only email -> display name index used to
// validate attendees.
package roster

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes an email for lookup: surrounding and interior
// whitespace is removed and the result is lowercased. Every key stored in
// an Index passes through Normalize, so lookups must too.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, raw)
}
