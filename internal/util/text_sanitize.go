package util

import (
	"strings"
	"unicode"
)

// SanitizeText makes extracted text safe for a Postgres text column: NUL and
// other control runes are dropped (tab, CR and LF survive) and invalid UTF-8
// sequences are removed.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
