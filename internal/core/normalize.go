package core

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize canonicalizes a free-text field: first letter upper case, the
// remainder lower case, underscores replaced by spaces.
//
//	Normalize("lunch")        -> "Lunch"
//	Normalize("FOOD")         -> "Food"
//	Normalize("e_wallet")     -> "E wallet"
//
// Normalize is idempotent. Surrounding whitespace is left untouched so that
// the property holds for inputs ending in an underscore.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	out := string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
	return strings.ReplaceAll(out, "_", " ")
}

// NormalizeAll normalizes every value and drops duplicates, keeping the first
// occurrence.
func NormalizeAll(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = Normalize(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
