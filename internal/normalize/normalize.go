// Package normalize canonicalizes free-text titles and authors for comparison.
package normalize

import "strings"

// String lowercases the input, replaces every character outside [a-z0-9 ]
// with a space, collapses whitespace runs and trims. The result is stable
// under repeated application. No locale handling is attempted.
func String(s string) string {
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= '0' && r <= '9':
			return r
		default:
			return ' '
		}
	}, lower)

	return strings.Join(strings.Fields(mapped), " ")
}

// Key builds the combined title+author lookup key used by the catalog index
// and the matcher. Either part may be empty; the result is trimmed.
func Key(title, author string) string {
	return strings.TrimSpace(String(title) + " " + String(author))
}

// Words splits a normalized string into its word set.
func Words(s string) map[string]struct{} {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
