package domain

import "strings"

// Sanitize normalizes a display name into the canonical form used for every
// category, value, context segment and tag: lowercase, smart quotes folded to
// plain quotes, anything outside [a-z0-9 _'-] dropped, whitespace runs collapsed
// to a single underscore.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	prevUnderscore := false
	inSpace := false
	for _, r := range strings.ToLower(name) {
		switch r {
		case '‘', '’', '“', '”':
			r = '\''
		}
		if r == ' ' {
			inSpace = true
			continue
		}
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '\'' || r == '-') {
			continue
		}
		if inSpace {
			inSpace = false
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
		if r == '_' {
			if prevUnderscore {
				continue
			}
			prevUnderscore = true
		} else {
			prevUnderscore = false
		}
		b.WriteRune(r)
	}
	if inSpace && !prevUnderscore {
		b.WriteByte('_')
	}
	return b.String()
}

// Beautify renders a name for display: sanitized, underscores as spaces and
// every word capitalized ("dark_red" -> "Dark Red").
func Beautify(name string) string {
	s := []byte(strings.ReplaceAll(Sanitize(name), "_", " "))
	for i := range s {
		if isWordByte(s[i]) && (i == 0 || !isWordByte(s[i-1])) && s[i] >= 'a' && s[i] <= 'z' {
			s[i] -= 'a' - 'A'
		}
	}
	return string(s)
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
