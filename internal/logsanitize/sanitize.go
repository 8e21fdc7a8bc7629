// Package logsanitize strips control characters from untrusted values
// before they are placed in structured log fields.
package logsanitize

import "strings"

// Sanitize replaces control characters in s with '_' so that attacker
// controlled input (query parameters, redirect payloads) cannot forge
// log lines (CWE-117). Horizontal tabs are preserved; everything else in
// C0 (0x00-0x1F), DEL and C1 (0x7F-0x9F) is replaced.
func Sanitize(s string) string {
	if !strings.ContainsFunc(s, isControl) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isControl(r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isControl(r rune) bool {
	if r == '\t' {
		return false
	}
	return r < 0x20 || (r >= 0x7f && r <= 0x9f)
}
