package util

import (
	"regexp"
	"strings"
)

var extraBlankLines = regexp.MustCompile(`\n{3,}`)

// SanitizeText normalizes extracted document text before it is chunked and
// stored. NUL and other control characters are dropped (Postgres text rejects
// NUL), line endings become "\n", trailing spaces are cut from every line and
// runs of blank lines collapse to one so paragraph breaks stay meaningful.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch {
		case ch == '\n' || ch == '\t':
			b.WriteRune(ch)
		case ch < 0x20, ch == 0x7f, ch == '\ufffd', ch == '\u00ad':
			// soft hyphens and replacement chars come from broken PDF text layers
		default:
			b.WriteRune(ch)
		}
	}

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := extraBlankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}
