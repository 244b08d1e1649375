package strings

import (
	"strings"
)

// DefaultMessageMaxLen is the width status messages are cut to in tables.
const DefaultMessageMaxLen = 72

// minTruncateLen leaves room for one character plus "...".
const minTruncateLen = 4

// Truncate collapses s onto a single line and cuts it to at most maxLen
// runes, ending in "..." when shortened. Parse errors quoted in status
// messages often span lines, which breaks table layout.
func Truncate(s string, maxLen int) string {
	if maxLen < minTruncateLen {
		maxLen = minTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
