package openai

import "strings"

// truncateForLog shortens text for debug log lines, collapsing newlines
// so a chunk never spans multiple log rows.
func truncateForLog(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
