package llm

import (
	"regexp"
	"strings"
)

// FirstJSONArray extracts the first-to-last bracketed span from model
// output. Models often wrap JSON in prose or code fences; taking the
// substring from the first '[' to the last ']' recovers the array.
func FirstJSONArray(s string) (string, bool) {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

var numberedLinePattern = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)

// ParseNumberedLines extracts up to max entries from a numbered list in
// model output ("1. first", "2) second"). Lines without a number prefix
// are ignored.
func ParseNumberedLines(s string, max int) []string {
	entries := make([]string, 0, max)
	for _, line := range strings.Split(s, "\n") {
		match := numberedLinePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		entry := strings.TrimSpace(match[1])
		if entry == "" {
			continue
		}
		entries = append(entries, entry)
		if max > 0 && len(entries) == max {
			break
		}
	}
	return entries
}
