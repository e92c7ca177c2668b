package tasks

import (
	"fmt"
	"strings"
)

// FormatPreRequisites normalizes pre_requisites into trimmed, non-empty lines in original order.
// Strings are split on newlines; leading "- " or "* " bullets are removed. Idempotent.
func FormatPreRequisites(v any) []string {
	var lines []string
	switch p := v.(type) {
	case nil:
		return []string{}
	case string:
		lines = strings.Split(p, "\n")
	case []string:
		lines = p
	case []any:
		for _, item := range p {
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok {
				lines = append(lines, s)
			} else {
				lines = append(lines, fmt.Sprint(item))
			}
		}
	default:
		lines = []string{fmt.Sprint(p)}
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = cleanBullet(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func cleanBullet(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasPrefix(s, "- ") || strings.HasPrefix(s, "* ") {
		s = strings.TrimSpace(s[2:])
	}
	return s
}
