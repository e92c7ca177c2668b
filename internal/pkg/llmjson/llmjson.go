// Package llmjson recovers a JSON object from free-form model output.
//
// Models asked for JSON still wrap it in markdown fences or surround it with prose. Extract runs
// an ordered list of strategies and returns the first object one of them can decode.
package llmjson

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy is one way of pulling a JSON object out of text.
type Strategy struct {
	Name    string
	Extract func(text string) (map[string]any, bool)
}

var (
	jsonFenceRE = regexp.MustCompile("(?s)```[ \t]*(?i:json)[ \t]*\r?\n?(.*?)```")
	anyFenceRE  = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[ \t]*\r?\n?(.*?)```")
)

// Direct parses the whole (trimmed) text.
var Direct = Strategy{Name: "direct", Extract: func(text string) (map[string]any, bool) {
	return decodeObject(strings.TrimSpace(text))
}}

// JSONFence parses the first ```json fenced block.
var JSONFence = Strategy{Name: "json_fence", Extract: func(text string) (map[string]any, bool) {
	m := jsonFenceRE.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return decodeObject(strings.TrimSpace(m[1]))
}}

// PlainFence parses the first untagged (or non-json tagged) fenced block holding an object.
var PlainFence = Strategy{Name: "plain_fence", Extract: func(text string) (map[string]any, bool) {
	for _, m := range anyFenceRE.FindAllStringSubmatch(text, -1) {
		if strings.EqualFold(m[1], "json") {
			continue
		}
		body := strings.TrimSpace(m[2])
		start := strings.Index(body, "{")
		end := strings.LastIndex(body, "}")
		if start < 0 || end <= start {
			continue
		}
		if obj, ok := decodeObject(body[start : end+1]); ok {
			return obj, true
		}
	}
	return nil, false
}}

// BalancedBraces scans for the first balanced {...} span that decodes.
var BalancedBraces = Strategy{Name: "balanced_braces", Extract: func(text string) (map[string]any, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > start {
			if obj, ok := decodeObject(text[start : end+1]); ok {
				return obj, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}}

// DefaultStrategies is the order Extract uses.
var DefaultStrategies = []Strategy{Direct, JSONFence, PlainFence, BalancedBraces}

// Extract tries DefaultStrategies in order. The second return names the strategy that matched.
func Extract(text string) (map[string]any, string, bool) {
	return ExtractWith(text, DefaultStrategies...)
}

func ExtractWith(text string, strategies ...Strategy) (map[string]any, string, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, "", false
	}
	for _, s := range strategies {
		if obj, ok := s.Extract(text); ok {
			return obj, s.Name, true
		}
	}
	return nil, "", false
}

// matchBrace returns the index of the '}' balancing text[start], or -1.
// Braces inside JSON string literals are not counted.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func decodeObject(s string) (map[string]any, bool) {
	if s == "" || s[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
