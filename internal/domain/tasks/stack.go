package tasks

import (
	"errors"
	"fmt"
	"strings"
)

// UnsupportedStackError means no prompt chain is registered for any candidate stack key.
type UnsupportedStackError struct {
	Keys []string
}

func (e *UnsupportedStackError) Error() string {
	return fmt.Sprintf("unsupported stack: no prompt chain registered for %s", strings.Join(quoteAll(e.Keys), " or "))
}

// ResponseParseError means no JSON object could be recovered from a model reply.
type ResponseParseError struct {
	Stage string
	Text  string
}

func (e *ResponseParseError) Error() string {
	snippet := strings.TrimSpace(e.Text)
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	return fmt.Sprintf("%s: could not parse JSON from model output: %q", e.Stage, snippet)
}

// IsUnsupportedStack reports whether err carries an UnsupportedStackError.
func IsUnsupportedStack(err error) bool {
	var u *UnsupportedStackError
	return errors.As(err, &u)
}

// StackKeys returns the candidate prompt-chain keys for competencies, most specific first:
// names with proficiency, then plain names, both in request order joined by ", ".
func StackKeys(cs []Competency) []string {
	labels := make([]string, 0, len(cs))
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		labels = append(labels, c.Label())
		names = append(names, strings.TrimSpace(c.Name))
	}
	withProf := strings.Join(labels, ", ")
	plain := strings.Join(names, ", ")
	if withProf == plain {
		return []string{plain}
	}
	return []string{withProf, plain}
}

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
