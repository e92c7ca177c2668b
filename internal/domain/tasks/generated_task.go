package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidTask is matched by every *ValidationError.
var ErrInvalidTask = errors.New("invalid generated task")

// ValidationError lists every problem found in a generated task payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid generated task: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidTask }

// Criteria links a generated task back to a competency.
type Criteria struct {
	Name         string `json:"name"`
	Proficiency  string `json:"proficiency"`
	CompetencyID string `json:"competency_id"`
}

// GeneratedTask is the payload produced by the generator chain.
type GeneratedTask struct {
	Name          string            `json:"name"`
	Question      string            `json:"question"`
	CodeFiles     map[string]any    `json:"code_files"`
	Outcomes      json.RawMessage   `json:"outcomes"`
	PreRequisites []string          `json:"pre_requisites"`
	Answer        string            `json:"answer"`
	Hints         json.RawMessage   `json:"hints"`
	Definitions   map[string]string `json:"definitions"`
	ShortOverview json.RawMessage   `json:"short_overview,omitempty"`
	Resources     map[string]any    `json:"resources,omitempty"`
	Criterias     []Criteria        `json:"criterias,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

var requiredTaskFields = []string{
	"name", "question", "code_files", "outcomes", "pre_requisites", "answer", "hints", "definitions",
}

// DecodeGeneratedTask validates a raw model object and converts it into a GeneratedTask.
func DecodeGeneratedTask(obj map[string]any) (*GeneratedTask, error) {
	var problems []string
	for _, f := range requiredTaskFields {
		if _, ok := obj[f]; !ok {
			problems = append(problems, "missing "+f)
		}
	}

	defs := map[string]string{}
	switch d := obj["definitions"].(type) {
	case map[string]any:
		if len(d) == 0 {
			problems = append(problems, "definitions is empty")
		}
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s, ok := d[k].(string)
			if !ok || strings.TrimSpace(s) == "" {
				problems = append(problems, fmt.Sprintf("definition %q is blank", k))
				continue
			}
			defs[k] = s
		}
	case nil:
	default:
		problems = append(problems, "definitions must be an object")
	}

	if v, ok := obj["criterias"]; ok && v != nil {
		if _, isList := v.([]any); !isList {
			problems = append(problems, "criterias must be a list")
		}
	}
	if v, ok := obj["outcomes"]; ok {
		switch v.(type) {
		case string, []any:
		default:
			problems = append(problems, "outcomes must be a string or a list")
		}
	}
	if v, ok := obj["code_files"]; ok {
		if _, isMap := v.(map[string]any); !isMap {
			problems = append(problems, "code_files must be an object")
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	codeFiles, _ := obj["code_files"].(map[string]any)
	resources, _ := obj["resources"].(map[string]any)
	t := &GeneratedTask{
		Name:          asText(obj["name"]),
		Question:      asText(obj["question"]),
		CodeFiles:     codeFiles,
		Outcomes:      rawJSON(obj["outcomes"]),
		PreRequisites: FormatPreRequisites(obj["pre_requisites"]),
		Answer:        asText(obj["answer"]),
		Hints:         rawJSON(obj["hints"]),
		Definitions:   defs,
		Resources:     resources,
	}
	if v, ok := obj["short_overview"]; ok && v != nil {
		t.ShortOverview = rawJSON(v)
	}
	if v, ok := obj["criterias"].([]any); ok {
		raw, _ := json.Marshal(v)
		if err := json.Unmarshal(raw, &t.Criterias); err != nil {
			return nil, &ValidationError{Problems: []string{"criterias entries must be objects: " + err.Error()}}
		}
	}
	if s, ok := obj["created_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			t.CreatedAt = ts
		}
	}
	return t, nil
}

// ReadmeContent returns the README.md code file, if the model produced one.
func (t *GeneratedTask) ReadmeContent() string {
	for path, v := range t.CodeFiles {
		if strings.EqualFold(strings.TrimLeft(path, "/"), "README.md") {
			return FileContent(v)
		}
	}
	return ""
}

// FileContents renders every code file with FileContent.
func (t *GeneratedTask) FileContents() map[string]string {
	out := make(map[string]string, len(t.CodeFiles))
	for path, v := range t.CodeFiles {
		out[strings.TrimLeft(path, "/")] = FileContent(v)
	}
	return out
}

// FileContent renders a code file value: objects and lists become indented JSON, the rest fmt.Sprint.
func FileContent(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case nil:
		return ""
	case map[string]any, []any:
		raw, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Sprint(c)
		}
		return string(raw)
	default:
		return fmt.Sprint(c)
	}
}

func asText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		raw, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(raw)
	}
}

func rawJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}
