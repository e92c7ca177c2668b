package tasks

import (
	"errors"
	"strings"
	"testing"
)

func validTaskObject() map[string]any {
	return map[string]any{
		"name":           "Kafka order consumer",
		"question":       "Fix the consumer so orders are processed exactly once.",
		"code_files":     map[string]any{"README.md": "# Orders", "config/app.json": map[string]any{"port": float64(8080)}},
		"outcomes":       []any{"Idempotent processing"},
		"pre_requisites": "- Java 17\n* Docker\n\n",
		"answer":         "Use a dedup table keyed by order id.",
		"hints":          "Look at offset commits.",
		"definitions":    map[string]any{"offset": "Position of a record in a partition"},
		"criterias":      []any{map[string]any{"name": "Kafka", "proficiency": "BASIC", "competency_id": "c-1"}},
		"created_at":     "2026-01-02T03:04:05Z",
	}
}

func TestDecodeGeneratedTaskValid(t *testing.T) {
	task, err := DecodeGeneratedTask(validTaskObject())
	if err != nil {
		t.Fatalf("DecodeGeneratedTask: %v", err)
	}
	if task.Name != "Kafka order consumer" {
		t.Fatalf("Name: got=%q", task.Name)
	}
	if len(task.PreRequisites) != 2 || task.PreRequisites[0] != "Java 17" || task.PreRequisites[1] != "Docker" {
		t.Fatalf("PreRequisites: got=%v", task.PreRequisites)
	}
	if len(task.Criterias) != 1 || task.Criterias[0].CompetencyID != "c-1" {
		t.Fatalf("Criterias: got=%+v", task.Criterias)
	}
	if task.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt: expected parsed timestamp")
	}
	if got := task.ReadmeContent(); got != "# Orders" {
		t.Fatalf("ReadmeContent: got=%q", got)
	}
	files := task.FileContents()
	if !strings.Contains(files["config/app.json"], "\"port\": 8080") {
		t.Fatalf("FileContents: object should render as indented JSON, got=%q", files["config/app.json"])
	}
}

func TestDecodeGeneratedTaskRejectsBlankDefinitions(t *testing.T) {
	obj := validTaskObject()
	obj["definitions"] = map[string]any{"offset": "  "}
	_, err := DecodeGeneratedTask(obj)
	if !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("want ErrInvalidTask, got %v", err)
	}

	obj["definitions"] = map[string]any{}
	if _, err := DecodeGeneratedTask(obj); !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("empty definitions: want ErrInvalidTask, got %v", err)
	}
}

func TestDecodeGeneratedTaskShapeChecks(t *testing.T) {
	cases := map[string]func(map[string]any){
		"criterias not list": func(o map[string]any) { o["criterias"] = "Kafka" },
		"outcomes number":    func(o map[string]any) { o["outcomes"] = float64(3) },
		"missing answer":     func(o map[string]any) { delete(o, "answer") },
		"code_files list":    func(o map[string]any) { o["code_files"] = []any{"a"} },
	}
	for name, mutate := range cases {
		obj := validTaskObject()
		mutate(obj)
		_, err := DecodeGeneratedTask(obj)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: want *ValidationError, got %v", name, err)
		}
	}
}

func TestOutcomesAcceptsString(t *testing.T) {
	obj := validTaskObject()
	obj["outcomes"] = "Orders are processed once"
	task, err := DecodeGeneratedTask(obj)
	if err != nil {
		t.Fatalf("DecodeGeneratedTask: %v", err)
	}
	if string(task.Outcomes) != `"Orders are processed once"` {
		t.Fatalf("Outcomes: got=%s", task.Outcomes)
	}
}
