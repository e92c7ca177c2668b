package tasks

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Resource keys inside task_blob.resources.
const (
	ResourceGithubRepo = "github_repo"
	ResourceGithubGist = "github_gist"
)

// TaskRecord is a row of the tasks table. The primary key column is task_id or id depending
// on the environment; repositories alias it onto TaskID.
type TaskRecord struct {
	TaskID                string         `gorm:"column:task_id;primaryKey" json:"task_id"`
	CreatedAt             time.Time      `gorm:"column:created_at" json:"created_at"`
	PreRequisites         datatypes.JSON `gorm:"column:pre_requisites" json:"pre_requisites"`
	Answer                string         `gorm:"column:answer" json:"answer"`
	Criterias             datatypes.JSON `gorm:"column:criterias" json:"criterias"`
	IsDeployed            bool           `gorm:"column:is_deployed;not null;default:false" json:"is_deployed"`
	IsEnabled             bool           `gorm:"column:is_enabled;not null;default:false" json:"is_enabled"`
	IsSharedInfraRequired bool           `gorm:"column:is_shared_infra_required;not null;default:false" json:"is_shared_infra_required"`
	TaskBlob              datatypes.JSON `gorm:"column:task_blob" json:"task_blob"`
	ReadmeContent         string         `gorm:"column:readme_content" json:"readme_content"`
	EvalInfo              datatypes.JSON `gorm:"column:eval_info" json:"eval_info"`
	Solutions             datatypes.JSON `gorm:"column:solutions" json:"solutions"`
	DropletIP             *string        `gorm:"column:droplet_ip" json:"droplet_ip,omitempty"`
	DeployedAt            *time.Time     `gorm:"column:deployed_at" json:"deployed_at,omitempty"`
}

func (TaskRecord) TableName() string { return "tasks" }

// Blob decodes task_blob. A missing or null blob decodes to an empty TaskBlob.
func (r *TaskRecord) Blob() (TaskBlob, error) {
	return DecodeTaskBlob(r.TaskBlob)
}

// TaskCompetency links a task to a competency.
type TaskCompetency struct {
	TaskID       string `gorm:"column:task_id;primaryKey" json:"task_id"`
	CompetencyID string `gorm:"column:competency_id;primaryKey" json:"competency_id"`
}

func (TaskCompetency) TableName() string { return "task_competencies" }

// TaskBlob is the human-facing task document stored in tasks.task_blob.
type TaskBlob struct {
	Title         string            `json:"title"`
	Definitions   map[string]string `json:"definitions"`
	Hints         json.RawMessage   `json:"hints,omitempty"`
	Resources     map[string]any    `json:"resources"`
	Outcomes      json.RawMessage   `json:"outcomes,omitempty"`
	Question      string            `json:"question"`
	ShortOverview json.RawMessage   `json:"short_overview,omitempty"`
}

func DecodeTaskBlob(raw datatypes.JSON) (TaskBlob, error) {
	var b TaskBlob
	if s := strings.TrimSpace(string(raw)); s != "" && s != "null" {
		if err := json.Unmarshal(raw, &b); err != nil {
			return TaskBlob{}, err
		}
	}
	if b.Resources == nil {
		b.Resources = map[string]any{}
	}
	return b, nil
}

func (b TaskBlob) Encode() (datatypes.JSON, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func (b TaskBlob) resource(key string) string {
	if b.Resources == nil {
		return ""
	}
	s, _ := b.Resources[key].(string)
	return strings.TrimSpace(s)
}

func (b TaskBlob) GistURL() string { return b.resource(ResourceGithubGist) }
func (b TaskBlob) RepoURL() string { return b.resource(ResourceGithubRepo) }

func (b *TaskBlob) SetResource(key, value string) {
	if b.Resources == nil {
		b.Resources = map[string]any{}
	}
	b.Resources[key] = value
}

func (b *TaskBlob) SetGistURL(url string) { b.SetResource(ResourceGithubGist, url) }

// BlobFromTask builds the task_blob document for a freshly generated task.
func BlobFromTask(t *GeneratedTask) TaskBlob {
	resources := map[string]any{}
	for k, v := range t.Resources {
		resources[k] = v
	}
	return TaskBlob{
		Title:         t.Name,
		Definitions:   t.Definitions,
		Hints:         t.Hints,
		Resources:     resources,
		Outcomes:      t.Outcomes,
		Question:      t.Question,
		ShortOverview: t.ShortOverview,
	}
}

// BlobDoc is task_blob as a generic document. Patches go through it so keys outside TaskBlob
// survive the write.
type BlobDoc map[string]any

func DecodeBlobDoc(raw datatypes.JSON) (BlobDoc, error) {
	doc := BlobDoc{}
	if s := strings.TrimSpace(string(raw)); s != "" && s != "null" {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (d BlobDoc) Encode() (datatypes.JSON, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func (d BlobDoc) Resource(key string) string {
	res, _ := d["resources"].(map[string]any)
	s, _ := res[key].(string)
	return strings.TrimSpace(s)
}

// SetResource sets resources[key] and reports whether the value changed.
func (d BlobDoc) SetResource(key, value string) bool {
	res, ok := d["resources"].(map[string]any)
	if !ok {
		res = map[string]any{}
		d["resources"] = res
	}
	if cur, ok := res[key].(string); ok && cur == value {
		return false
	}
	res[key] = value
	return true
}

func (d BlobDoc) GistURL() string { return d.Resource(ResourceGithubGist) }

func (d BlobDoc) SetGistURL(url string) bool { return d.SetResource(ResourceGithubGist, url) }
