package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/dbctx"
	pkgerrors "github.com/ngm9/Utkrusht-task-sub000/internal/pkg/errors"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

const (
	DefaultPKColumn = "task_id"
	DefaultPageSize = 1000
)

// taskColumns are the non-key columns read and written by TaskRepo.
var taskColumns = []string{
	"created_at", "pre_requisites", "answer", "criterias", "is_deployed", "is_enabled",
	"is_shared_infra_required", "task_blob", "readme_content", "eval_info", "solutions",
	"droplet_ip", "deployed_at",
}

type TaskRepo interface {
	Insert(dbc dbctx.Context, row *types.TaskRecord) (*types.TaskRecord, error)
	Get(dbc dbctx.Context, taskID string) (*types.TaskRecord, error)
	ListAll(dbc dbctx.Context) ([]*types.TaskRecord, error)
	PatchTaskBlob(dbc dbctx.Context, taskID string, mutate func(types.BlobDoc) (bool, error)) (types.BlobDoc, bool, error)
	SetEnabled(dbc dbctx.Context, taskID string, enabled bool) error
	MarkDeployed(dbc dbctx.Context, taskID, dropletIP string, at time.Time) error
	ClearDeployment(dbc dbctx.Context, taskID string) error
	LatestForCompetency(dbc dbctx.Context, competencyID string) (*types.TaskRecord, error)
}

type taskRepo struct {
	db       *gorm.DB
	log      *logger.Logger
	pk       string
	pageSize int
}

// NewTaskRepo builds a TaskRepo. pkColumn names the primary-key column of the tasks table
// (task_id or id); empty means task_id.
func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger, pkColumn string) TaskRepo {
	pk := strings.TrimSpace(pkColumn)
	if pk == "" {
		pk = DefaultPKColumn
	}
	return &taskRepo{
		db:       db,
		log:      baseLog.With("repo", "TaskRepo", "pk", pk),
		pk:       pk,
		pageSize: DefaultPageSize,
	}
}

func (r *taskRepo) selectColumns() string {
	cols := make([]string, 0, len(taskColumns)+1)
	if r.pk == "task_id" {
		cols = append(cols, "task_id")
	} else {
		cols = append(cols, r.pk+" AS task_id")
	}
	cols = append(cols, taskColumns...)
	return strings.Join(cols, ", ")
}

func (r *taskRepo) byID(dbc dbctx.Context, taskID string) *gorm.DB {
	return dbc.Handle(r.db).Table("tasks").Where(r.pk+" = ?", taskID)
}

func (r *taskRepo) Insert(dbc dbctx.Context, row *types.TaskRecord) (*types.TaskRecord, error) {
	if row == nil || strings.TrimSpace(row.TaskID) == "" {
		return nil, fmt.Errorf("%w: task id required", pkgerrors.ErrInvalidArgument)
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	values := map[string]any{
		r.pk:                       row.TaskID,
		"created_at":               row.CreatedAt,
		"pre_requisites":           jsonOrNull(row.PreRequisites),
		"answer":                   row.Answer,
		"criterias":                jsonOrNull(row.Criterias),
		"is_deployed":              row.IsDeployed,
		"is_enabled":               row.IsEnabled,
		"is_shared_infra_required": row.IsSharedInfraRequired,
		"task_blob":                jsonOrNull(row.TaskBlob),
		"readme_content":           row.ReadmeContent,
		"eval_info":                jsonOrNull(row.EvalInfo),
		"solutions":                jsonOrNull(row.Solutions),
		"droplet_ip":               row.DropletIP,
		"deployed_at":              row.DeployedAt,
	}
	res := dbc.Handle(r.db).Table("tasks").Create(values)
	if isUniqueViolation(res.Error) {
		return nil, fmt.Errorf("%w: task %s already exists: %v", pkgerrors.ErrTaskInsert, row.TaskID, res.Error)
	}
	if res.Error != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrTaskInsert, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: no row returned for %s", pkgerrors.ErrTaskInsert, row.TaskID)
	}
	r.log.Info("task inserted", "task_id", row.TaskID)
	return r.Get(dbc, row.TaskID)
}

func (r *taskRepo) Get(dbc dbctx.Context, taskID string) (*types.TaskRecord, error) {
	var out types.TaskRecord
	res := r.byID(dbc, taskID).Select(r.selectColumns()).Limit(1).Scan(&out)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("task %s: %w", taskID, pkgerrors.ErrNotFound)
	}
	return &out, nil
}

// ListAll reads the whole table in fixed windows ordered by primary key.
func (r *taskRepo) ListAll(dbc dbctx.Context) ([]*types.TaskRecord, error) {
	var out []*types.TaskRecord
	for offset := 0; ; offset += r.pageSize {
		var page []*types.TaskRecord
		if err := dbc.Handle(r.db).Table("tasks").
			Select(r.selectColumns()).
			Order(r.pk + " ASC").
			Offset(offset).
			Limit(r.pageSize).
			Scan(&page).Error; err != nil {
			return nil, fmt.Errorf("list tasks at offset %d: %w", offset, err)
		}
		out = append(out, page...)
		if len(page) < r.pageSize {
			break
		}
	}
	r.log.Debug("tasks listed", "count", len(out))
	return out, nil
}

// PatchTaskBlob reads task_blob as a generic document, applies mutate and writes the whole
// document back only if mutate reports a change and the stored blob is unchanged since the
// read. A lost race returns ErrConcurrentModification. The bool reports whether a write happened.
func (r *taskRepo) PatchTaskBlob(dbc dbctx.Context, taskID string, mutate func(types.BlobDoc) (bool, error)) (types.BlobDoc, bool, error) {
	row, err := r.Get(dbc, taskID)
	if err != nil {
		return nil, false, err
	}
	doc, err := types.DecodeBlobDoc(row.TaskBlob)
	if err != nil {
		return nil, false, fmt.Errorf("decode task_blob of %s: %w", taskID, err)
	}
	changed, err := mutate(doc)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return doc, false, nil
	}
	next, err := doc.Encode()
	if err != nil {
		return nil, false, fmt.Errorf("encode task_blob of %s: %w", taskID, err)
	}

	q := r.byID(dbc, taskID)
	if isNullJSON(row.TaskBlob) {
		q = q.Where("(task_blob IS NULL OR task_blob = ?)", "null")
	} else {
		q = q.Where("task_blob = ?", row.TaskBlob)
	}
	res := q.Update("task_blob", next)
	if res.Error != nil {
		return nil, false, fmt.Errorf("update task_blob of %s: %w", taskID, res.Error)
	}
	if res.RowsAffected == 0 {
		r.log.Warn("task_blob changed concurrently", "task_id", taskID)
		return nil, false, fmt.Errorf("task %s: %w", taskID, pkgerrors.ErrConcurrentModification)
	}
	return doc, true, nil
}

func (r *taskRepo) SetEnabled(dbc dbctx.Context, taskID string, enabled bool) error {
	return r.updateOne(dbc, taskID, map[string]any{"is_enabled": enabled})
}

func (r *taskRepo) MarkDeployed(dbc dbctx.Context, taskID, dropletIP string, at time.Time) error {
	return r.updateOne(dbc, taskID, map[string]any{
		"is_deployed": true,
		"droplet_ip":  dropletIP,
		"deployed_at": at.UTC(),
	})
}

func (r *taskRepo) ClearDeployment(dbc dbctx.Context, taskID string) error {
	return r.updateOne(dbc, taskID, map[string]any{
		"is_deployed": false,
		"droplet_ip":  gorm.Expr("NULL"),
		"deployed_at": gorm.Expr("NULL"),
	})
}

func (r *taskRepo) updateOne(dbc dbctx.Context, taskID string, updates map[string]any) error {
	res := r.byID(dbc, taskID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %s: %w", taskID, pkgerrors.ErrNotFound)
	}
	return nil
}

// LatestForCompetency returns the newest task linked to competencyID.
func (r *taskRepo) LatestForCompetency(dbc dbctx.Context, competencyID string) (*types.TaskRecord, error) {
	var link types.TaskCompetency
	err := dbc.Handle(r.db).
		Table("task_competencies AS tc").
		Select("tc.task_id, tc.competency_id").
		Joins("JOIN tasks t ON t."+r.pk+" = tc.task_id").
		Where("tc.competency_id = ?", competencyID).
		Order("t.created_at DESC").
		Limit(1).
		Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("no task for competency %s: %w", competencyID, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r.Get(dbc, link.TaskID)
}

func jsonOrNull(v datatypes.JSON) any {
	if isNullJSON(v) {
		return nil
	}
	return v
}

func isNullJSON(v datatypes.JSON) bool {
	s := strings.TrimSpace(string(v))
	return s == "" || s == "null"
}
