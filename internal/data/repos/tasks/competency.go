package tasks

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/dbctx"
	pkgerrors "github.com/ngm9/Utkrusht-task-sub000/internal/pkg/errors"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

type TaskCompetencyRepo interface {
	Link(dbc dbctx.Context, taskID string, competencyIDs []string) (int, error)
	ListByTask(dbc dbctx.Context, taskID string) ([]*types.TaskCompetency, error)
}

type taskCompetencyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskCompetencyRepo(db *gorm.DB, baseLog *logger.Logger) TaskCompetencyRepo {
	return &taskCompetencyRepo{db: db, log: baseLog.With("repo", "TaskCompetencyRepo")}
}

// Link inserts one row per competency. Rows that already exist are skipped; the return value
// counts new links.
func (r *taskCompetencyRepo) Link(dbc dbctx.Context, taskID string, competencyIDs []string) (int, error) {
	created := 0
	for _, cid := range dedupe(competencyIDs) {
		row := &types.TaskCompetency{TaskID: taskID, CompetencyID: cid}
		res := dbc.Handle(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
		if res.Error != nil {
			return created, fmt.Errorf("link %s -> %s: %w", taskID, cid, res.Error)
		}
		if res.RowsAffected == 0 {
			r.log.Debug("task competency already linked", "task_id", taskID, "competency_id", cid)
			continue
		}
		created++
	}
	return created, nil
}

func (r *taskCompetencyRepo) ListByTask(dbc dbctx.Context, taskID string) ([]*types.TaskCompetency, error) {
	var out []*types.TaskCompetency
	if err := dbc.Handle(r.db).
		Where("task_id = ?", taskID).
		Order("competency_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type CompetencyRepo interface {
	FindByNames(dbc dbctx.Context, names []string, proficiency string) ([]*types.Competency, error)
	GetByIDs(dbc dbctx.Context, ids []string) ([]*types.Competency, error)
}

type competencyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompetencyRepo(db *gorm.DB, baseLog *logger.Logger) CompetencyRepo {
	return &competencyRepo{db: db, log: baseLog.With("repo", "CompetencyRepo")}
}

// FindByNames matches names case-insensitively. An empty proficiency matches any level.
// The newest row wins when a name matches more than once.
func (r *competencyRepo) FindByNames(dbc dbctx.Context, names []string, proficiency string) ([]*types.Competency, error) {
	out := make([]*types.Competency, 0, len(names))
	prof := types.NormalizeProficiency(proficiency)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		q := dbc.Handle(r.db).Where("LOWER(name) = ?", strings.ToLower(name))
		if prof != "" {
			q = q.Where("UPPER(proficiency) = ?", prof)
		}
		var c types.Competency
		err := q.Order("created_at DESC").Take(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("competency %q (%s): %w", name, prof, pkgerrors.ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, nil
}

func (r *competencyRepo) GetByIDs(dbc dbctx.Context, ids []string) ([]*types.Competency, error) {
	var out []*types.Competency
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.Handle(r.db).
		Where("competency_id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type OrganizationRepo interface {
	Get(dbc dbctx.Context, organizationID string) (*types.Organization, error)
}

type organizationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrganizationRepo(db *gorm.DB, baseLog *logger.Logger) OrganizationRepo {
	return &organizationRepo{db: db, log: baseLog.With("repo", "OrganizationRepo")}
}

func (r *organizationRepo) Get(dbc dbctx.Context, organizationID string) (*types.Organization, error) {
	var out types.Organization
	err := dbc.Handle(r.db).Where("organization_id = ?", organizationID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("organization %s: %w", organizationID, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
