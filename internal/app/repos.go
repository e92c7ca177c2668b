package app

import (
	taskrepos "github.com/ngm9/Utkrusht-task-sub000/internal/data/repos/tasks"
)

type Repos struct {
	Tasks         taskrepos.TaskRepo
	Links         taskrepos.TaskCompetencyRepo
	Competencies  taskrepos.CompetencyRepo
	Organizations taskrepos.OrganizationRepo
}

// Repos wires the repositories of env's database.
func (a *App) Repos(env string) (Repos, error) {
	db, err := a.Database(env)
	if err != nil {
		return Repos{}, err
	}
	log := a.Log.With("db_env", env)
	return Repos{
		Tasks:         taskrepos.NewTaskRepo(db, log, a.Cfg.TasksPKColumn),
		Links:         taskrepos.NewTaskCompetencyRepo(db, log),
		Competencies:  taskrepos.NewCompetencyRepo(db, log),
		Organizations: taskrepos.NewOrganizationRepo(db, log),
	}, nil
}
