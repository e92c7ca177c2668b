package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
)

// AutoMigrateAll creates the tables this pipeline reads and writes. Production schemas are
// owned elsewhere; this exists for local databases and tests.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&tasks.Organization{},
		&tasks.Competency{},
		&tasks.TaskRecord{},
		&tasks.TaskCompetency{},
	)
}

// EnsureTaskIndexes adds the lookup indexes the sync and deploy workflows rely on.
func EnsureTaskIndexes(db *gorm.DB) error {
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_task_competencies_competency_id ON task_competencies(competency_id);`).Error; err != nil {
		return fmt.Errorf("create idx_task_competencies_competency_id: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);`).Error; err != nil {
		return fmt.Errorf("create idx_tasks_created_at: %w", err)
	}
	return nil
}
