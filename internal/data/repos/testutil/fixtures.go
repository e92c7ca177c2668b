package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
)

func SeedOrganization(tb testing.TB, ctx context.Context, tx *gorm.DB, name, background string) *types.Organization {
	tb.Helper()
	org := &types.Organization{
		OrganizationID: uuid.NewString(),
		Name:           name,
		Background:     background,
	}
	if err := tx.WithContext(ctx).Create(org).Error; err != nil {
		tb.Fatalf("seed organization: %v", err)
	}
	return org
}

func SeedCompetency(tb testing.TB, ctx context.Context, tx *gorm.DB, name, proficiency, orgID string) *types.Competency {
	tb.Helper()
	c := &types.Competency{
		CompetencyID:   uuid.NewString(),
		Name:           name,
		Proficiency:    proficiency,
		OrganizationID: orgID,
		Scope:          name + " fundamentals for backend roles",
		CreatedAt:      time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed competency: %v", err)
	}
	return c
}
