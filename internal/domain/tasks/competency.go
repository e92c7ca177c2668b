package tasks

import (
	"fmt"
	"strings"
	"time"
)

// Proficiency levels, in increasing order.
const (
	ProficiencyBeginner     = "BEGINNER"
	ProficiencyBasic        = "BASIC"
	ProficiencyIntermediate = "INTERMEDIATE"
	ProficiencyAdvanced     = "ADVANCED"
)

// NormalizeProficiency upper-cases and trims a proficiency label.
func NormalizeProficiency(p string) string {
	return strings.ToUpper(strings.TrimSpace(p))
}

// ValidProficiency reports whether p (after normalization) is a known level.
func ValidProficiency(p string) bool {
	switch NormalizeProficiency(p) {
	case ProficiencyBeginner, ProficiencyBasic, ProficiencyIntermediate, ProficiencyAdvanced:
		return true
	}
	return false
}

// Competency is a read-only row of the competencies table.
type Competency struct {
	CompetencyID   string    `gorm:"column:competency_id;primaryKey" json:"competency_id"`
	Name           string    `gorm:"column:name;not null;index" json:"name"`
	Proficiency    string    `gorm:"column:proficiency;not null" json:"proficiency"`
	OrganizationID string    `gorm:"column:organization_id;index" json:"organization_id"`
	Scope          string    `gorm:"column:scope" json:"scope"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Competency) TableName() string { return "competencies" }

// Label renders "Name (PROFICIENCY)".
func (c Competency) Label() string {
	return fmt.Sprintf("%s (%s)", strings.TrimSpace(c.Name), NormalizeProficiency(c.Proficiency))
}

// Organization is a read-only row of the organizations table.
type Organization struct {
	OrganizationID string `gorm:"column:organization_id;primaryKey" json:"organization_id"`
	Name           string `gorm:"column:organization_name" json:"organization_name"`
	Background     string `gorm:"column:organization_background" json:"organization_background"`
}

func (Organization) TableName() string { return "organizations" }

// Background is the per-run context embedded into generation input.
type Background struct {
	Organization    OrganizationBackground `json:"organization"`
	RoleContext     string                 `json:"role_context"`
	QuestionsPrompt string                 `json:"questions_prompt"`
	YOE             string                 `json:"yoe"`
}

type OrganizationBackground struct {
	OrganizationID         string `json:"organization_id"`
	OrganizationName       string `json:"organization_name"`
	OrganizationBackground string `json:"organization_background"`
}

// YearsOfExperience maps a proficiency to the experience bucket used in prompts.
func YearsOfExperience(proficiency string) string {
	switch NormalizeProficiency(proficiency) {
	case ProficiencyBeginner:
		return "0-1"
	case ProficiencyBasic:
		return "1-2"
	case ProficiencyIntermediate:
		return "3-5"
	case ProficiencyAdvanced:
		return "5+"
	}
	return "1-2"
}

// HighestProficiency returns the most senior level among competencies (BASIC when empty).
func HighestProficiency(cs []Competency) string {
	rank := map[string]int{
		ProficiencyBeginner:     1,
		ProficiencyBasic:        2,
		ProficiencyIntermediate: 3,
		ProficiencyAdvanced:     4,
	}
	best := ProficiencyBasic
	bestRank := 0
	for _, c := range cs {
		p := NormalizeProficiency(c.Proficiency)
		if r := rank[p]; r > bestRank {
			best, bestRank = p, r
		}
	}
	return best
}
