package prompts

// Input is a superset of all fields any prompt or chain might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	// Organization and role
	OrganizationName       string
	OrganizationBackground string
	Scope                  string
	RoleContext            string
	QuestionsPrompt        string
	YOE                    string
	Proficiency            string
	// Competencies rendered as "Name (PROFICIENCY)" lines
	Competencies string
	// Scenario lines, one per line
	Scenarios string
	Count     int
	// Time box for the task, in minutes
	Minutes int
	// Evaluation subjects
	TaskJSON      string
	CodeFilesJSON string
}
