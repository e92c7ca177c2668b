package prompts

// RegisterAll registers every single-shot prompt. Build and Schema call it once on first use.
func RegisterAll() {
	// ---------- Evaluation ----------

	RegisterSpec(Spec{
		Name:       PromptTaskEvaluation,
		Version:    1,
		SchemaName: "task_evaluation",
		Schema:     TaskEvaluationSchema,
		System: `
You review take-home coding assessment tasks before they are shown to candidates.
Judge the task strictly against the rubric. Be concrete: every issue must point at a field or file.
Return JSON only.`,
		User: `
Candidate proficiency: {{.Proficiency}}
Years of experience: {{.YOE}}
Time box: {{.Minutes}} minutes

TASK_JSON:
{{.TaskJSON}}

Rubric:
- The task is solvable by a {{.Proficiency}} candidate within {{.Minutes}} minutes.
- question, outcomes and hints agree with each other and with code_files.
- The scenario reads like a real business problem, not a textbook exercise.
- definitions explain every domain term the question relies on.
- The answer is not leaked by the question, hints or code_files.
- criterias map to the competencies being assessed.

Set pass=true only when no rubric item fails. List each failure in issues.
validated_criteria lists rubric items that hold. feedback is one short paragraph.`,
		Validators: []Validator{
			RequireNonEmpty("TaskJSON", func(in Input) string { return in.TaskJSON }),
			RequirePositive("Minutes", func(in Input) int { return in.Minutes }),
		},
	})

	RegisterSpec(Spec{
		Name:    PromptCodeFilesEvaluation,
		Version: 1,
		System: `
You review the starter code that ships with a coding assessment.
Answer with a single JSON object and nothing else.`,
		User: `
Candidate proficiency: {{.Proficiency}}
Years of experience: {{.YOE}}
Time box: {{.Minutes}} minutes

CODE_FILES_JSON (path -> content):
{{.CodeFilesJSON}}

Check that:
- the project builds and runs as shipped (dependencies declared, entry point present);
- the files contain the defect or gap the candidate must work on, not its fix;
- no file contains TODO markers or comments that reveal the solution;
- the amount of code is readable within the time box.

Reply with {"pass": bool, "issues": [string], "validated_criteria": [string], "feedback": string}.`,
		Validators: []Validator{
			RequireNonEmpty("CodeFilesJSON", func(in Input) string { return in.CodeFilesJSON }),
		},
	})

	// ---------- Background inputs ----------

	RegisterSpec(Spec{
		Name:    PromptRoleContext,
		Version: 1,
		System: `
You write short hiring briefs for engineering assessments.
Write plain prose. No headings, no lists, no markdown.`,
		User: `
Organization: {{.OrganizationName}}
About the organization:
{{.OrganizationBackground}}

Competency scope:
{{.Scope}}

Competencies:
{{.Competencies}}

Describe in 4-6 sentences the role this assessment hires for: the team, the systems they own,
and the day-to-day problems a {{.YOE}} years engineer in that role solves.`,
		Validators: []Validator{
			RequireNonEmpty("Scope", func(in Input) string { return in.Scope }),
		},
	})

	RegisterSpec(Spec{
		Name:    PromptQuestionsPrompt,
		Version: 1,
		System: `
You brief task authors on what a good assessment question looks like for a given role.
Write plain prose. No headings, no markdown.`,
		User: `
Organization: {{.OrganizationName}}
Competency scope:
{{.Scope}}

Competencies:
{{.Competencies}}

In 4-8 sentences, tell a task author what kind of hands-on problem best reveals skill in these
competencies for a {{.YOE}} years engineer: the shape of the codebase, the kind of defect or
feature to ask for, and what a strong submission demonstrates.`,
		Validators: []Validator{
			RequireNonEmpty("Scope", func(in Input) string { return in.Scope }),
		},
	})

	// ---------- Scenarios ----------

	RegisterSpec(Spec{
		Name:       PromptScenarioVariations,
		Version:    1,
		SchemaName: "scenario_variations",
		Schema: func() map[string]any {
			return map[string]any{
				"type": "object",
				"properties": map[string]any{
					"scenarios": StringArraySchema(),
				},
				"required":             []string{"scenarios"},
				"additionalProperties": false,
			}
		},
		System: `
You invent realistic business situations that ground coding assessment tasks.
Return JSON only.`,
		User: `
Competencies:
{{.Competencies}}

Proficiency: {{.Proficiency}}

Existing scenarios (do not repeat them):
{{.Scenarios}}

Write {{.Count}} new scenarios. Each is 2-3 sentences naming a company type, the system
involved, and the concrete problem the engineer is asked to solve with these competencies.`,
		Validators: []Validator{
			RequireNonEmpty("Competencies", func(in Input) string { return in.Competencies }),
			RequirePositive("Count", func(in Input) int { return in.Count }),
		},
	})
}
