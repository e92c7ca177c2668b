package prompts

type PromptName string

const (
	// Evaluation
	PromptTaskEvaluation      PromptName = "task_evaluation"
	PromptCodeFilesEvaluation PromptName = "code_files_evaluation"

	// Background inputs
	PromptRoleContext     PromptName = "role_context"
	PromptQuestionsPrompt PromptName = "questions_prompt"

	// Scenarios
	PromptScenarioVariations PromptName = "scenario_variations"
)
