package prompts

func StringArraySchema() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}

func BoolSchema() map[string]any {
	return map[string]any{"type": "boolean"}
}

func StringSchema() map[string]any {
	return map[string]any{"type": "string"}
}

// TaskEvaluationSchema is the strict verdict shape for whole-task evaluation.
func TaskEvaluationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pass":               BoolSchema(),
			"issues":             StringArraySchema(),
			"validated_criteria": StringArraySchema(),
			"feedback":           StringSchema(),
		},
		"required":             []string{"pass", "issues", "validated_criteria", "feedback"},
		"additionalProperties": false,
	}
}
