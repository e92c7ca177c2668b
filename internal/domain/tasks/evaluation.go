package tasks

// MaxEvalRetries bounds the attempts of the plain-JSON evaluation call.
const MaxEvalRetries = 2

// EvaluationResult is the evaluator's verdict. Evaluation is advisory and never blocks creation.
type EvaluationResult struct {
	Pass              bool     `json:"pass"`
	Issues            []string `json:"issues"`
	ValidatedCriteria []string `json:"validated_criteria"`
	Feedback          string   `json:"feedback,omitempty"`
}

// DefaultFailure is returned when no usable verdict could be obtained.
func DefaultFailure(reason string) EvaluationResult {
	return EvaluationResult{
		Pass:              false,
		Issues:            []string{reason},
		ValidatedCriteria: []string{},
	}
}

// EvalInfo is the eval_info column: one result per evaluation type.
type EvalInfo struct {
	Task      *EvaluationResult `json:"task_evaluation,omitempty"`
	CodeFiles *EvaluationResult `json:"code_files_evaluation,omitempty"`
}
