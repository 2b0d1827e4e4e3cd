package temporalx

const (
	WorkflowAnalyze = "teachback_analyze"
	WorkflowAsk     = "teachback_ask"

	ActivityAnalyze = "teachback_analyze_explanation"
	ActivityAsk     = "teachback_draft_question"
)

// AnalyzeParams is the workflow and activity input for one analysis.
type AnalyzeParams struct {
	Explanation string `json:"explanation"`
	Topic       string `json:"topic"`
}
