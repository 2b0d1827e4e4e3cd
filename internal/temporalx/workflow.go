package temporalx

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

// DefaultActivityTimeout is used when a workflow is registered without
// going through NewWorker.
const DefaultActivityTimeout = 45 * time.Second

// Model calls retry inside the provider chain, so the activity runs once.
func activityOptions(timeout time.Duration) workflow.ActivityOptions {
	if timeout <= 0 {
		timeout = DefaultActivityTimeout
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
}

// Workflows bundles the workflow functions with their activity timeout.
type Workflows struct {
	ActivityTimeout time.Duration
}

func (w Workflows) Analyze(ctx workflow.Context, p AnalyzeParams) (tutor.AnalysisResult, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions(w.ActivityTimeout))
	var out tutor.AnalysisResult
	if err := workflow.ExecuteActivity(ctx, ActivityAnalyze, p).Get(ctx, &out); err != nil {
		return tutor.AnalysisResult{}, err
	}
	return out.Clamped(), nil
}

func (w Workflows) Ask(ctx workflow.Context, in tutor.AskInput) (string, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions(w.ActivityTimeout))
	var out string
	if err := workflow.ExecuteActivity(ctx, ActivityAsk, in).Get(ctx, &out); err != nil {
		return "", err
	}
	return out, nil
}
