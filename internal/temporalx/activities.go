package temporalx

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/rodrick-mpofu/teachback-ai/internal/llm"
	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

// Activities run the model service on a worker.
type Activities struct {
	Model tutor.ModelService
	Log   *logger.Logger
}

func (a *Activities) Analyze(ctx context.Context, p AnalyzeParams) (tutor.AnalysisResult, error) {
	if a == nil || a.Model == nil {
		return tutor.AnalysisResult{}, temporal.NewNonRetryableApplicationError("model service not configured", "config", nil)
	}
	info := activity.GetInfo(ctx)
	logger.OrNop(a.Log).Debug("analyze activity", "workflow_id", info.WorkflowExecution.ID, "attempt", info.Attempt)

	res, err := a.Model.Analyze(ctx, p.Explanation, p.Topic)
	if err != nil {
		return tutor.AnalysisResult{}, activityError("analyze", err)
	}
	return res, nil
}

func (a *Activities) Ask(ctx context.Context, in tutor.AskInput) (string, error) {
	if a == nil || a.Model == nil {
		return "", temporal.NewNonRetryableApplicationError("model service not configured", "config", nil)
	}
	info := activity.GetInfo(ctx)
	logger.OrNop(a.Log).Debug("ask activity", "workflow_id", info.WorkflowExecution.ID, "attempt", info.Attempt)

	q, err := a.Model.Ask(ctx, in)
	if err != nil {
		return "", activityError("ask", err)
	}
	return q, nil
}

// activityError marks model errors that another attempt cannot fix.
func activityError(op string, err error) error {
	if llm.Permanent(err) {
		return temporal.NewNonRetryableApplicationError(fmt.Sprintf("%s: %v", op, err), llm.Kind(err), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
