package temporalx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

// Platform runs model calls as Temporal workflows. It satisfies
// router.RemotePlatform.
type Platform struct {
	client    temporalsdkclient.Client
	taskQueue string
	log       *logger.Logger
}

func NewPlatform(c temporalsdkclient.Client, cfg Config, log *logger.Logger) *Platform {
	cfg = cfg.withDefaults()
	return &Platform{
		client:    c,
		taskQueue: cfg.TaskQueue,
		log:       logger.OrNop(log).With("component", "temporalx"),
	}
}

func (p *Platform) Analyze(ctx context.Context, explanation, topic string) (tutor.AnalysisResult, error) {
	var out tutor.AnalysisResult
	err := p.run(ctx, "analyze", WorkflowAnalyze, AnalyzeParams{Explanation: explanation, Topic: topic}, &out)
	if err != nil {
		return tutor.AnalysisResult{}, err
	}
	return out.Clamped(), nil
}

func (p *Platform) Ask(ctx context.Context, in tutor.AskInput) (string, error) {
	var out string
	if err := p.run(ctx, "ask", WorkflowAsk, in, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (p *Platform) run(ctx context.Context, op, workflowName string, arg, out any) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("remote %s: temporal client is not configured", op)
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:        op + "-" + uuid.NewString(),
		TaskQueue: p.taskQueue,
	}
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			opts.WorkflowExecutionTimeout = d
		}
	}

	start := time.Now()
	run, err := p.client.ExecuteWorkflow(ctx, opts, workflowName, arg)
	if err != nil {
		return fmt.Errorf("remote %s: start workflow: %w", op, err)
	}
	if err := run.Get(ctx, out); err != nil {
		return fmt.Errorf("remote %s: %w", op, err)
	}
	p.log.Debug("remote call finished", "op", op, "workflow_id", run.GetID(), "duration", time.Since(start))
	return nil
}
