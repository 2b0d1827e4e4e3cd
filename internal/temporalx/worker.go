package temporalx

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

// registry is satisfied by worker.Worker and the testsuite environments.
type registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register adds the turn workflows and activities to r under their stable
// names.
func Register(r registry, wf Workflows, acts *Activities) {
	r.RegisterWorkflowWithOptions(wf.Analyze, workflow.RegisterOptions{Name: WorkflowAnalyze})
	r.RegisterWorkflowWithOptions(wf.Ask, workflow.RegisterOptions{Name: WorkflowAsk})
	r.RegisterActivityWithOptions(acts.Analyze, activity.RegisterOptions{Name: ActivityAnalyze})
	r.RegisterActivityWithOptions(acts.Ask, activity.RegisterOptions{Name: ActivityAsk})
}

// NewWorker builds a worker polling cfg.TaskQueue that serves model calls
// with model.
func NewWorker(c temporalsdkclient.Client, cfg Config, model tutor.ModelService, log *logger.Logger) (worker.Worker, error) {
	if c == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if model == nil {
		return nil, fmt.Errorf("temporal worker needs a model service")
	}
	cfg = cfg.withDefaults()

	w := worker.New(c, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.WorkerConcurrency,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.WorkerConcurrency,
	})
	Register(w, Workflows{ActivityTimeout: cfg.ActivityTimeout}, &Activities{Model: model, Log: log})
	return w, nil
}

// Run starts w and blocks until ctx is done.
func Run(ctx context.Context, w worker.Worker, log *logger.Logger) error {
	log = logger.OrNop(log)
	if err := w.Start(); err != nil {
		return fmt.Errorf("start temporal worker: %w", err)
	}
	log.Info("temporal worker started")
	<-ctx.Done()
	w.Stop()
	log.Info("temporal worker stopped")
	return nil
}
