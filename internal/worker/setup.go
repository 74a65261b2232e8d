package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/agentjudge/internal/aggregation"
	"github.com/ahrav/agentjudge/internal/domain"
	"github.com/ahrav/agentjudge/internal/workflow"
)

// DefaultTaskQueue is used when no queue is configured.
const DefaultTaskQueue = "agentjudge"

// Options locate the Temporal cluster.
type Options struct {
	HostPort  string `yaml:"host_port" json:"host_port"`
	Namespace string `yaml:"namespace" json:"namespace"`
	TaskQueue string `yaml:"task_queue" json:"task_queue"`
}

func (o Options) queue() string {
	if o.TaskQueue == "" {
		return DefaultTaskQueue
	}
	return o.TaskQueue
}

// Dial connects to Temporal, logging through logger.
func Dial(opts Options, logger *slog.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  opts.HostPort,
		Namespace: opts.Namespace,
		Logger:    sdklog.NewStructuredLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", opts.HostPort, err)
	}
	return c, nil
}

// New creates a worker on the configured queue with everything registered.
func New(c client.Client, opts Options, acts *aggregation.Activities, maxConcurrentInvocations int) sdkworker.Worker {
	w := sdkworker.New(c, opts.queue(), sdkworker.Options{
		MaxConcurrentActivityExecutionSize: maxConcurrentInvocations,
	})
	RegisterAll(w, acts)
	return w
}

// Submit starts an evaluation workflow and waits for its report.
func Submit(ctx context.Context, c client.Client, opts Options, in workflow.EvaluationInput) (*domain.RunReport, error) {
	if c == nil {
		return nil, errors.New("temporal client is nil")
	}
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		TaskQueue: opts.queue(),
	}, workflow.EvaluationWorkflow, in)
	if err != nil {
		return nil, fmt.Errorf("start evaluation: %w", err)
	}

	var rep domain.RunReport
	if err := run.Get(ctx, &rep); err != nil {
		return nil, fmt.Errorf("evaluation %s: %w", run.GetID(), err)
	}
	return &rep, nil
}
