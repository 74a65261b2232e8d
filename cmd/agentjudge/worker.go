package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/agentjudge/internal/aggregation"
	"github.com/ahrav/agentjudge/internal/config"
	"github.com/ahrav/agentjudge/internal/invoker"
	"github.com/ahrav/agentjudge/internal/worker"
	"github.com/ahrav/agentjudge/internal/workflow"
	"github.com/ahrav/agentjudge/pkg/activity"
)

type temporalFlags struct {
	host      string
	namespace string
	queue     string
}

func (f *temporalFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.host, "temporal-host", "", "override temporal.host_port")
	cmd.Flags().StringVar(&f.namespace, "namespace", "", "override temporal.namespace")
	cmd.Flags().StringVar(&f.queue, "task-queue", "", "override temporal.task_queue")
}

func (f *temporalFlags) apply(cfg *config.Config) {
	if f.host != "" {
		cfg.Temporal.HostPort = f.host
	}
	if f.namespace != "" {
		cfg.Temporal.Namespace = f.namespace
	}
	if f.queue != "" {
		cfg.Temporal.TaskQueue = f.queue
	}
}

func newWorkerCmd(root *rootOptions) *cobra.Command {
	flags := &temporalFlags{}
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Serve evaluation workflows and activities from a Temporal task queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			flags.apply(&cfg)

			// Workers receive tasks per workflow, so only the environment is checked here.
			if err := config.CheckEnvironment(cfg, invoker.New(cfg.Agent)); err != nil {
				return err
			}

			h, err := newHarness(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer h.close(context.Background())

			c, err := worker.Dial(cfg.Temporal, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			acts := aggregation.NewActivities(activity.NewBaseActivities(h.sink), h.invoker, h.pipeline)
			w := worker.New(c, cfg.Temporal, acts, cfg.Run.Concurrency)
			logger.Info("worker started", "task_queue", cfg.Temporal.TaskQueue, "host", cfg.Temporal.HostPort)

			interrupt := make(chan any)
			go func() {
				<-ctx.Done()
				close(interrupt)
			}()
			if err := w.Run(interrupt); err != nil {
				return fmt.Errorf("worker: %w", err)
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newSubmitCmd(root *rootOptions) *cobra.Command {
	flags := &temporalFlags{}
	run := &runOptions{}
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Run the task battery as a Temporal workflow and write the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			flags.apply(&cfg)
			run.apply(&cfg)

			reg, err := loadTasks(run.tasksPath)
			if err != nil {
				return err
			}

			c, err := worker.Dial(cfg.Temporal, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			report, err := worker.Submit(ctx, c, cfg.Temporal, workflow.EvaluationInput{
				ExperimentID:  cfg.Run.ExperimentID,
				Tasks:         reg.Tasks(),
				Concurrency:   cfg.Run.Concurrency,
				PassThreshold: cfg.Run.PassThreshold,
				TaskTimeout:   cfg.Run.TaskTimeout,
			})
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), run.outPath, report)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVarP(&run.tasksPath, "tasks", "t", "", "task file (YAML or JSONL)")
	cmd.Flags().StringVarP(&run.outPath, "out", "o", "", "write the report here instead of stdout")
	cmd.Flags().IntVar(&run.concurrency, "concurrency", -1, "override run.concurrency (0 = unbounded)")
	cmd.Flags().StringVar(&run.experimentID, "experiment", "", "override run.experiment_id")
	return cmd
}
