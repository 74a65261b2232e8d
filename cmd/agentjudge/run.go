package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/agentjudge/internal/config"
	"github.com/ahrav/agentjudge/internal/domain"
	"github.com/ahrav/agentjudge/internal/invoker"
)

type runOptions struct {
	tasksPath    string
	outPath      string
	concurrency  int
	experimentID string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the task battery in-process and write the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvaluation(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.tasksPath, "tasks", "t", "", "task file (YAML or JSONL)")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "write the report here instead of stdout")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", -1, "override run.concurrency (0 = unbounded)")
	cmd.Flags().StringVar(&opts.experimentID, "experiment", "", "override run.experiment_id")
	return cmd
}

func (o *runOptions) apply(cfg *config.Config) {
	if o.concurrency >= 0 {
		cfg.Run.Concurrency = o.concurrency
	}
	if o.experimentID != "" {
		cfg.Run.ExperimentID = o.experimentID
	}
	if cfg.Run.TaskTimeout == 0 {
		cfg.Run.TaskTimeout = cfg.TaskTimeout()
	}
}

func runEvaluation(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	ctx := cmd.Context()
	cfg, logger, err := root.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	opts.apply(&cfg)

	reg, err := loadTasks(opts.tasksPath)
	if err != nil {
		return err
	}
	if err := config.Preflight(cfg, reg, invoker.New(cfg.Agent)); err != nil {
		return err
	}

	h, err := newHarness(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.close(shutdownCtx)
	}()

	report, runErr := h.runner().Run(ctx, reg)
	if report != nil {
		if err := writeReport(cmd.OutOrStdout(), opts.outPath, report); err != nil {
			return err
		}
	}
	return runErr
}

// writeReport encodes report as indented JSON to path, or to stdout when
// path is empty.
func writeReport(stdout io.Writer, path string, report *domain.RunReport) error {
	w := stdout
	if path != "" {
		f, err := os.Create(path) //nolint:gosec // operator supplied path
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
