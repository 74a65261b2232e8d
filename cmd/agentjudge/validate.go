package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/agentjudge/internal/config"
	"github.com/ahrav/agentjudge/internal/invoker"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	var tasksPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run pre-flight checks without launching any task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			reg, err := loadTasks(tasksPath)
			if err != nil {
				return err
			}
			inv := invoker.New(cfg.Agent)
			if err := config.Preflight(cfg, reg, inv); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d tasks, %d scorers, agent %s\n",
				reg.Len(), len(cfg.Scorers), inv.Binary())
			return nil
		},
	}
	cmd.Flags().StringVarP(&tasksPath, "tasks", "t", "", "task file (YAML or JSONL)")
	return cmd
}
