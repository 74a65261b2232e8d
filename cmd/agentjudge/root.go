package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ahrav/agentjudge/internal/config"
	"github.com/ahrav/agentjudge/internal/registry"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "agentjudge",
		Short:         "Evaluate an agent CLI against a fixed task battery",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "harness config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override logging.format (text, json)")

	cmd.AddCommand(
		newRunCmd(opts),
		newValidateCmd(opts),
		newWorkerCmd(opts),
		newSubmitCmd(opts),
	)
	return cmd
}

// load reads the config (or defaults) and installs the process logger,
// which always writes to stderr so stdout stays clean for the report.
func (o *rootOptions) load(stderr io.Writer) (config.Config, *slog.Logger, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath == "" {
		cfg = config.Default()
		cfg.Scorers = config.DefaultScorers()
	} else if cfg, err = config.Load(o.configPath); err != nil {
		return config.Config{}, nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}

	logger := config.NewLogger(stderr, cfg.Logging)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func loadTasks(path string) (*registry.Registry, error) {
	if path == "" {
		return nil, fmt.Errorf("--tasks is required")
	}
	return registry.LoadFile(path)
}
