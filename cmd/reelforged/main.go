package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reelforge/internal/config"
	"reelforge/internal/daemonrun"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts daemonrun.Options
	var configPath string
	cmd := &cobra.Command{
		Use:           "reelforged",
		Short:         "reelforge render daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&opts.Development, "dev", false, "Enable development logging (source locations)")
	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 0, "How long running jobs get to stop on shutdown (default 30s)")
	return cmd
}
