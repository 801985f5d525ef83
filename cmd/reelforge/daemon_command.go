package main

import (
	"time"

	"github.com/spf13/cobra"

	"reelforge/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	var shutdown time.Duration
	cmd := &cobra.Command{
		Use:         "daemon",
		Short:       "Run the reelforge daemon in the foreground",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:        logLevel,
				Development:     development,
				ShutdownTimeout: shutdown,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&development, "dev", false, "Enable development logging (source locations)")
	cmd.Flags().DurationVar(&shutdown, "shutdown-timeout", 30*time.Second, "How long running jobs get to stop on shutdown")
	return cmd
}
