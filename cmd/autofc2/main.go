// Command autofc2 supervises a set of FC2 channel recordings driven by a
// declarative JSON config file, restarting each channel's recording
// session when it ends and hot-reloading the config on a fixed tick.
// Grounded on autofc2.py's AutoFC2 class and _main entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"autofc2/internal/fc2log"
	"autofc2/internal/supervisor"
	"autofc2/internal/transport"

	"github.com/spf13/cobra"
)

const versionString = "autofc2 1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath    string
		logLevel      string
		trustEnvProxy bool
	)

	cmd := &cobra.Command{
		Use:     "autofc2",
		Short:   "Supervise recordings for many FC2 channels from a config file",
		Version: versionString,
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, ok := fc2log.Levels[logLevel]
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}
			logger := fc2log.NewDefault("autofc2", lvl)

			t, err := transport.New(transport.Options{TrustEnvProxy: trustEnvProxy})
			if err != nil {
				return err
			}

			sup, err := supervisor.New(configPath, t, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger.Log(versionString)
			if err := sup.Run(ctx); err != nil && err != context.Canceled {
				logger.Errorf("%v", err)
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "autofc2.json", "path to the supervisor's JSON config file")
	flags.StringVar(&logLevel, "log-level", "info", "initial log level (silent, error, warn, info, debug, trace)")
	flags.BoolVar(&trustEnvProxy, "trust-env-proxy", false, "honor HTTP_PROXY/HTTPS_PROXY environment variables")

	return cmd
}
