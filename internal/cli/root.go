// Package cli wires configuration, providers, storage and notifiers into commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rewired-gh/otawatch/internal/logger"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type options struct {
	configPath string
}

func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "otawatch",
		Short:         "Watches hotel reservations for cheaper rates and sends alerts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "Path to configuration file")

	root.AddCommand(newMonitorCmd(opts))
	root.AddCommand(newDaemonCmd(opts))
	root.AddCommand(newSearchCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Info("Shutdown signal received, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
	}()

	err := NewRootCmd().ExecuteContext(ctx)
	code := ExitCode(err)
	if err != nil && code != 0 {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return code
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "otawatch %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}
