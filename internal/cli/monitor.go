package cli

import (
	"github.com/rewired-gh/otawatch/internal/logger"
	"github.com/rewired-gh/otawatch/internal/notify"
	"github.com/rewired-gh/otawatch/internal/provider"
	"github.com/spf13/cobra"
)

func newMonitorCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Check reservations once and alert on price drops",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if err := provider.CheckSite(cfg.Monitor.Site); err != nil {
				return err
			}

			store, err := openStore(cfg)
			if err != nil {
				logger.Warn("Run history disabled: %v", err)
			}
			defer closeStore(store)

			channels, _ := buildChannels(cfg)
			report, err := runOnce(cmd.Context(), cfg, store, notify.NewDispatcher(channels...))
			if err != nil {
				return err
			}
			logger.Info("Run finished: %s (%d reservations, %d eligible, %d drops)",
				report.Outcome, len(report.Reservations), report.Eligible, len(report.Events))
			return nil
		},
	}
}
