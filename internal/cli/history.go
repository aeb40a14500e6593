package cli

import (
	"github.com/rewired-gh/otawatch/internal/monitor"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		limit int
		runs  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently detected price drops",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore(store)

			if runs {
				recent, err := store.RecentRuns(limit)
				if err != nil {
					return err
				}
				monitor.RenderRuns(cmd.OutOrStdout(), recent)
				return nil
			}
			drops, err := store.RecentDrops(limit)
			if err != nil {
				return err
			}
			monitor.RenderDrops(cmd.OutOrStdout(), drops)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&runs, "runs", false, "Show monitoring runs instead of drops")
	return cmd
}
