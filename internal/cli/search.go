package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rewired-gh/otawatch/internal/logger"
	"github.com/rewired-gh/otawatch/internal/models"
	"github.com/rewired-gh/otawatch/internal/provider"
	"github.com/rewired-gh/otawatch/internal/storage"
	"github.com/spf13/cobra"
)

func newSearchCmd(opts *options) *cobra.Command {
	var (
		site   string
		q      provider.SearchQuery
		output string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search a site for a destination and write the offers as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if !flags.Changed("site") {
				site = cfg.Monitor.Site
			}
			if !flags.Changed("destination") {
				q.Destination = cfg.Search.Destination
			}
			if !flags.Changed("check-in") {
				q.CheckIn = cfg.Search.CheckIn
			}
			if !flags.Changed("check-out") {
				q.CheckOut = cfg.Search.CheckOut
			}
			if !flags.Changed("adults") {
				q.Adults = cfg.Search.Adults
			}
			if !flags.Changed("rooms") {
				q.Rooms = cfg.Search.Rooms
			}
			if !flags.Changed("output") {
				output = cfg.Search.OutputFile
			}
			if q.Destination == "" {
				return fmt.Errorf("%w: search destination is required", ErrConfig)
			}
			if !filepath.IsAbs(output) {
				output = filepath.Join(cfg.Storage.DataDir, output)
			}

			p, err := resolveProvider(cmd.Context(), cfg, site)
			if err != nil {
				return err
			}
			defer closeProvider(p)

			offers, err := p.Search(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("failed to search %s: %w", p.Name(), err)
			}

			now := time.Now()
			results := make([]models.SearchResult, 0, len(offers))
			for _, o := range offers {
				results = append(results, models.SearchResult{
					Site:       p.Name(),
					Name:       o.Name,
					Price:      o.PriceText,
					Rating:     o.Rating,
					Location:   o.Location,
					SearchedAt: now,
				})
			}
			if err := storage.WriteJSON(output, results); err != nil {
				return err
			}
			logger.Info("Saved %d results from %s to %s", len(results), p.Name(), output)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&site, "site", "", "Site to search (defaults to monitor.site)")
	flags.StringVarP(&q.Destination, "destination", "d", "", "Destination or hotel name")
	flags.StringVar(&q.CheckIn, "check-in", "", "Check-in date (YYYY-MM-DD)")
	flags.StringVar(&q.CheckOut, "check-out", "", "Check-out date (YYYY-MM-DD)")
	flags.IntVar(&q.Adults, "adults", 2, "Number of adults")
	flags.IntVar(&q.Rooms, "rooms", 1, "Number of rooms")
	flags.StringVarP(&output, "output", "o", "", "Output file (relative paths are under storage.data_dir)")
	return cmd
}
