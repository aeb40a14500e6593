package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rewired-gh/otawatch/internal/auth"
	"github.com/rewired-gh/otawatch/internal/browser"
	"github.com/rewired-gh/otawatch/internal/config"
	"github.com/rewired-gh/otawatch/internal/logger"
	"github.com/rewired-gh/otawatch/internal/monitor"
	"github.com/rewired-gh/otawatch/internal/notify"
	"github.com/rewired-gh/otawatch/internal/provider"
	"github.com/rewired-gh/otawatch/internal/storage"
	"github.com/rewired-gh/otawatch/internal/telegram"
	"github.com/shopspring/decimal"
)

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid configuration: %v", ErrConfig, err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", path)
	return cfg, nil
}

func monitorConfig(cfg *config.Config) monitor.Config {
	return monitor.Config{
		OnlyCancellable: cfg.Monitor.OnlyCheckCancellable,
		LookaheadDays:   cfg.Monitor.LookaheadDays,
		Threshold:       decimal.NewFromFloat(cfg.Monitor.PriceDropThreshold),
		Login: auth.Options{
			Wait:      cfg.LoginWait(),
			Poll:      cfg.LoginPoll(),
			LightMode: cfg.Monitor.LightLoginCheck,
		},
	}
}

// resolveProvider builds the provider for a site. Tests replace it to inject fakes.
var resolveProvider = func(ctx context.Context, cfg *config.Config, site string) (provider.Provider, error) {
	return provider.Resolve(ctx, site, provider.Deps{
		Config: cfg,
		OpenPage: func(ctx context.Context) (browser.Page, error) {
			s, err := browser.Launch(ctx, cfg.Browser)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	})
}

func closeProvider(p provider.Provider) {
	if err := p.Close(); err != nil {
		logger.Warn("Failed to close %s session: %v", p.Name(), err)
	}
}

func dbPath(cfg *config.Config) string {
	if cfg.Storage.DBPath != "" {
		return cfg.Storage.DBPath
	}
	return filepath.Join(cfg.Storage.DataDir, "history.db")
}

func openStore(cfg *config.Config) (*storage.Storage, error) {
	store, err := storage.New(cfg.Storage.MaxRuns, dbPath(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func closeStore(store *storage.Storage) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
}

// buildChannels returns every fully configured channel. The Telegram client is
// also returned on its own for daemon error notices.
func buildChannels(cfg *config.Config) ([]notify.Channel, *telegram.Client) {
	var channels []notify.Channel
	if cfg.Notify.Email.Ready() {
		channels = append(channels, notify.NewEmail(cfg.Notify.Email))
	} else if cfg.Notify.Email.Enabled {
		logger.Warn("Email notifications enabled but incomplete, skipping")
	}
	if cfg.Notify.SMS.Ready() {
		channels = append(channels, notify.NewSMS(cfg.Notify.SMS))
	} else if cfg.Notify.SMS.Enabled {
		logger.Warn("SMS notifications enabled but incomplete, skipping")
	}

	var tg *telegram.Client
	tc := cfg.Notify.Telegram
	if tc.Ready() {
		client, err := telegram.NewClient(tc.BotToken, tc.ChatID, tc.MaxRetries, tc.RetryDelayBase)
		if err != nil {
			logger.Warn("Failed to initialize Telegram client: %v", err)
		} else {
			tg = client
			channels = append(channels, client)
			logger.Info("Telegram client initialized successfully")
		}
	} else if tc.Enabled {
		logger.Warn("Telegram notifications enabled but incomplete, skipping")
	}

	return channels, tg
}

// runOnce performs one monitoring pass against the configured site. The provider
// session is closed on every path, including panics.
func runOnce(ctx context.Context, cfg *config.Config, store *storage.Storage, notifier monitor.Notifier) (report *monitor.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected panic during run: %v", r)
		}
	}()

	p, err := resolveProvider(ctx, cfg, cfg.Monitor.Site)
	if err != nil {
		return nil, err
	}
	defer closeProvider(p)

	opts := []monitor.Option{monitor.WithNotifier(notifier)}
	if store != nil {
		opts = append(opts, monitor.WithRecorder(store))
	}
	report, err = monitor.New(p, monitorConfig(cfg), opts...).Run(ctx)
	if err != nil {
		return report, err
	}
	if report.Outcome == monitor.OutcomeLoginTimeout {
		return report, fmt.Errorf("%w on %s", ErrLoginTimeout, report.Site)
	}
	return report, nil
}
