package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rewired-gh/otawatch/internal/config"
	"github.com/rewired-gh/otawatch/internal/logger"
	"github.com/rewired-gh/otawatch/internal/notify"
	"github.com/rewired-gh/otawatch/internal/provider"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newDaemonCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the monitor on the configured schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg)
		},
	}
}

// cronLogger routes scheduler messages through the application logger.
type cronLogger struct{}

func (cronLogger) formatParams(keysAndValues []any) string {
	var s string
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		s += fmt.Sprintf(" %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	return s
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug("cron: %s%s", msg, l.formatParams(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error("cron: %s: %v%s", msg, err, l.formatParams(keysAndValues))
}

// runState tracks consecutive failures and the last result for /status.
type runState struct {
	mu       sync.Mutex
	failures int
	last     string
}

func (s *runState) status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == "" {
		return "No run completed yet"
	}
	return s.last
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	if err := provider.CheckSite(cfg.Monitor.Site); err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		logger.Warn("Run history disabled: %v", err)
	}
	defer closeStore(store)

	channels, tg := buildChannels(cfg)
	dispatcher := notify.NewDispatcher(channels...)
	state := &runState{}
	if tg != nil {
		tg.ListenForCommands(ctx, state.status)
	}

	job := func() {
		if ctx.Err() != nil {
			return
		}
		logger.Debug("Starting scheduled monitoring run")
		report, err := runOnce(ctx, cfg, store, dispatcher)
		if errors.Is(err, context.Canceled) {
			return
		}

		state.mu.Lock()
		defer state.mu.Unlock()
		at := time.Now().Format("2006-01-02 15:04")
		if err != nil {
			state.failures++
			state.last = fmt.Sprintf("%s: failed (%v)", at, err)
			logger.Error("Monitoring run failed: %v", err)
			if state.failures == 1 && tg != nil {
				if sendErr := tg.SendError(ctx, err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}
		state.last = fmt.Sprintf("%s: %s, %d reservations, %d drops", at, report.Outcome, len(report.Reservations), len(report.Events))
		if state.failures > 0 && tg != nil {
			if sendErr := tg.SendRecovery(ctx, state.failures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		state.failures = 0
	}

	c := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	if _, err := c.AddFunc(cfg.Monitor.Schedule, job); err != nil {
		return fmt.Errorf("%w: invalid schedule %q: %v", ErrConfig, cfg.Monitor.Schedule, err)
	}

	logger.Info("Starting monitoring daemon (site: %s, schedule: %s)", cfg.Monitor.Site, cfg.Monitor.Schedule)
	logger.Debug("Running initial monitoring run")
	job()

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("Service stopped")
	return nil
}
