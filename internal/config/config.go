package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Search  SearchConfig  `mapstructure:"search"`
	Browser BrowserConfig `mapstructure:"browser"`
	Sites   SitesConfig   `mapstructure:"sites"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SearchConfig holds the parameters of a one-off search and the fallback stay for comparable searches
type SearchConfig struct {
	Destination string `mapstructure:"destination"`
	CheckIn     string `mapstructure:"check_in"`  // YYYY-MM-DD
	CheckOut    string `mapstructure:"check_out"` // YYYY-MM-DD
	Adults      int    `mapstructure:"adults"`
	Rooms       int    `mapstructure:"rooms"`
	OutputFile  string `mapstructure:"output_file"`
}

// BrowserConfig holds the automated browser session configuration
type BrowserConfig struct {
	Headless    bool          `mapstructure:"headless"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	Bin         string        `mapstructure:"bin"`
	UserDataDir string        `mapstructure:"user_data_dir"`

	// PopupSelectors are clicked, when present, after every navigation.
	PopupSelectors []string `mapstructure:"popup_selectors"`
}

// SitesConfig holds per-site URLs, credentials, and selector overrides
type SitesConfig struct {
	Booking BookingConfig `mapstructure:"booking"`
	Agoda   AgodaConfig   `mapstructure:"agoda"`
	Generic GenericConfig `mapstructure:"generic"`
}

type BookingConfig struct {
	Email           string            `mapstructure:"email"`
	Password        string            `mapstructure:"password"`
	LoginURL        string            `mapstructure:"login_url"`
	ReservationsURL string            `mapstructure:"reservations_url"`
	TripsURL        string            `mapstructure:"trips_url"`
	SearchURL       string            `mapstructure:"search_url"`
	Selectors       map[string]string `mapstructure:"selectors"`
}

type AgodaConfig struct {
	LoginURL        string            `mapstructure:"login_url"`
	ReservationsURL string            `mapstructure:"reservations_url"`
	SearchURL       string            `mapstructure:"search_url"`
	Selectors       map[string]string `mapstructure:"selectors"`
}

// GenericConfig describes a custom travel site reachable over plain HTTP
type GenericConfig struct {
	Name            string            `mapstructure:"name"`
	SearchURL       string            `mapstructure:"search_url"`
	QueryParam      string            `mapstructure:"query_param"`
	ReservationsURL string            `mapstructure:"reservations_url"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	Selectors       map[string]string `mapstructure:"selectors"`
}

// MonitorConfig holds price monitoring behavior configuration
type MonitorConfig struct {
	Site                 string  `mapstructure:"site"`
	OnlyCheckCancellable bool    `mapstructure:"only_check_cancellable"`
	LookaheadDays        int     `mapstructure:"lookahead_days"` // 0 = no limit
	PriceDropThreshold   float64 `mapstructure:"price_drop_threshold"`
	LoginWaitSeconds     int     `mapstructure:"login_wait_seconds"`
	LoginPollSeconds     int     `mapstructure:"login_poll_seconds"`
	LightLoginCheck      bool    `mapstructure:"light_login_check"`
	Schedule             string  `mapstructure:"schedule"` // cron expression for the daemon
}

// NotifyConfig holds notification channel configuration
type NotifyConfig struct {
	Email    EmailConfig    `mapstructure:"email"`
	SMS      SMSConfig      `mapstructure:"sms"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// Ready reports whether the channel is enabled and every required field is set.
// SMTP credentials are optional; without them mail is sent unauthenticated.
func (c EmailConfig) Ready() bool {
	return c.Enabled && c.SMTPHost != "" && c.SMTPPort > 0 && c.From != "" && len(c.To) > 0
}

type SMSConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	AccountSID string   `mapstructure:"account_sid"`
	AuthToken  string   `mapstructure:"auth_token"`
	From       string   `mapstructure:"from"`
	To         []string `mapstructure:"to"`
	APIBaseURL string   `mapstructure:"api_base_url"`
}

// Ready reports whether the channel is enabled and every required field is set.
func (c SMSConfig) Ready() bool {
	return c.Enabled && c.AccountSID != "" && c.AuthToken != "" && c.From != "" && len(c.To) > 0
}

type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// Ready reports whether the channel is enabled and every required field is set.
func (c TelegramConfig) Ready() bool {
	return c.Enabled && c.BotToken != "" && c.ChatID != ""
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	DataDir string `mapstructure:"data_dir"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv maps keys to the plain environment names accepted alongside OTAWATCH_*.
var legacyEnv = map[string]string{
	"monitor.only_check_cancellable": "ONLY_CHECK_CANCELLABLE",
	"monitor.lookahead_days":         "LOOKAHEAD_DAYS",
	"monitor.price_drop_threshold":   "PRICE_DROP_THRESHOLD",
	"monitor.login_wait_seconds":     "MONITOR_LOGIN_WAIT_SECONDS",
	"monitor.login_poll_seconds":     "MONITOR_LOGIN_POLL_SECONDS",
	"monitor.light_login_check":      "MONITOR_LIGHT_LOGIN_CHECK",
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	// OTAWATCH_MONITOR_SITE overrides monitor.site, and so on
	v.SetEnvPrefix("OTAWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "OTAWATCH_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("search.adults", 2)
	v.SetDefault("search.rooms", 1)
	v.SetDefault("search.output_file", "results.json")

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.timeout", "30s")
	v.SetDefault("browser.settle_delay", "2s")
	v.SetDefault("browser.popup_selectors", []string{
		"button[aria-label='Dismiss sign-in info.']",
		"button.fc-button.fc-cta-consent",
		"button#onetrust-accept-btn-handler",
		"[aria-label='Close']",
		".modal-close",
	})

	v.SetDefault("sites.booking.login_url", "https://account.booking.com/sign-in")
	v.SetDefault("sites.booking.reservations_url", "https://secure.booking.com/myreservations.html")
	v.SetDefault("sites.booking.trips_url", "https://secure.booking.com/mytrips.html")
	v.SetDefault("sites.booking.search_url", "https://www.booking.com/searchresults.html")
	v.SetDefault("sites.agoda.login_url", "https://www.agoda.com/account/signin")
	v.SetDefault("sites.agoda.reservations_url", "https://www.agoda.com/account/booking")
	v.SetDefault("sites.agoda.search_url", "https://www.agoda.com/search")
	v.SetDefault("sites.generic.name", "Custom")
	v.SetDefault("sites.generic.query_param", "q")
	v.SetDefault("sites.generic.timeout", "30s")

	v.SetDefault("monitor.site", "booking")
	v.SetDefault("monitor.only_check_cancellable", true)
	v.SetDefault("monitor.lookahead_days", 365)
	v.SetDefault("monitor.price_drop_threshold", 1.0)
	v.SetDefault("monitor.login_wait_seconds", 300)
	v.SetDefault("monitor.login_poll_seconds", 5)
	v.SetDefault("monitor.light_login_check", true)
	v.SetDefault("monitor.schedule", "@every 6h")

	v.SetDefault("notify.email.smtp_port", 587)
	v.SetDefault("notify.sms.api_base_url", "https://api.twilio.com")
	v.SetDefault("notify.telegram.max_retries", 3)
	v.SetDefault("notify.telegram.retry_delay_base", "1s")

	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.max_runs", 1000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// normalize applies the clamps that are corrections rather than errors.
func (c *Config) normalize() {
	c.Monitor.Site = strings.ToLower(strings.TrimSpace(c.Monitor.Site))
	if c.Monitor.PriceDropThreshold < 0 {
		c.Monitor.PriceDropThreshold = 0
	}
	if c.Monitor.LoginPollSeconds < 1 {
		c.Monitor.LoginPollSeconds = 1
	}
	if c.Monitor.LoginWaitSeconds < 0 {
		c.Monitor.LoginWaitSeconds = 0
	}
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Monitor.Site == "" {
		return fmt.Errorf("monitor.site is required")
	}
	if c.Monitor.LookaheadDays < 0 {
		return fmt.Errorf("monitor.lookahead_days must not be negative")
	}
	if c.Monitor.Schedule == "" {
		return fmt.Errorf("monitor.schedule is required")
	}
	if _, err := cron.ParseStandard(c.Monitor.Schedule); err != nil {
		return fmt.Errorf("monitor.schedule is invalid: %w", err)
	}

	if c.Search.Adults < 1 {
		return fmt.Errorf("search.adults must be at least 1")
	}
	if c.Search.Rooms < 1 {
		return fmt.Errorf("search.rooms must be at least 1")
	}
	for _, d := range []struct{ key, value string }{
		{"search.check_in", c.Search.CheckIn},
		{"search.check_out", c.Search.CheckOut},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d.value); err != nil {
			return fmt.Errorf("%s must be formatted as YYYY-MM-DD", d.key)
		}
	}

	if c.Browser.Timeout < time.Second {
		return fmt.Errorf("browser.timeout must be at least 1 second")
	}
	if c.Browser.SettleDelay < 0 {
		return fmt.Errorf("browser.settle_delay must not be negative")
	}

	if c.Notify.Email.SMTPPort < 0 || c.Notify.Email.SMTPPort > 65535 {
		return fmt.Errorf("notify.email.smtp_port must be between 0 and 65535")
	}
	if c.Notify.Telegram.MaxRetries < 0 {
		return fmt.Errorf("notify.telegram.max_retries must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// LoginWait returns the manual login budget.
func (c *Config) LoginWait() time.Duration {
	return time.Duration(c.Monitor.LoginWaitSeconds) * time.Second
}

// LoginPoll returns the manual login poll interval.
func (c *Config) LoginPoll() time.Duration {
	return time.Duration(c.Monitor.LoginPollSeconds) * time.Second
}
