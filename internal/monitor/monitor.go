package monitor

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/otawatch/internal/auth"
	"github.com/rewired-gh/otawatch/internal/logger"
	"github.com/rewired-gh/otawatch/internal/models"
	"github.com/rewired-gh/otawatch/internal/pricing"
	"github.com/rewired-gh/otawatch/internal/provider"
	"github.com/shopspring/decimal"
)

// Outcome is how a monitoring run ended.
type Outcome string

const (
	OutcomeLoginTimeout   Outcome = "login_timeout"
	OutcomeNoReservations Outcome = "no_reservations"
	OutcomeNoDrops        Outcome = "no_drops"
	OutcomeDrops          Outcome = "drops"
)

type Config struct {
	OnlyCancellable bool
	LookaheadDays   int
	Threshold       decimal.Decimal
	Login           auth.Options
}

func DefaultConfig() Config {
	return Config{
		OnlyCancellable: true,
		LookaheadDays:   365,
		Threshold:       decimal.NewFromInt(1),
		Login: auth.Options{
			Wait:      5 * time.Minute,
			Poll:      5 * time.Second,
			LightMode: true,
		},
	}
}

// Notifier delivers detected price drops.
type Notifier interface {
	Notify(ctx context.Context, site string, events []models.PriceDropEvent) error
}

// Recorder persists run history. Recording failures never fail a run.
type Recorder interface {
	StartRun(site string, at time.Time) (string, error)
	RecordCheck(runID string, c models.PriceCheck) error
	RecordDrops(runID string, events []models.PriceDropEvent) error
	MarkNotified(runID string) error
	FinishRun(runID, outcome string, reservations, events int, at time.Time) error
}

// Report describes a finished run.
type Report struct {
	Site         string
	Outcome      Outcome
	Reservations []models.Reservation
	Eligible     int
	Events       []models.PriceDropEvent
	NotifyErr    error
}

type Monitor struct {
	provider provider.Provider
	config   Config
	acquirer *auth.Acquirer
	notifier Notifier
	recorder Recorder
	now      func() time.Time
	out      io.Writer
}

type Option func(*Monitor)

func WithAcquirer(a *auth.Acquirer) Option { return func(m *Monitor) { m.acquirer = a } }
func WithNotifier(n Notifier) Option      { return func(m *Monitor) { m.notifier = n } }
func WithRecorder(r Recorder) Option      { return func(m *Monitor) { m.recorder = r } }
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithOutput sets where the no-drop summary table is printed. Defaults to stdout.
func WithOutput(w io.Writer) Option { return func(m *Monitor) { m.out = w } }

func New(p provider.Provider, config Config, opts ...Option) *Monitor {
	m := &Monitor{
		provider: p,
		config:   config,
		acquirer: auth.NewAcquirer(),
		now:      time.Now,
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.config.Threshold.IsNegative() {
		m.config.Threshold = decimal.Zero
	}
	return m
}

// Run performs one monitoring pass. Pipeline conditions are
// reported through Report.Outcome; the error is non-nil only when ctx ends mid-run.
func (m *Monitor) Run(ctx context.Context) (*Report, error) {
	site := m.provider.Name()
	report := &Report{Site: site}
	runID := m.startRun(site)
	defer m.finishRun(runID, report)

	opts := m.config.Login
	if opts.Progress == nil {
		opts.Progress = func(secondsLeft int) {
			logger.Info("Waiting for manual login on %s... ~%ds left", site, secondsLeft)
		}
	}
	if !m.acquirer.Acquire(ctx, m.provider.Auth(ctx), opts) {
		logger.Warn("Login not completed on %s (%s)", site, m.acquirer.State())
		report.Outcome = OutcomeLoginTimeout
		return report, nil
	}
	logger.Info("Logged in to %s", site)

	reservations, err := m.provider.FetchReservations(ctx)
	if err != nil {
		logger.Error("Failed to fetch reservations from %s: %v", site, err)
	}
	report.Reservations = reservations
	if len(reservations) == 0 {
		logger.Info("No reservations found on %s", site)
		report.Outcome = OutcomeNoReservations
		return report, nil
	}
	logger.Info("Found %d reservations on %s", len(reservations), site)

	eligible := m.Eligible(reservations)
	report.Eligible = len(eligible)
	logger.Info("%d of %d reservations eligible for price check", len(eligible), len(reservations))

	for _, r := range eligible {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if event, ok := m.check(ctx, runID, r); ok {
			report.Events = append(report.Events, event)
		}
	}

	if len(report.Events) == 0 {
		logger.Info("No price drops detected on %s", site)
		report.Outcome = OutcomeNoDrops
		RenderReservations(m.out, reservations)
		return report, nil
	}

	report.Outcome = OutcomeDrops
	logger.Info("Detected %d price drops on %s", len(report.Events), site)
	if m.recorder != nil && runID != "" {
		if err := m.recorder.RecordDrops(runID, report.Events); err != nil {
			logger.Warn("Failed to record price drops: %v", err)
		}
	}
	if m.notifier == nil {
		return report, nil
	}
	if err := m.notifier.Notify(ctx, site, report.Events); err != nil {
		logger.Error("Failed to deliver price drop alerts: %v", err)
		report.NotifyErr = err
		return report, nil
	}
	if m.recorder != nil && runID != "" {
		if err := m.recorder.MarkNotified(runID); err != nil {
			logger.Warn("Failed to mark drops notified: %v", err)
		}
	}
	return report, nil
}

// Eligible filters reservations down to those worth re-searching, preserving order.
func (m *Monitor) Eligible(reservations []models.Reservation) []models.Reservation {
	today := truncateDay(m.now())
	var horizon time.Time
	if m.config.LookaheadDays > 0 {
		horizon = today.AddDate(0, 0, m.config.LookaheadDays)
	}

	var eligible []models.Reservation
	for _, r := range reservations {
		if err := r.Validate(); err != nil {
			logger.Debug("Skipping reservation %q: %v", r.HotelName, err)
			continue
		}
		if m.config.OnlyCancellable && !r.Cancellable {
			logger.Debug("Skipping non-cancellable reservation %q", r.HotelName)
			continue
		}
		// Unparseable dates are kept.
		if in, ok := models.ParseStayDate(r.CheckIn); ok {
			if in.Before(today) {
				logger.Debug("Skipping past reservation %q (%s)", r.HotelName, r.CheckIn)
				continue
			}
			if !horizon.IsZero() && in.After(horizon) {
				logger.Debug("Skipping reservation %q beyond lookahead (%s)", r.HotelName, r.CheckIn)
				continue
			}
		}
		eligible = append(eligible, r)
	}
	return eligible
}

func (m *Monitor) check(ctx context.Context, runID string, r models.Reservation) (models.PriceDropEvent, bool) {
	offers, err := m.provider.SearchComparable(ctx, r)
	if errors.Is(err, provider.ErrUnreadableStay) {
		logger.Info("Skipping price check for %q: %v", r.HotelName, err)
		return models.PriceDropEvent{}, false
	}
	if err != nil {
		logger.Warn("Search failed for %q: %v", r.HotelName, err)
		return models.PriceDropEvent{}, false
	}
	offer, ok := m.provider.PickMatch(r, offers)
	if !ok {
		logger.Debug("No comparable offers for %q", r.HotelName)
		return models.PriceDropEvent{}, false
	}

	oldPrice := r.Price
	if !oldPrice.IsPositive() {
		oldPrice = pricing.Normalize(r.PriceText)
	}
	newPrice := offer.Price
	if !newPrice.IsPositive() {
		newPrice = pricing.Normalize(offer.PriceText)
	}

	now := m.now()
	if m.recorder != nil && runID != "" {
		c := models.PriceCheck{
			HotelName:   r.HotelName,
			RoomType:    r.RoomType,
			CheckIn:     r.CheckIn,
			CheckOut:    r.CheckOut,
			BookedPrice: oldPrice,
			OfferName:   offer.Name,
			OfferPrice:  newPrice,
			CheckedAt:   now,
		}
		if err := m.recorder.RecordCheck(runID, c); err != nil {
			logger.Warn("Failed to record price check: %v", err)
		}
	}

	delta, dropped := pricing.Drop(oldPrice, newPrice, m.config.Threshold)
	if !dropped {
		logger.Debug("No drop for %q: booked %s, now %s", r.HotelName, oldPrice, newPrice)
		return models.PriceDropEvent{}, false
	}
	event := models.PriceDropEvent{
		ID:          uuid.NewString(),
		HotelName:   r.HotelName,
		RoomType:    r.RoomType,
		CheckIn:     r.CheckIn,
		CheckOut:    r.CheckOut,
		OldPrice:    oldPrice,
		NewPrice:    newPrice,
		Delta:       delta,
		MatchedName: offer.Name,
		DetectedAt:  now,
	}
	if err := event.Validate(m.config.Threshold); err != nil {
		logger.Warn("Discarding price drop for %q: %v", r.HotelName, err)
		return models.PriceDropEvent{}, false
	}
	logger.Info("Price drop for %q: %s -> %s", r.HotelName, oldPrice.StringFixed(2), newPrice.StringFixed(2))
	return event, true
}

func (m *Monitor) startRun(site string) string {
	if m.recorder == nil {
		return ""
	}
	id, err := m.recorder.StartRun(site, m.now())
	if err != nil {
		logger.Warn("Failed to record run start: %v", err)
		return ""
	}
	return id
}

func (m *Monitor) finishRun(runID string, report *Report) {
	if m.recorder == nil || runID == "" {
		return
	}
	outcome := string(report.Outcome)
	if outcome == "" {
		outcome = "interrupted"
	}
	if err := m.recorder.FinishRun(runID, outcome, len(report.Reservations), len(report.Events), m.now()); err != nil {
		logger.Warn("Failed to record run finish: %v", err)
	}
}

// truncateDay returns the local calendar day of t at UTC midnight, the same
// representation ParseStayDate produces.
func truncateDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
