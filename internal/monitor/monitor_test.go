package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/otawatch/internal/auth"
	"github.com/rewired-gh/otawatch/internal/config"
	"github.com/rewired-gh/otawatch/internal/models"
	"github.com/rewired-gh/otawatch/internal/pricing"
	"github.com/rewired-gh/otawatch/internal/provider"
	"github.com/rewired-gh/otawatch/internal/storage"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2030, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeProvider struct {
	loggedIn     bool
	reservations []models.Reservation
	fetchErr     error
	offers       map[string][]models.ComparableOffer
	searchErr    map[string]error
	fetched      int
	searched     []string
}

var _ provider.Provider = (*fakeProvider)(nil)

func (p *fakeProvider) Name() string { return "Booking" }

func (p *fakeProvider) Auth(ctx context.Context) auth.Hooks {
	check := func() bool { return p.loggedIn }
	return auth.Hooks{Probe: auth.Probe{Light: check, Heavy: check}}
}

func (p *fakeProvider) FetchReservations(ctx context.Context) ([]models.Reservation, error) {
	p.fetched++
	return p.reservations, p.fetchErr
}

func (p *fakeProvider) Search(ctx context.Context, q provider.SearchQuery) ([]models.ComparableOffer, error) {
	return nil, nil
}

func (p *fakeProvider) SearchComparable(ctx context.Context, r models.Reservation) ([]models.ComparableOffer, error) {
	p.searched = append(p.searched, r.HotelName)
	if err := p.searchErr[r.HotelName]; err != nil {
		return nil, err
	}
	return p.offers[r.HotelName], nil
}

func (p *fakeProvider) PickMatch(r models.Reservation, offers []models.ComparableOffer) (models.ComparableOffer, bool) {
	return provider.DefaultPickMatch(r, offers)
}

func (p *fakeProvider) Close() error { return nil }

type fakeNotifier struct {
	calls  int
	site   string
	events []models.PriceDropEvent
	err    error
}

func (n *fakeNotifier) Notify(ctx context.Context, site string, events []models.PriceDropEvent) error {
	n.calls++
	n.site = site
	n.events = events
	return n.err
}

func reservation(name, checkIn, price string, cancellable bool) models.Reservation {
	return models.Reservation{
		HotelName:   name,
		RoomType:    "Double Room",
		CheckIn:     checkIn,
		CheckOut:    "31 December 2031",
		PriceText:   price,
		Price:       pricing.Normalize(price),
		Cancellable: cancellable,
	}
}

func offer(name, price string) models.ComparableOffer {
	return models.ComparableOffer{Name: name, PriceText: price, Price: pricing.Normalize(price)}
}

// testConfig is the default configuration without a manual login wait.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Login.Wait = 0
	return cfg
}

func newTestMonitor(p *fakeProvider, cfg Config, opts ...Option) (*Monitor, *bytes.Buffer) {
	out := &bytes.Buffer{}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithOutput(out)}, opts...)
	return New(p, cfg, opts...), out
}

func TestRun_DropAboveThresholdEmits(t *testing.T) {
	tests := []struct {
		name     string
		newPrice string
		want     int
	}{
		{"200 to 150", "$150", 1},
		{"200 to 199.50", "$199.50", 0},
		{"200 to 199", "$199", 0},
		{"200 to 198.99", "$198.99", 1},
		{"price increase", "$250", 0},
		{"unreadable offer price", "Sold out", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{
				loggedIn:     true,
				reservations: []models.Reservation{reservation("Hotel A", "1 December 2030", "$200", true)},
				offers:       map[string][]models.ComparableOffer{"Hotel A": {offer("Hotel A", tt.newPrice)}},
			}
			n := &fakeNotifier{}
			m, _ := newTestMonitor(p, testConfig(), WithNotifier(n))

			report, err := m.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(report.Events) != tt.want {
				t.Fatalf("got %d events, want %d", len(report.Events), tt.want)
			}
			if tt.want == 0 {
				if report.Outcome != OutcomeNoDrops || n.calls != 0 {
					t.Errorf("outcome=%s notify calls=%d", report.Outcome, n.calls)
				}
				return
			}
			e := report.Events[0]
			if err := e.Validate(decimal.NewFromInt(1)); err != nil {
				t.Errorf("event invariant broken: %v", err)
			}
			if e.ID == "" || !e.DetectedAt.Equal(fixedNow) {
				t.Errorf("unexpected event identity: %+v", e)
			}
			if report.Outcome != OutcomeDrops || n.calls != 1 {
				t.Errorf("outcome=%s notify calls=%d", report.Outcome, n.calls)
			}
		})
	}
}

func TestRun_CancellableFilter(t *testing.T) {
	newProvider := func() *fakeProvider {
		return &fakeProvider{
			loggedIn:     true,
			reservations: []models.Reservation{reservation("Hotel A", "1 December 2030", "$200", false)},
			offers:       map[string][]models.ComparableOffer{"Hotel A": {offer("Hotel A", "$100")}},
		}
	}

	p := newProvider()
	m, _ := newTestMonitor(p, testConfig())
	report, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(p.searched) != 0 || len(report.Events) != 0 {
		t.Errorf("non-cancellable reservation was searched: %v", p.searched)
	}

	cfg := testConfig()
	cfg.OnlyCancellable = false
	p = newProvider()
	m, _ = newTestMonitor(p, cfg)
	report, err = m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Events) != 1 {
		t.Errorf("expected drop with cancellable filter off, got %d", len(report.Events))
	}
}

func TestRun_TwoReservationsEndToEnd(t *testing.T) {
	p := &fakeProvider{
		loggedIn: true,
		reservations: []models.Reservation{
			reservation("Hotel A", "1 December 2030", "€ 320,00", true),
			reservation("Hotel B", "Mon 2 December 2030", "€ 180,00", true),
		},
		offers: map[string][]models.ComparableOffer{
			"Hotel A": {offer("Other", "€ 100,00"), offer("hotel a", "€ 280,00")},
			"Hotel B": {offer("Hotel B", "€ 180,00")},
		},
	}
	n := &fakeNotifier{}
	s, err := storage.New(10, ":memory:")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	m, _ := newTestMonitor(p, testConfig(), WithNotifier(n), WithRecorder(s))
	report, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Eligible != 2 || len(p.searched) != 2 {
		t.Errorf("eligible=%d searched=%v", report.Eligible, p.searched)
	}
	if len(report.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(report.Events))
	}
	e := report.Events[0]
	if e.HotelName != "Hotel A" || e.MatchedName != "hotel a" {
		t.Errorf("unexpected event: %+v", e)
	}
	if !e.Delta.Equal(decimal.NewFromInt(40)) {
		t.Errorf("got delta %s, want 40", e.Delta)
	}
	if n.site != "Booking" || len(n.events) != 1 {
		t.Errorf("notifier got site=%q events=%d", n.site, len(n.events))
	}

	runs, err := s.RecentRuns(5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Outcome != string(OutcomeDrops) || runs[0].Reservations != 2 || runs[0].Events != 1 {
		t.Errorf("unexpected recorded run: %+v", runs)
	}
	drops, err := s.RecentDrops(5)
	if err != nil {
		t.Fatalf("RecentDrops: %v", err)
	}
	if len(drops) != 1 || drops[0].ID != e.ID {
		t.Errorf("unexpected recorded drops: %+v", drops)
	}
}

func TestRun_LoginNotCompleted(t *testing.T) {
	p := &fakeProvider{
		loggedIn:     false,
		reservations: []models.Reservation{reservation("Hotel A", "1 December 2030", "$200", true)},
	}
	n := &fakeNotifier{}
	m, out := newTestMonitor(p, testConfig(), WithNotifier(n))

	report, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcome != OutcomeLoginTimeout {
		t.Errorf("got outcome %s, want %s", report.Outcome, OutcomeLoginTimeout)
	}
	if p.fetched != 0 || n.calls != 0 || out.Len() != 0 {
		t.Errorf("nothing should run after a failed login: fetched=%d notify=%d out=%q", p.fetched, n.calls, out.String())
	}
}

func TestRun_NoReservations(t *testing.T) {
	for _, fetchErr := range []error{nil, errors.New("page timeout")} {
		p := &fakeProvider{loggedIn: true, fetchErr: fetchErr}
		n := &fakeNotifier{}
		m, _ := newTestMonitor(p, testConfig(), WithNotifier(n))

		report, err := m.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if report.Outcome != OutcomeNoReservations || n.calls != 0 {
			t.Errorf("fetchErr=%v: outcome=%s notify calls=%d", fetchErr, report.Outcome, n.calls)
		}
	}
}

func TestRun_SearchErrorIsNoOffers(t *testing.T) {
	p := &fakeProvider{
		loggedIn:     true,
		reservations: []models.Reservation{reservation("Hotel A", "1 December 2030", "$200", true)},
		searchErr:    map[string]error{"Hotel A": errors.New("captcha")},
	}
	m, out := newTestMonitor(p, testConfig())
	report, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcome != OutcomeNoDrops {
		t.Errorf("got outcome %s", report.Outcome)
	}
	if !strings.Contains(out.String(), "Hotel A") {
		t.Errorf("expected summary table with the reservation, got %q", out.String())
	}
}

func TestRun_NotifyFailureIsReported(t *testing.T) {
	p := &fakeProvider{
		loggedIn:     true,
		reservations: []models.Reservation{reservation("Hotel A", "1 December 2030", "$200", true)},
		offers:       map[string][]models.ComparableOffer{"Hotel A": {offer("Hotel A", "$150")}},
	}
	n := &fakeNotifier{err: errors.New("smtp down")}
	m, _ := newTestMonitor(p, testConfig(), WithNotifier(n))

	report, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcome != OutcomeDrops || report.NotifyErr == nil {
		t.Errorf("outcome=%s notifyErr=%v", report.Outcome, report.NotifyErr)
	}
}

func TestRun_CancelledContextStopsSearching(t *testing.T) {
	p := &fakeProvider{
		loggedIn:     true,
		reservations: []models.Reservation{reservation("Hotel A", "1 December 2030", "$200", true)},
	}
	m, _ := newTestMonitor(p, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	p.reservations = append(p.reservations, reservation("Hotel B", "2 December 2030", "$200", true))
	cancel()

	// The heavy check still passes on a cancelled context; the loop stops before searching.
	_, err := m.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if len(p.searched) != 0 {
		t.Errorf("expected no searches, got %v", p.searched)
	}
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		r    models.Reservation
		want bool
	}{
		{"future", reservation("A", "1 December 2030", "$1", true), true},
		{"today", reservation("A", "2030-06-01", "$1", true), true},
		{"past", reservation("A", "31 May 2030", "$1", true), false},
		{"past with weekday", reservation("A", "Friday, 31 May 2030", "$1", true), false},
		{"unparseable date kept", reservation("A", "next summer", "$1", true), true},
		{"beyond lookahead", reservation("A", "2031-06-02", "$1", true), false},
		{"at lookahead edge", reservation("A", "2031-06-01", "$1", true), true},
		{"missing name", reservation("N/A", "1 December 2030", "$1", true), false},
		{"missing check-in", reservation("A", "", "$1", true), false},
		{"not cancellable", reservation("A", "1 December 2030", "$1", false), false},
	}

	m, _ := newTestMonitor(&fakeProvider{}, testConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := len(m.Eligible([]models.Reservation{tt.r})) == 1
			if got != tt.want {
				t.Errorf("Eligible(%q) = %v, want %v", tt.r.CheckIn, got, tt.want)
			}
		})
	}
}

func TestEligible_ZeroLookaheadIsUnbounded(t *testing.T) {
	cfg := testConfig()
	cfg.LookaheadDays = 0
	m, _ := newTestMonitor(&fakeProvider{}, cfg)

	got := m.Eligible([]models.Reservation{reservation("A", "2040-01-01", "$1", true)})
	if len(got) != 1 {
		t.Error("expected far-future reservation to be eligible without a lookahead")
	}
}

func TestRenderDrops(t *testing.T) {
	var buf bytes.Buffer
	RenderDrops(&buf, []models.PriceDropEvent{{
		HotelName:  "Hotel A",
		CheckIn:    "1 Dec 2030",
		CheckOut:   "5 Dec 2030",
		OldPrice:   decimal.NewFromInt(200),
		NewPrice:   decimal.NewFromInt(150),
		Delta:      decimal.NewFromInt(50),
		DetectedAt: fixedNow,
	}})
	for _, want := range []string{"Hotel A", "200.00", "150.00", "50.00", "2030-06-01 10:00"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("table missing %q:\n%s", want, buf.String())
		}
	}
}

func TestRun_PartialStayIsNotCompared(t *testing.T) {
	tests := []struct {
		name       string
		stay       string
		wantSearch int
		wantEvents int
	}{
		{"full stay", "1 December 2030 – 5 December 2030", 1, 1},
		{"unreadable check-in", "next summer – 5 December 2030", 0, 0},
		{"missing check-out", "1 December 2030 – sometime", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searches := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/reservations" {
					fmt.Fprintf(w, `<div class="reservation-card"><span class="hotel-name">Casa Azul</span>
<span class="stay-dates">%s</span><span class="total-price">€ 900.00</span>
<span class="cancellation-policy">Free cancellation</span></div>`, tt.stay)
					return
				}
				searches++
				fmt.Fprint(w, `<div class="hotel-card"><h3 class="hotel-name">Casa Azul</h3><span class="price">€ 150.00</span></div>`)
			}))
			defer srv.Close()

			cfg := &config.Config{
				Search: config.SearchConfig{CheckIn: "2030-12-04", CheckOut: "2030-12-05", Adults: 2, Rooms: 1},
				Sites: config.SitesConfig{Generic: config.GenericConfig{
					Name:            "Casa Travel",
					QueryParam:      "q",
					Timeout:         5 * time.Second,
					SearchURL:       srv.URL + "/search",
					ReservationsURL: srv.URL + "/reservations",
				}},
			}
			n := &fakeNotifier{}
			m := New(provider.NewGeneric(cfg), testConfig(),
				WithClock(func() time.Time { return fixedNow }), WithOutput(&bytes.Buffer{}), WithNotifier(n))

			report, err := m.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if report.Eligible != 1 {
				t.Fatalf("got %d eligible, want 1", report.Eligible)
			}
			if searches != tt.wantSearch {
				t.Errorf("got %d searches, want %d", searches, tt.wantSearch)
			}
			if len(report.Events) != tt.wantEvents || n.calls != tt.wantEvents {
				t.Errorf("got %d events and %d notifications, want %d", len(report.Events), n.calls, tt.wantEvents)
			}
		})
	}
}
