package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rewired-gh/otawatch/internal/auth"
	"github.com/rewired-gh/otawatch/internal/browser"
	"github.com/rewired-gh/otawatch/internal/config"
	"github.com/rewired-gh/otawatch/internal/logger"
	"github.com/rewired-gh/otawatch/internal/models"
)

var agodaSelectors = map[string]string{
	"account_menu":        `[data-element-name="header-account-menu"]`,
	"reservation_card":    `.BookingCard`,
	"hotel_name":          `[data-element-name="booking-hotel-name"]`,
	"room_type":           `[data-element-name="booking-room-type"]`,
	"date_range":          `[data-element-name="booking-dates"]`,
	"price_total":         `[data-element-name="booking-total-price"]`,
	"cancellation_policy": `[data-element-name="booking-cancellation-policy"]`,
	"reservation_status":  `[data-element-name="booking-status"]`,
	"result_card":         `[data-selenium="hotel-item"]`,
	"name":                `[data-selenium="hotel-name"]`,
	"price":               `[data-selenium="display-price"]`,
	"rating":              `[data-element-name="review-score"]`,
	"location":            `[data-selenium="area-city-text"]`,
}

// Agoda monitors reservations on Agoda through a browser session. Login is manual.
type Agoda struct {
	page   browser.Page
	site   config.AgodaConfig
	search config.SearchConfig
	sel    selectors
}

func NewAgoda(page browser.Page, cfg *config.Config) *Agoda {
	return &Agoda{
		page:   page,
		site:   cfg.Sites.Agoda,
		search: cfg.Search,
		sel:    mergeSelectors(agodaSelectors, cfg.Sites.Agoda.Selectors),
	}
}

func (a *Agoda) Name() string { return "Agoda" }

func (a *Agoda) Auth(ctx context.Context) auth.Hooks {
	return auth.Hooks{
		Probe: auth.Probe{
			Light: a.lightCheck,
			Heavy: a.heavyCheck,
		},
		NavigateLoginOnce: a.navigateLoginOnce,
		// Agoda sign-in is not automated.
		AutoLogin: func() (bool, error) { return false, nil },
	}
}

func (a *Agoda) lightCheck() bool {
	current := strings.ToLower(a.page.URL())
	for _, marker := range []string{"agoda.com/account", "/mybookings", "/account/booking"} {
		if strings.Contains(current, marker) && !strings.Contains(current, "signin") {
			return true
		}
	}
	return a.page.Has(a.sel["account_menu"])
}

// heavyCheck opens the bookings page; staying off the sign-in page means logged in.
func (a *Agoda) heavyCheck() bool {
	if err := a.page.Navigate(a.site.ReservationsURL); err != nil {
		logger.Debug("Agoda bookings page unreachable: %v", err)
		return false
	}
	current := strings.ToLower(a.page.URL())
	return current != "" && !strings.Contains(current, "signin") && !strings.Contains(current, "login")
}

func (a *Agoda) navigateLoginOnce() error {
	if !isBlank(a.page.URL()) {
		return nil
	}
	return a.page.Navigate(a.site.LoginURL)
}

func (a *Agoda) FetchReservations(ctx context.Context) ([]models.Reservation, error) {
	if err := a.page.Navigate(a.site.ReservationsURL); err != nil {
		return nil, err
	}
	html, err := a.page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	return parseReservations(html, a.sel)
}

func (a *Agoda) Search(ctx context.Context, q SearchQuery) ([]models.ComparableOffer, error) {
	u, err := url.Parse(a.site.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("invalid search url: %w", err)
	}
	params := u.Query()
	params.Set("textToSearch", q.Destination)
	if q.CheckIn != "" {
		params.Set("checkIn", q.CheckIn)
	}
	if q.CheckOut != "" {
		params.Set("checkOut", q.CheckOut)
	}
	params.Set("adults", strconv.Itoa(max(1, q.Adults)))
	params.Set("rooms", strconv.Itoa(max(1, q.Rooms)))
	u.RawQuery = params.Encode()

	if err := a.page.Navigate(u.String()); err != nil {
		return nil, err
	}
	html, err := a.page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return parseOffers(html, a.sel, maxOffers)
}

func (a *Agoda) SearchComparable(ctx context.Context, r models.Reservation) ([]models.ComparableOffer, error) {
	q, err := comparableQuery(r, a.search)
	if err != nil {
		return nil, err
	}
	return a.Search(ctx, q)
}

func (a *Agoda) PickMatch(r models.Reservation, offers []models.ComparableOffer) (models.ComparableOffer, bool) {
	return DefaultPickMatch(r, offers)
}

func (a *Agoda) Close() error {
	return a.page.Close()
}
