package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/rewired-gh/otawatch/internal/auth"
	"github.com/rewired-gh/otawatch/internal/browser"
	"github.com/rewired-gh/otawatch/internal/config"
	"github.com/rewired-gh/otawatch/internal/logger"
	"github.com/rewired-gh/otawatch/internal/models"
)

var bookingSelectors = map[string]string{
	"email_input":          `input[type="email"]`,
	"continue_button":      `button[type="submit"]`,
	"password_input":       `input[type="password"]`,
	"account_menu":         `[data-testid="header-profile"]`,
	"reservation_card":     `[data-testid="booking-card"]`,
	"reservation_card_alt": `[data-testid*="booking"]`,
	"hotel_name":           `[data-testid="property-name"]`,
	"room_type":            `[data-testid="room-type"]`,
	"date_range":           `[data-testid="stay-dates"]`,
	"price_total":          `[data-testid="total-price"]`,
	"cancellation_policy":  `[data-testid="cancellation-policy"]`,
	"reservation_status":   `[data-testid="reservation-status"]`,
	"result_card":          `[data-testid="property-card"]`,
	"name":                 `[data-testid="title"]`,
	"price":                `[data-testid="price-and-discounted-price"]`,
	"rating":               `[data-testid="review-score"]`,
	"location":             `[data-testid="address"]`,
}

// fuzzyMatchMin is the Jaro-Winkler similarity above which two hotel names are
// taken to be the same property.
const fuzzyMatchMin = 0.92

// Booking monitors reservations on Booking.com through a browser session.
type Booking struct {
	page   browser.Page
	site   config.BookingConfig
	search config.SearchConfig
	sel    selectors
}

func NewBooking(page browser.Page, cfg *config.Config) *Booking {
	return &Booking{
		page:   page,
		site:   cfg.Sites.Booking,
		search: cfg.Search,
		sel:    mergeSelectors(bookingSelectors, cfg.Sites.Booking.Selectors),
	}
}

func (b *Booking) Name() string { return "Booking" }

func (b *Booking) Auth(ctx context.Context) auth.Hooks {
	return auth.Hooks{
		Probe: auth.Probe{
			Light: b.lightCheck,
			Heavy: b.heavyCheck,
		},
		NavigateLoginOnce: b.navigateLoginOnce,
		AutoLogin:         b.autoLogin,
	}
}

// lightCheck inspects the current location and header without navigating.
func (b *Booking) lightCheck() bool {
	current := strings.ToLower(b.page.URL())
	if strings.Contains(current, "sign-in") {
		return false
	}
	for _, marker := range []string{"secure.booking.com/my", "/mytrips", "/myreservations"} {
		if strings.Contains(current, marker) {
			return true
		}
	}
	return b.page.Has(b.sel["account_menu"])
}

// heavyCheck opens the reservations page; a redirect to sign-in means logged out.
func (b *Booking) heavyCheck() bool {
	if err := b.page.Navigate(b.site.ReservationsURL); err != nil {
		logger.Debug("Booking reservations page unreachable: %v", err)
		return false
	}
	current := strings.ToLower(b.page.URL())
	return current != "" && !strings.Contains(current, "sign-in") && !strings.Contains(current, "account.booking.com")
}

func (b *Booking) navigateLoginOnce() error {
	if !isBlank(b.page.URL()) {
		return nil
	}
	return b.page.Navigate(b.site.LoginURL)
}

// autoLogin submits stored credentials. It reports success optimistically; the
// caller confirms with the heavy check.
func (b *Booking) autoLogin() (bool, error) {
	if b.site.Email == "" || b.site.Password == "" {
		return false, nil
	}
	if err := b.page.Navigate(b.site.LoginURL); err != nil {
		return false, err
	}
	if err := b.page.Input(b.sel["email_input"], b.site.Email); err != nil {
		return false, err
	}
	if err := b.page.Click(b.sel["continue_button"]); err != nil {
		return false, err
	}
	if err := b.page.Input(b.sel["password_input"], b.site.Password); err != nil {
		return false, err
	}
	if err := b.page.Click(b.sel["continue_button"]); err != nil {
		return false, err
	}
	logger.Debug("Booking credentials submitted")
	return true, nil
}

func (b *Booking) FetchReservations(ctx context.Context) ([]models.Reservation, error) {
	var lastErr error
	for _, pageURL := range []string{b.site.ReservationsURL, b.site.TripsURL} {
		if pageURL == "" {
			continue
		}
		reservations, err := b.reservationsAt(pageURL)
		if err != nil {
			lastErr = err
			logger.Warn("Failed to read reservations from %s: %v", pageURL, err)
			continue
		}
		if len(reservations) > 0 {
			return reservations, nil
		}
	}
	return nil, lastErr
}

func (b *Booking) reservationsAt(pageURL string) ([]models.Reservation, error) {
	if err := b.page.Navigate(pageURL); err != nil {
		return nil, err
	}
	html, err := b.page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	return parseReservations(html, b.sel)
}

func (b *Booking) Search(ctx context.Context, q SearchQuery) ([]models.ComparableOffer, error) {
	target, err := bookingSearchURL(b.site.SearchURL, q)
	if err != nil {
		return nil, err
	}
	if err := b.page.Navigate(target); err != nil {
		return nil, err
	}
	html, err := b.page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return parseOffers(html, b.sel, maxOffers)
}

func (b *Booking) SearchComparable(ctx context.Context, r models.Reservation) ([]models.ComparableOffer, error) {
	q, err := comparableQuery(r, b.search)
	if err != nil {
		return nil, err
	}
	return b.Search(ctx, q)
}

// PickMatch adds fuzzy name matching between the exact match and the first-offer
// fallback of DefaultPickMatch.
func (b *Booking) PickMatch(r models.Reservation, offers []models.ComparableOffer) (models.ComparableOffer, bool) {
	if len(offers) == 0 {
		return models.ComparableOffer{}, false
	}
	if i := exactMatch(r.HotelName, offers); i >= 0 {
		return offers[i], true
	}
	if i := fuzzyMatch(r.HotelName, offers); i >= 0 {
		return offers[i], true
	}
	return offers[0], true
}

func (b *Booking) Close() error {
	return b.page.Close()
}

// fuzzyMatch returns the index of the most similar offer name above fuzzyMatchMin, or -1.
func fuzzyMatch(name string, offers []models.ComparableOffer) int {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return -1
	}
	best, bestScore := -1, fuzzyMatchMin
	for i, o := range offers {
		score := matchr.JaroWinkler(target, strings.ToLower(strings.TrimSpace(o.Name)), false)
		if score >= bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func bookingSearchURL(base string, q SearchQuery) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid search url: %w", err)
	}
	params := u.Query()
	params.Set("ss", q.Destination)
	if q.CheckIn != "" {
		params.Set("checkin", q.CheckIn)
	}
	if q.CheckOut != "" {
		params.Set("checkout", q.CheckOut)
	}
	params.Set("group_adults", strconv.Itoa(max(1, q.Adults)))
	params.Set("no_rooms", strconv.Itoa(max(1, q.Rooms)))
	params.Set("group_children", "0")
	u.RawQuery = params.Encode()
	return u.String(), nil
}
