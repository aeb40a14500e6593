// Package provider adapts individual travel sites to one monitoring contract.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rewired-gh/otawatch/internal/auth"
	"github.com/rewired-gh/otawatch/internal/browser"
	"github.com/rewired-gh/otawatch/internal/config"
	"github.com/rewired-gh/otawatch/internal/models"
)

// ErrUnknownSite is returned by Resolve for a site with no provider.
var ErrUnknownSite = errors.New("unknown site")

// ErrUnreadableStay is returned by SearchComparable when a reservation's stay dates
// cannot be searched as a pair.
var ErrUnreadableStay = errors.New("unreadable stay dates")

// Provider is the capability set every supported travel site implements.
type Provider interface {
	// Name is the display name used in reports and notification subjects.
	Name() string
	// Auth binds session checks and login helpers to the site.
	Auth(ctx context.Context) auth.Hooks
	FetchReservations(ctx context.Context) ([]models.Reservation, error)
	// Search runs a live search for a destination and stay.
	Search(ctx context.Context, q SearchQuery) ([]models.ComparableOffer, error)
	// SearchComparable searches for offers equivalent to a reservation.
	SearchComparable(ctx context.Context, r models.Reservation) ([]models.ComparableOffer, error)
	PickMatch(r models.Reservation, offers []models.ComparableOffer) (models.ComparableOffer, bool)
	// Close releases the site session.
	Close() error
}

// SearchQuery describes a stay to search for. Dates are YYYY-MM-DD when known.
type SearchQuery struct {
	Destination string
	CheckIn     string
	CheckOut    string
	Adults      int
	Rooms       int
}

// maxOffers caps the number of result cards read from one search page.
const maxOffers = 10

// Deps are the collaborators a provider may need.
type Deps struct {
	Config *config.Config
	// OpenPage starts the browser session for sites that need one.
	OpenPage func(ctx context.Context) (browser.Page, error)
}

// Sites lists the site names Resolve accepts.
func Sites() []string {
	return []string{"booking", "agoda", "generic"}
}

// CheckSite returns ErrUnknownSite when Resolve would reject site.
func CheckSite(site string) error {
	switch strings.ToLower(strings.TrimSpace(site)) {
	case "booking", "agoda", "generic", "custom":
		return nil
	}
	return fmt.Errorf("%w %q (supported: %s)", ErrUnknownSite, site, strings.Join(Sites(), ", "))
}

// Resolve builds the provider for a configured site name. Unknown names fail before
// any session is opened.
func Resolve(ctx context.Context, site string, deps Deps) (Provider, error) {
	if err := CheckSite(site); err != nil {
		return nil, err
	}
	site = strings.ToLower(strings.TrimSpace(site))
	if site == "generic" || site == "custom" {
		return NewGeneric(deps.Config), nil
	}

	page, err := deps.OpenPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s session: %w", site, err)
	}
	if site == "booking" {
		return NewBooking(page, deps.Config), nil
	}
	return NewAgoda(page, deps.Config), nil
}

// DefaultPickMatch prefers a case-insensitive exact name match anywhere in offers and
// otherwise falls back to the first offer. It returns false only when offers is empty.
func DefaultPickMatch(r models.Reservation, offers []models.ComparableOffer) (models.ComparableOffer, bool) {
	if len(offers) == 0 {
		return models.ComparableOffer{}, false
	}
	if i := exactMatch(r.HotelName, offers); i >= 0 {
		return offers[i], true
	}
	return offers[0], true
}

func exactMatch(name string, offers []models.ComparableOffer) int {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return -1
	}
	for i, o := range offers {
		if strings.ToLower(strings.TrimSpace(o.Name)) == target {
			return i
		}
	}
	return -1
}

// comparableQuery builds the search for a reservation's stay. Both dates must parse
// and check-out must follow check-in; a partial stay would price a different number
// of nights than the booking.
func comparableQuery(r models.Reservation, cfg config.SearchConfig) (SearchQuery, error) {
	in, inOK := models.ParseStayDate(r.CheckIn)
	out, outOK := models.ParseStayDate(r.CheckOut)
	if !inOK || !outOK {
		return SearchQuery{}, fmt.Errorf("%w: %q to %q", ErrUnreadableStay, r.CheckIn, r.CheckOut)
	}
	if !out.After(in) {
		return SearchQuery{}, fmt.Errorf("%w: check-out %q is not after check-in %q", ErrUnreadableStay, r.CheckOut, r.CheckIn)
	}
	return SearchQuery{
		Destination: r.HotelName,
		CheckIn:     in.Format("2006-01-02"),
		CheckOut:    out.Format("2006-01-02"),
		Adults:      cfg.Adults,
		Rooms:       cfg.Rooms,
	}, nil
}

// mergeSelectors overlays configured selectors on a site's defaults.
func mergeSelectors(defaults, overrides map[string]string) selectors {
	merged := make(selectors, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[strings.ToLower(k)] = v
	}
	return merged
}

// isBlank reports whether a page has not been navigated anywhere yet.
func isBlank(url string) bool {
	return url == "" || strings.HasPrefix(url, "data:") || strings.Contains(url, "about:blank")
}
