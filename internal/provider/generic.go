package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/rewired-gh/otawatch/internal/auth"
	"github.com/rewired-gh/otawatch/internal/config"
	"github.com/rewired-gh/otawatch/internal/models"
)

var genericSelectors = map[string]string{
	"result_card":         `div.hotel-card`,
	"name":                `h3.hotel-name`,
	"price":               `span.price`,
	"rating":              `span.rating`,
	"location":            `span.location`,
	"reservation_card":    `div.reservation-card`,
	"hotel_name":          `.hotel-name`,
	"room_type":           `.room-type`,
	"date_range":          `.stay-dates`,
	"price_total":         `.total-price`,
	"cancellation_policy": `.cancellation-policy`,
	"reservation_status":  `.status`,
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Generic reads a custom travel site over plain HTTP. The site needs no login.
type Generic struct {
	http   *resty.Client
	site   config.GenericConfig
	search config.SearchConfig
	sel    selectors
}

func NewGeneric(cfg *config.Config) *Generic {
	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(cfg.Sites.Generic.Timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(time.Second)

	return &Generic{
		http:   client,
		site:   cfg.Sites.Generic,
		search: cfg.Search,
		sel:    mergeSelectors(genericSelectors, cfg.Sites.Generic.Selectors),
	}
}

func (g *Generic) Name() string {
	if g.site.Name == "" {
		return "Custom"
	}
	return g.site.Name
}

// Auth reports an always-authenticated session.
func (g *Generic) Auth(ctx context.Context) auth.Hooks {
	always := func() bool { return true }
	return auth.Hooks{Probe: auth.Probe{Light: always, Heavy: always}}
}

func (g *Generic) FetchReservations(ctx context.Context) ([]models.Reservation, error) {
	if g.site.ReservationsURL == "" {
		return nil, nil
	}
	html, err := g.get(ctx, g.site.ReservationsURL, nil)
	if err != nil {
		return nil, err
	}
	return parseReservations(html, g.sel)
}

func (g *Generic) Search(ctx context.Context, q SearchQuery) ([]models.ComparableOffer, error) {
	if g.site.SearchURL == "" {
		return nil, fmt.Errorf("sites.generic.search_url is not configured")
	}
	params := map[string]string{
		g.site.QueryParam: q.Destination,
		"adults":          strconv.Itoa(max(1, q.Adults)),
		"rooms":           strconv.Itoa(max(1, q.Rooms)),
	}
	if q.CheckIn != "" {
		params["checkin"] = q.CheckIn
	}
	if q.CheckOut != "" {
		params["checkout"] = q.CheckOut
	}

	html, err := g.get(ctx, g.site.SearchURL, params)
	if err != nil {
		return nil, err
	}
	return parseOffers(html, g.sel, maxOffers)
}

func (g *Generic) SearchComparable(ctx context.Context, r models.Reservation) ([]models.ComparableOffer, error) {
	q, err := comparableQuery(r, g.search)
	if err != nil {
		return nil, err
	}
	return g.Search(ctx, q)
}

func (g *Generic) PickMatch(r models.Reservation, offers []models.ComparableOffer) (models.ComparableOffer, bool) {
	return DefaultPickMatch(r, offers)
}

func (g *Generic) Close() error {
	return nil
}

func (g *Generic) get(ctx context.Context, url string, params map[string]string) (string, error) {
	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode())
	}
	return resp.String(), nil
}
