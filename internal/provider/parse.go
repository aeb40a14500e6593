package provider

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rewired-gh/otawatch/internal/logger"
	"github.com/rewired-gh/otawatch/internal/models"
	"github.com/rewired-gh/otawatch/internal/pricing"
)

// selectors maps a field key (hotel_name, price_total, result_card, ...) to a CSS selector.
type selectors map[string]string

var cancellableUntil = regexp.MustCompile(`(?i)\b(?:until|before)\s+(.+)$`)

func parseDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

// textOf returns the collapsed text of the first match, or NotAvailable.
func textOf(card *goquery.Selection, selector string) string {
	if selector == "" {
		return models.NotAvailable
	}
	text := strings.Join(strings.Fields(card.Find(selector).First().Text()), " ")
	if text == "" {
		return models.NotAvailable
	}
	return text
}

// parseReservations reads reservation cards, falling back to the alternate card
// selector when the primary one matches nothing. Malformed cards are skipped.
func parseReservations(html string, sel selectors) ([]models.Reservation, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	cards := doc.Find(sel["reservation_card"])
	if cards.Length() == 0 && sel["reservation_card_alt"] != "" {
		cards = doc.Find(sel["reservation_card_alt"])
	}

	reservations := make([]models.Reservation, 0, cards.Length())
	cards.Each(func(i int, card *goquery.Selection) {
		r, err := parseReservationCard(card, sel)
		if err != nil {
			logger.Debug("Skipping reservation card %d: %v", i, err)
			return
		}
		reservations = append(reservations, r)
	})
	return reservations, nil
}

func parseReservationCard(card *goquery.Selection, sel selectors) (r models.Reservation, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("card parse panicked: %v", p)
		}
	}()

	r = models.Reservation{
		HotelName:          textOf(card, sel["hotel_name"]),
		RoomType:           textOf(card, sel["room_type"]),
		DateRange:          textOf(card, sel["date_range"]),
		PriceText:          textOf(card, sel["price_total"]),
		CancellationPolicy: textOf(card, sel["cancellation_policy"]),
		Status:             textOf(card, sel["reservation_status"]),
	}
	r.CheckIn, r.CheckOut = models.SplitDateRange(r.DateRange)
	if r.DateRange == models.NotAvailable {
		r.CheckIn, r.CheckOut = textOf(card, sel["check_in"]), textOf(card, sel["check_out"])
	}
	if r.PriceText != models.NotAvailable {
		r.Price = pricing.Normalize(r.PriceText)
	}
	r.Cancellable, r.CancellableUntil = deriveCancellation(r.CancellationPolicy)

	if r.HotelName == models.NotAvailable && r.DateRange == models.NotAvailable && r.PriceText == models.NotAvailable {
		return r, fmt.Errorf("no reservation fields found")
	}
	return r, nil
}

// deriveCancellation decides cancellability from the policy text and extracts the
// deadline phrase when one is given.
func deriveCancellation(policy string) (bool, string) {
	lower := strings.ToLower(policy)
	for _, negative := range []string{"non-refundable", "non refundable", "non-cancellable", "no free cancellation", "not cancellable"} {
		if strings.Contains(lower, negative) {
			return false, models.NotAvailable
		}
	}

	cancellable := false
	for _, positive := range []string{"free cancellation", "cancel for free", "fully refundable", "cancellable", "refundable"} {
		if strings.Contains(lower, positive) {
			cancellable = true
			break
		}
	}
	if !cancellable {
		return false, models.NotAvailable
	}

	if m := cancellableUntil.FindStringSubmatch(policy); m != nil {
		return true, strings.TrimRight(strings.TrimSpace(m[1]), ".")
	}
	return true, models.NotAvailable
}

// parseOffers reads up to limit result cards from a search page.
func parseOffers(html string, sel selectors, limit int) ([]models.ComparableOffer, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	var offers []models.ComparableOffer
	doc.Find(sel["result_card"]).EachWithBreak(func(i int, card *goquery.Selection) bool {
		if len(offers) >= limit {
			return false
		}
		o := models.ComparableOffer{
			Name:      textOf(card, sel["name"]),
			PriceText: textOf(card, sel["price"]),
			Rating:    textOf(card, sel["rating"]),
			Location:  textOf(card, sel["location"]),
		}
		if o.Name == models.NotAvailable && o.PriceText == models.NotAvailable {
			logger.Debug("Skipping empty result card %d", i)
			return true
		}
		if o.PriceText != models.NotAvailable {
			o.Price = pricing.Normalize(o.PriceText)
		}
		offers = append(offers, o)
		return true
	})
	return offers, nil
}
