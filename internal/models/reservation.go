// Package models defines the core domain entities: reservations, comparable offers, and price drop events.
package models

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// NotAvailable is the placeholder recorded for a field the site did not expose.
const NotAvailable = "N/A"

// Reservation is a booked stay as listed on the travel site's account pages.
// It is produced by a provider and read-only afterwards.
type Reservation struct {
	HotelName          string          `json:"hotel_name"`
	RoomType           string          `json:"room_type"`
	DateRange          string          `json:"date_range"`
	CheckIn            string          `json:"check_in"`
	CheckOut           string          `json:"check_out"`
	PriceText          string          `json:"price_total"`
	Price              decimal.Decimal `json:"price_value"`
	CancellationPolicy string          `json:"cancellation_policy"`
	Cancellable        bool            `json:"is_cancellable"`
	CancellableUntil   string          `json:"cancellable_until"`
	Status             string          `json:"status"`
}

// Validate checks that the fields needed to search for a comparable stay are present.
func (r *Reservation) Validate() error {
	if missing(r.HotelName) {
		return errors.New("hotel name must not be empty")
	}
	if missing(r.CheckIn) {
		return errors.New("check-in must not be empty")
	}
	if missing(r.CheckOut) {
		return errors.New("check-out must not be empty")
	}
	return nil
}

// ComparableOffer is one result of a fresh search for a reservation's stay.
type ComparableOffer struct {
	Name      string          `json:"name"`
	PriceText string          `json:"price"`
	Price     decimal.Decimal `json:"price_value"`
	Rating    string          `json:"rating"`
	Location  string          `json:"location"`
}

func missing(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == NotAvailable
}
