package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PriceDropEvent records a reservation whose re-searched price is lower than the booked one.
type PriceDropEvent struct {
	ID          string          `json:"id"`
	HotelName   string          `json:"hotel_name"`
	RoomType    string          `json:"room_type"`
	CheckIn     string          `json:"check_in"`
	CheckOut    string          `json:"check_out"`
	OldPrice    decimal.Decimal `json:"old_price"`
	NewPrice    decimal.Decimal `json:"new_price"`
	Delta       decimal.Decimal `json:"delta"`
	MatchedName string          `json:"matched_name"`
	DetectedAt  time.Time       `json:"detected_at"`
}

// Validate checks the event invariants against the configured threshold.
func (e *PriceDropEvent) Validate(threshold decimal.Decimal) error {
	if e.HotelName == "" {
		return errors.New("hotel name must not be empty")
	}
	if !e.NewPrice.IsPositive() {
		return errors.New("new price must be positive")
	}
	if !e.Delta.Equal(e.OldPrice.Sub(e.NewPrice)) {
		return errors.New("delta must equal old price minus new price")
	}
	if threshold.IsNegative() {
		threshold = decimal.Zero
	}
	if !e.Delta.GreaterThan(threshold) {
		return errors.New("delta must exceed the threshold")
	}
	return nil
}

// SearchResult is a flat record written by a one-off search.
type SearchResult struct {
	Site       string    `json:"site"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
	Rating     string    `json:"rating"`
	Location   string    `json:"location"`
	SearchedAt time.Time `json:"searched_at"`
}

// PriceCheck records one comparison of a booked price with a fresh offer.
type PriceCheck struct {
	HotelName   string
	RoomType    string
	CheckIn     string
	CheckOut    string
	BookedPrice decimal.Decimal
	OfferName   string
	OfferPrice  decimal.Decimal
	CheckedAt   time.Time
}

// Run summarizes one monitoring pass.
type Run struct {
	ID           string
	Site         string
	Outcome      string
	Reservations int
	Events       int
	StartedAt    time.Time
	FinishedAt   time.Time
}
