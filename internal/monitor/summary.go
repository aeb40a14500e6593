package monitor

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rewired-gh/otawatch/internal/models"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// RenderReservations prints fetched reservations as a table.
func RenderReservations(w io.Writer, reservations []models.Reservation) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Hotel", "Room", "Check-in", "Check-out", "Price", "Cancellable", "Until"})
	for _, r := range reservations {
		cancellable := "no"
		if r.Cancellable {
			cancellable = "yes"
		}
		t.AppendRow(table.Row{r.HotelName, r.RoomType, r.CheckIn, r.CheckOut, r.PriceText, cancellable, r.CancellableUntil})
	}
	t.Render()
}

// RenderDrops prints price drop events as a table, newest first as given.
func RenderDrops(w io.Writer, events []models.PriceDropEvent) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Detected", "Hotel", "Stay", "Old", "New", "Drop", "Matched"})
	for _, e := range events {
		t.AppendRow(table.Row{
			e.DetectedAt.Format("2006-01-02 15:04"),
			e.HotelName,
			e.CheckIn + " → " + e.CheckOut,
			e.OldPrice.StringFixed(2),
			e.NewPrice.StringFixed(2),
			e.Delta.StringFixed(2),
			e.MatchedName,
		})
	}
	t.Render()
}

// RenderRuns prints run history as a table.
func RenderRuns(w io.Writer, runs []models.Run) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Started", "Site", "Outcome", "Reservations", "Drops", "Duration"})
	for _, r := range runs {
		duration := "-"
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{r.StartedAt.Format("2006-01-02 15:04"), r.Site, r.Outcome, r.Reservations, r.Events, duration})
	}
	t.Render()
}
