// Package notify renders price drop events and delivers them over configured channels.
package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/rewired-gh/otawatch/internal/models"
)

// SMSLimit caps the SMS digest length in characters.
const SMSLimit = 1300

// Message is one rendered batch of price drop events.
type Message struct {
	Site    string
	Subject string
	HTML    string
	SMS     string
	Events  []models.PriceDropEvent
}

// Compose renders events for every channel.
func Compose(site string, events []models.PriceDropEvent) Message {
	htmlLines := []string{"<h3>Price Drop Found</h3>"}
	smsLines := make([]string, 0, len(events))
	for _, e := range events {
		htmlLines = append(htmlLines, fmt.Sprintf(
			"<p><b>%s</b> (%s)<br/>%s → %s<br/>Old: %s | New: %s | ↓ %s</p>",
			html.EscapeString(e.HotelName), html.EscapeString(e.RoomType),
			html.EscapeString(e.CheckIn), html.EscapeString(e.CheckOut),
			e.OldPrice.StringFixed(2), e.NewPrice.StringFixed(2), e.Delta.StringFixed(2),
		))
		smsLines = append(smsLines, fmt.Sprintf(
			"%s %s→%s drop %s→%s (-%s)",
			e.HotelName, e.CheckIn, e.CheckOut,
			e.OldPrice.StringFixed(2), e.NewPrice.StringFixed(2), e.Delta.StringFixed(2),
		))
	}

	return Message{
		Site:    site,
		Subject: fmt.Sprintf("%s price drop alerts (%d)", site, len(events)),
		HTML:    strings.Join(htmlLines, "\n"),
		SMS:     truncate(strings.Join(smsLines, "; "), SMSLimit),
		Events:  events,
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
