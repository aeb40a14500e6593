package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/rewired-gh/otawatch/internal/config"
	"github.com/rewired-gh/otawatch/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func event(hotel string, oldPrice, newPrice int64) models.PriceDropEvent {
	return models.PriceDropEvent{
		HotelName: hotel,
		RoomType:  "Double",
		CheckIn:   "1 Dec 2030",
		CheckOut:  "5 Dec 2030",
		OldPrice:  decimal.NewFromInt(oldPrice),
		NewPrice:  decimal.NewFromInt(newPrice),
		Delta:     decimal.NewFromInt(oldPrice - newPrice),
	}
}

func TestCompose(t *testing.T) {
	msg := Compose("Booking", []models.PriceDropEvent{
		event("Hotel <Lumen>", 200, 150),
		event("Casa Azul", 300, 250),
	})

	require.Equal(t, "Booking price drop alerts (2)", msg.Subject)
	require.True(t, strings.HasPrefix(msg.HTML, "<h3>Price Drop Found</h3>\n<p><b>Hotel &lt;Lumen&gt;</b> (Double)"))
	require.Contains(t, msg.HTML, "1 Dec 2030 → 5 Dec 2030<br/>Old: 200.00 | New: 150.00 | ↓ 50.00</p>")
	require.Equal(t,
		"Hotel <Lumen> 1 Dec 2030→5 Dec 2030 drop 200.00→150.00 (-50.00); Casa Azul 1 Dec 2030→5 Dec 2030 drop 300.00→250.00 (-50.00)",
		msg.SMS)
}

func TestComposeTruncatesSMSDigest(t *testing.T) {
	var events []models.PriceDropEvent
	for i := 0; i < 40; i++ {
		events = append(events, event(fmt.Sprintf("Hôtel Numéro %02d", i), 500, 400))
	}
	msg := Compose("Agoda", events)

	require.Equal(t, SMSLimit, utf8.RuneCountInString(msg.SMS))
	require.True(t, strings.HasPrefix(msg.SMS, "Hôtel Numéro 00 "))
	// Entries are cut mid-digest, not dropped whole.
	require.Contains(t, msg.SMS, "; Hôtel Numéro 01 ")
	require.Equal(t, 40, strings.Count(msg.HTML, "<p>"))
}

func TestEmailBuild(t *testing.T) {
	cfg := config.EmailConfig{From: "alerts@example.com", To: []string{"me@example.com"}}
	mail := NewEmail(cfg).build(Compose("Booking", []models.PriceDropEvent{event("Hotel Lumen", 200, 150)}))

	require.Equal(t, "alerts@example.com", mail.From)
	require.Equal(t, []string{"me@example.com"}, mail.To)
	require.Equal(t, "Booking price drop alerts (1)", mail.Subject)
	require.Contains(t, string(mail.HTML), "<b>Hotel Lumen</b>")
}

func TestSMSSend(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "AC123", user)
		require.Equal(t, "token", pass)
		require.NoError(t, r.ParseForm())

		mu.Lock()
		received = append(received, r.PostForm.Get("To")+"|"+r.PostForm.Get("Body"))
		mu.Unlock()

		if r.PostForm.Get("To") == "+15550000002" {
			http.Error(w, `{"message":"unverified number"}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	sms := NewSMS(config.SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "token",
		From:       "+15550000000",
		To:         []string{"+15550000001", "+15550000002"},
		APIBaseURL: srv.URL,
	})
	err := sms.Send(context.Background(), Message{SMS: "digest"})

	require.Error(t, err, "a rejected recipient is reported")
	require.Contains(t, err.Error(), "+15550000002")
	require.Equal(t, []string{"+15550000001|digest", "+15550000002|digest"}, received)
}

type fakeChannel struct {
	name string
	err  error
	got  []Message
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, msg Message) error {
	f.got = append(f.got, msg)
	return f.err
}

func TestDispatcher(t *testing.T) {
	failing := &fakeChannel{name: "email", err: errors.New("smtp: 535 authentication failed")}
	working := &fakeChannel{name: "sms"}
	d := NewDispatcher(failing, working)

	err := d.Notify(context.Background(), "Booking", []models.PriceDropEvent{event("Hotel Lumen", 200, 150)})
	require.Error(t, err)
	require.Len(t, failing.got, 1)
	require.Len(t, working.got, 1, "a failing channel must not block the others")
	require.Equal(t, "Booking price drop alerts (1)", working.got[0].Subject)

	require.NoError(t, d.Notify(context.Background(), "Booking", nil))
	require.Len(t, working.got, 1, "no events means nothing is sent")

	require.NoError(t, NewDispatcher().Notify(context.Background(), "Booking", []models.PriceDropEvent{event("Hotel Lumen", 200, 150)}))
}
