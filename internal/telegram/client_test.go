package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/otawatch/internal/models"
	"github.com/rewired-gh/otawatch/internal/notify"
	"github.com/shopspring/decimal"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hotel_Lumen", "Hotel\\_Lumen"},
		{"Price: $100.50", "Price: $100\\.50"},
		{"Casa (Azul)", "Casa \\(Azul\\)"},
		{"2030-12-01", "2030\\-12\\-01"},
		{"B&B #1!", "B&B \\#1\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatMessage(t *testing.T) {
	events := []models.PriceDropEvent{{
		HotelName: "Hotel Lumen",
		RoomType:  "Deluxe (Double)",
		CheckIn:   "1 Dec 2030",
		CheckOut:  "5 Dec 2030",
		OldPrice:  decimal.NewFromInt(200),
		NewPrice:  decimal.NewFromInt(150),
		Delta:     decimal.NewFromInt(50),
	}}
	text := formatMessage(notify.Compose("Booking", events))

	for _, want := range []string{
		"*Booking price drop alerts \\(1\\)*",
		"1\\. *Hotel Lumen* \\(Deluxe \\(Double\\)\\)",
		"200\\.00 → *150\\.00* \\(↓ 50\\.00\\)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("message missing %q:\n%s", want, text)
		}
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// The chat ID is parsed before the bot token is checked against the API.
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}
