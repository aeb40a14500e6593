package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rewired-gh/otawatch/internal/config"
)

// SMS sends the digest to each recipient through the Twilio Messages API.
type SMS struct {
	cfg  config.SMSConfig
	http *resty.Client
}

func NewSMS(cfg config.SMSConfig) *SMS {
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetTimeout(30 * time.Second)
	return &SMS{cfg: cfg, http: client}
}

func (s *SMS) Name() string { return "sms" }

func (s *SMS) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, to := range s.cfg.To {
		resp, err := s.http.R().
			SetContext(ctx).
			SetPathParam("sid", s.cfg.AccountSID).
			SetFormData(map[string]string{
				"From": s.cfg.From,
				"To":   to,
				"Body": msg.SMS,
			}).
			Post("/2010-04-01/Accounts/{sid}/Messages.json")
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to send SMS to %s: %w", to, err))
			continue
		}
		if resp.IsError() {
			errs = append(errs, fmt.Errorf("failed to send SMS to %s: status %d: %s", to, resp.StatusCode(), resp.String()))
		}
	}
	return errors.Join(errs...)
}
