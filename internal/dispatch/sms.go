package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SMS delivers a text message to a phone number. Callers treat delivery as
// best-effort: failures are logged upstream, never retried.
type SMS interface {
	Send(ctx context.Context, to, body string) error
}

// TwilioSMS posts messages to a Twilio-compatible REST endpoint.
// Credentials come from deployment configuration, never from clients.
type TwilioSMS struct {
	Endpoint   string // e.g. https://api.twilio.com
	AccountSID string
	AuthToken  string
	From       string
	Client     *http.Client
}

func NewTwilioSMS(endpoint, sid, token, from string) *TwilioSMS {
	return &TwilioSMS{
		Endpoint:   endpoint,
		AccountSID: sid,
		AuthToken:  token,
		From:       from,
		Client:     &http.Client{Timeout: 3 * time.Second},
	}
}

func (t *TwilioSMS) Send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.From)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.Endpoint, t.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.AccountSID, t.AuthToken)

	resp, err := t.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway status %d", resp.StatusCode)
	}
	return nil
}
