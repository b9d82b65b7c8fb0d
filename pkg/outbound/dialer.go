// Package outbound places outbound calls through the telephony provider's
// REST API, immediately or at a scheduled future time.
package outbound

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultBaseURL = "https://api.twilio.com"

// DialerConfig holds provider credentials for call placement.
type DialerConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string

	// BaseURL overrides the provider API endpoint. Used in tests.
	BaseURL string
}

// Dialer creates outbound calls. Placements run one at a time so a burst of
// scheduled calls does not hit the provider concurrently.
type Dialer struct {
	cfg    DialerConfig
	client *http.Client
	mu     sync.Mutex
}

// NewDialer creates a Dialer.
func NewDialer(cfg DialerConfig) *Dialer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Dialer{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// PlaceCall creates an outbound call whose control flow the provider fetches
// from twimlURL. It returns the provider's call SID.
func (d *Dialer) PlaceCall(ctx context.Context, toNumber, twimlURL string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", d.cfg.FromNumber)
	form.Set("Url", twimlURL)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", d.cfg.BaseURL, d.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build call request: %w", err)
	}
	req.SetBasicAuth(d.cfg.AccountSID, d.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("place call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read call response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("place call: status %d: %s", resp.StatusCode, body)
	}

	var created struct {
		Sid string `json:"sid"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("parse call response: %w", err)
	}

	log.Printf("[Outbound] Call to %s initiated (SID: %s)", toNumber, created.Sid)
	return created.Sid, nil
}
