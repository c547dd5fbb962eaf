package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dealerreach/backend/pkg/content"
	"github.com/dealerreach/backend/pkg/models"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// SMSTransport sends SMS through the Twilio REST API.
type SMSTransport struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

// NewSMSTransport creates a Twilio SMS transport.
func NewSMSTransport(accountSID, authToken, from string) *SMSTransport {
	return &SMSTransport{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioAPIBase,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Send posts the message and returns the Twilio message SID.
func (t *SMSTransport) Send(ctx context.Context, lead *models.Lead, msg *content.Message) (string, error) {
	to := lead.PhoneForSend()
	if to == "" {
		return "", fmt.Errorf("lead %s has no phone number", lead.ID)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.from)
	form.Set("Body", msg.Text)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create sms request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send sms: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read sms response: %w", err)
	}

	var parsed twilioResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse sms response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("twilio API error %d: %s", parsed.Code, parsed.Message)
	}
	return parsed.SID, nil
}
