package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dealerreach/backend/pkg/content"
	"github.com/dealerreach/backend/pkg/models"
)

// WhatsAppTransport sends text messages through the WhatsApp Cloud API.
type WhatsAppTransport struct {
	apiURL  string
	token   string
	phoneID string
	client  *http.Client
}

// NewWhatsAppTransport creates a WhatsApp Cloud API transport.
func NewWhatsAppTransport(apiURL, token, phoneID string) *WhatsAppTransport {
	return &WhatsAppTransport{
		apiURL:  strings.TrimRight(apiURL, "/"),
		token:   token,
		phoneID: phoneID,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type whatsAppRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             whatsAppTextBody `json:"text"`
}

type whatsAppTextBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send posts a text message and returns the provider message ID.
func (t *WhatsAppTransport) Send(ctx context.Context, lead *models.Lead, msg *content.Message) (string, error) {
	to := strings.TrimPrefix(lead.PhoneForSend(), "+")
	if to == "" {
		return "", fmt.Errorf("lead %s has no phone number", lead.ID)
	}

	body, err := json.Marshal(whatsAppRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             whatsAppTextBody{Body: msg.Text},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal whatsapp request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", t.apiURL, t.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read whatsapp response: %w", err)
	}

	var parsed whatsAppResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse whatsapp response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("whatsapp API error %d: %s", parsed.Error.Code, parsed.Error.Message)
		}
		return "", fmt.Errorf("whatsapp API returned status %d", resp.StatusCode)
	}
	if len(parsed.Messages) == 0 {
		return "", fmt.Errorf("whatsapp API returned no message id")
	}
	return parsed.Messages[0].ID, nil
}
