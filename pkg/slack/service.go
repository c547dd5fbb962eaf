package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dealerreach/backend/pkg/models"
)

// ErrSlackSendFailed indicates the Slack webhook rejected the message.
var ErrSlackSendFailed = errors.New("failed to send slack message")

// Message is a Slack webhook payload.
type Message struct {
	Text string `json:"text"`
}

// Client sends messages to Slack.
type Client interface {
	SendMessage(ctx context.Context, msg Message) error
}

// WebhookClient posts messages to an incoming-webhook URL.
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a Slack webhook client.
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendMessage posts the message to the webhook.
func (c *WebhookClient) SendMessage(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrSlackSendFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ErrSlackSendFailed
	}
	return nil
}

// Service sends operational notifications to Slack.
type Service struct {
	client Client
}

// NewService creates a Slack notification service.
func NewService(client Client) *Service {
	return &Service{client: client}
}

// NotifyHandoff announces that a conversation escalated to a human
// agent. It satisfies domain.HandoffNotifier.
func (s *Service) NotifyHandoff(ctx context.Context, lead *models.Lead, conv *models.Conversation) error {
	contact := lead.PhoneForSend()
	if contact == "" {
		contact = lead.Email
	}
	msg := Message{
		Text: fmt.Sprintf(":rotating_light: Human Handoff Requested\nLead: %s (%s)\nChannel: %s\nConversation: %s",
			lead.FullName(), contact, conv.Channel, conv.ID),
	}
	return s.client.SendMessage(ctx, msg)
}

// NotifyCampaignCompleted announces a campaign finishing its run.
func (s *Service) NotifyCampaignCompleted(ctx context.Context, campaign *models.Campaign, stats map[models.TouchStatus]int) error {
	msg := Message{
		Text: fmt.Sprintf(":checkered_flag: Campaign Completed\nName: %s\nSent: %d | Replied: %d | Failed: %d",
			campaign.Name, stats[models.StatusSent], stats[models.StatusReplied], stats[models.StatusFailed]),
	}
	return s.client.SendMessage(ctx, msg)
}
