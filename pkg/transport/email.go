package transport

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/dealerreach/backend/pkg/content"
	"github.com/dealerreach/backend/pkg/models"
)

// EmailTransport sends email through SendGrid.
type EmailTransport struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

// NewEmailTransport creates a SendGrid email transport.
func NewEmailTransport(apiKey, fromEmail, fromName string) *EmailTransport {
	return &EmailTransport{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// Send delivers the message and returns SendGrid's message ID.
func (t *EmailTransport) Send(ctx context.Context, lead *models.Lead, msg *content.Message) (string, error) {
	if lead.Email == "" {
		return "", fmt.Errorf("lead %s has no email address", lead.ID)
	}

	from := mail.NewEmail(t.fromName, t.fromEmail)
	to := mail.NewEmail(lead.FullName(), lead.Email)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := t.client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}

	ids := resp.Headers["X-Message-Id"]
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}
