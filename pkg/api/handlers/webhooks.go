package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dealerreach/backend/pkg/conversations"
	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/logger"
	"github.com/dealerreach/backend/pkg/metrics"
	"github.com/dealerreach/backend/pkg/models"
	"github.com/dealerreach/backend/pkg/tracking"
)

// WebhookHandler ingests delivery status and inbound message webhooks
// from the channel providers. Handlers always acknowledge with 200 once
// the payload parses: providers retry on non-2xx, and our dedup plus
// the status lattice make replays harmless anyway.
type WebhookHandler struct {
	tracker       *tracking.Service
	conversations *conversations.Service
	seen          domain.SeenCache
	sharedSecret  string
	metrics       *metrics.Metrics
	log           logger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(
	tracker *tracking.Service,
	convs *conversations.Service,
	seen domain.SeenCache,
	sharedSecret string,
	m *metrics.Metrics,
	log logger.Logger,
) *WebhookHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WebhookHandler{
		tracker:       tracker,
		conversations: convs,
		seen:          seen,
		sharedSecret:  sharedSecret,
		metrics:       m,
		log:           log,
	}
}

// authorized checks the shared-secret header when one is configured.
func (h *WebhookHandler) authorized(c echo.Context) bool {
	if h.sharedSecret == "" {
		return true
	}
	return c.Request().Header.Get("X-Webhook-Secret") == h.sharedSecret
}

// duplicate reports whether this delivery was already processed.
func (h *WebhookHandler) duplicate(c echo.Context, provider, id string) bool {
	if id == "" {
		return false
	}
	already, err := h.seen.MarkSeen(c.Request().Context(), provider+":"+id)
	if err != nil {
		// A cache outage must not drop webhooks; the lattice absorbs
		// the replay.
		h.log.Warn("webhook dedup unavailable", "provider", provider, "error", err)
		return false
	}
	return already
}

type whatsAppWebhook struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Statuses []struct {
					ID          string `json:"id"`
					Status      string `json:"status"`
					Timestamp   string `json:"timestamp"`
					RecipientID string `json:"recipient_id"`
				} `json:"statuses"`
				Messages []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// whatsAppEventTypes maps Cloud API status strings to lattice events.
// "sent" is already recorded by the worker and carries no new rank.
var whatsAppEventTypes = map[string]string{
	"delivered": "delivered",
	"read":      "opened",
	"failed":    "bounced",
}

// WhatsAppWebhook godoc
// @Summary WhatsApp Cloud API webhook
// @Description Ingests delivery statuses and inbound messages
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /webhooks/whatsapp [post]
func (h *WebhookHandler) WhatsAppWebhook(c echo.Context) error {
	if !h.authorized(c) {
		return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	var payload whatsAppWebhook
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}

	ctx := c.Request().Context()
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, status := range change.Value.Statuses {
				eventType, known := whatsAppEventTypes[status.Status]
				if !known {
					continue
				}
				if h.duplicate(c, "whatsapp", status.ID+":"+status.Status) {
					h.metrics.RecordWebhookEvent("whatsapp", "duplicate")
					continue
				}
				matched, err := h.tracker.RecordEventByRef(ctx, status.ID, eventType, map[string]string{
					"provider":  "whatsapp",
					"recipient": status.RecipientID,
					"timestamp": status.Timestamp,
				})
				if err != nil {
					h.log.Error("failed to record whatsapp status", "ref", status.ID, "error", err)
					continue
				}
				h.metrics.RecordWebhookEvent("whatsapp", outcome(matched))
			}

			for _, msg := range change.Value.Messages {
				if msg.Text.Body == "" {
					continue
				}
				if h.duplicate(c, "whatsapp", msg.ID) {
					h.metrics.RecordWebhookEvent("whatsapp", "duplicate")
					continue
				}
				// Cloud API sends the sender in E.164 without the plus.
				from := msg.From
				if !strings.HasPrefix(from, "+") {
					from = "+" + from
				}
				if _, err := h.conversations.HandleIncomingMessage(ctx, &conversations.IncomingMessage{
					Phone:      from,
					Channel:    models.ChannelWhatsApp,
					Text:       msg.Text.Body,
					ExternalID: msg.ID,
					Timestamp:  parseUnix(msg.Timestamp),
				}); err != nil {
					h.log.Error("failed to handle whatsapp message", "external_id", msg.ID, "error", err)
					continue
				}
				h.metrics.RecordWebhookEvent("whatsapp", "accepted")
			}
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// VerifyWhatsApp answers the Cloud API subscription handshake.
func (h *WebhookHandler) VerifyWhatsApp(c echo.Context) error {
	if c.QueryParam("hub.mode") == "subscribe" &&
		h.sharedSecret != "" && c.QueryParam("hub.verify_token") == h.sharedSecret {
		return c.String(http.StatusOK, c.QueryParam("hub.challenge"))
	}
	return echo.NewHTTPError(http.StatusForbidden, map[string]string{"error": "verification failed"})
}

type sendGridEvent struct {
	Email       string `json:"email"`
	Event       string `json:"event"`
	SGEventID   string `json:"sg_event_id"`
	SGMessageID string `json:"sg_message_id"`
	Timestamp   int64  `json:"timestamp"`
	URL         string `json:"url,omitempty"`
}

// sendGridEventTypes maps SendGrid event names to lattice events.
var sendGridEventTypes = map[string]string{
	"delivered": "delivered",
	"open":      "opened",
	"click":     "clicked",
	"bounce":    "bounced",
	"dropped":   "bounced",
}

// SendGridWebhook godoc
// @Summary SendGrid event webhook
// @Description Ingests email delivery, open, click and bounce events
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /webhooks/sendgrid [post]
func (h *WebhookHandler) SendGridWebhook(c echo.Context) error {
	if !h.authorized(c) {
		return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	var events []sendGridEvent
	if err := c.Bind(&events); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}

	ctx := c.Request().Context()
	for _, ev := range events {
		eventType, known := sendGridEventTypes[ev.Event]
		if !known {
			continue
		}
		if h.duplicate(c, "sendgrid", ev.SGEventID) {
			h.metrics.RecordWebhookEvent("sendgrid", "duplicate")
			continue
		}

		payload := map[string]string{
			"provider": "sendgrid",
			"email":    ev.Email,
			"event":    ev.Event,
		}
		if ev.URL != "" {
			payload["url"] = ev.URL
		}

		// sg_message_id carries the original X-Message-Id before the
		// first dot.
		ref, _, _ := strings.Cut(ev.SGMessageID, ".")
		matched, err := h.tracker.RecordEventByRef(ctx, ref, eventType, payload)
		if err != nil {
			h.log.Error("failed to record sendgrid event", "ref", ref, "error", err)
			continue
		}
		if !matched {
			matched, err = h.recordByEmail(c, ev.Email, eventType, payload)
			if err != nil {
				h.log.Error("failed to record sendgrid event by address", "email", ev.Email, "error", err)
				continue
			}
		}
		h.metrics.RecordWebhookEvent("sendgrid", outcome(matched))
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) recordByEmail(c echo.Context, email, eventType string, payload map[string]string) (bool, error) {
	ctx := c.Request().Context()
	touch, err := h.tracker.FindOutstandingByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if touch == nil {
		return false, nil
	}
	return true, h.tracker.RecordEvent(ctx, touch.ID, eventType, payload)
}

// twilioEventTypes maps Twilio status callback values to lattice events.
var twilioEventTypes = map[string]string{
	"delivered":   "delivered",
	"undelivered": "bounced",
	"failed":      "bounced",
}

// TwilioWebhook godoc
// @Summary Twilio SMS webhook
// @Description Ingests SMS status callbacks and inbound replies (form-encoded)
// @Tags Webhooks
// @Accept x-www-form-urlencoded
// @Produce json
// @Success 200 {object} map[string]string
// @Router /webhooks/twilio [post]
func (h *WebhookHandler) TwilioWebhook(c echo.Context) error {
	if !h.authorized(c) {
		return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	ctx := c.Request().Context()
	sid := c.FormValue("MessageSid")
	status := c.FormValue("MessageStatus")
	body := c.FormValue("Body")

	// Status callbacks carry MessageStatus; inbound replies carry Body.
	if status != "" {
		eventType, known := twilioEventTypes[status]
		if !known {
			return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
		}
		if h.duplicate(c, "twilio", sid+":"+status) {
			h.metrics.RecordWebhookEvent("twilio", "duplicate")
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		}
		matched, err := h.tracker.RecordEventByRef(ctx, sid, eventType, map[string]string{
			"provider": "twilio",
			"status":   status,
		})
		if err != nil {
			h.log.Error("failed to record twilio status", "sid", sid, "error", err)
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		}
		h.metrics.RecordWebhookEvent("twilio", outcome(matched))
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}

	if body != "" {
		if h.duplicate(c, "twilio", sid) {
			h.metrics.RecordWebhookEvent("twilio", "duplicate")
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		}
		if _, err := h.conversations.HandleIncomingMessage(ctx, &conversations.IncomingMessage{
			Phone:      c.FormValue("From"),
			Channel:    models.ChannelSMS,
			Text:       body,
			ExternalID: sid,
			Timestamp:  time.Now(),
		}); err != nil {
			h.log.Error("failed to handle inbound sms", "sid", sid, "error", err)
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		}
		h.metrics.RecordWebhookEvent("twilio", "accepted")
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func outcome(matched bool) string {
	if matched {
		return "accepted"
	}
	return "unmatched"
}

func parseUnix(s string) time.Time {
	var secs int64
	if _, err := fmt.Sscanf(s, "%d", &secs); err != nil || secs == 0 {
		return time.Now()
	}
	return time.Unix(secs, 0)
}
