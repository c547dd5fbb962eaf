package conversations

import (
	"context"
	"time"

	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/logger"
	"github.com/dealerreach/backend/pkg/metrics"
	"github.com/dealerreach/backend/pkg/models"
	"github.com/dealerreach/backend/pkg/phone"
)

// IncomingMessage is an inbound lead message from a channel webhook.
type IncomingMessage struct {
	Phone      string
	Channel    models.Channel
	Text       string
	ExternalID string
	Timestamp  time.Time
}

// touchReplier marks the lead's latest outstanding touch as replied.
type touchReplier interface {
	RecordEvent(ctx context.Context, touchID, eventType string, payload map[string]string) error
}

// outreachCanceller halts all pending automated touches for a lead.
type outreachCanceller interface {
	CancelPendingForLead(ctx context.Context, leadID, reason string) (int, error)
}

// Service turns inbound messages into conversation threads and halts
// automated outreach for leads that reply.
type Service struct {
	leads         domain.LeadRepository
	conversations domain.ConversationRepository
	touches       domain.TouchRepository
	tracker       touchReplier
	canceller     outreachCanceller
	notifier      domain.HandoffNotifier
	metrics       *metrics.Metrics
	defaultRegion string
	log           logger.Logger
}

// NewService creates a conversation service. notifier may be nil when
// no handoff channel is configured.
func NewService(
	leads domain.LeadRepository,
	conversations domain.ConversationRepository,
	touches domain.TouchRepository,
	tracker touchReplier,
	canceller outreachCanceller,
	notifier domain.HandoffNotifier,
	m *metrics.Metrics,
	defaultRegion string,
	log logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		leads:         leads,
		conversations: conversations,
		touches:       touches,
		tracker:       tracker,
		canceller:     canceller,
		notifier:      notifier,
		metrics:       m,
		defaultRegion: defaultRegion,
		log:           log,
	}
}

// HandleIncomingMessage resolves the sender, threads the message and
// halts all automated outreach for the lead. A reply on any channel
// stops every pending touch, not just the channel replied on. Unknown
// senders are logged and dropped; the returned ID is empty for them.
func (s *Service) HandleIncomingMessage(ctx context.Context, in *IncomingMessage) (string, error) {
	e164, err := phone.Normalize(in.Phone, s.defaultRegion)
	if err != nil {
		s.log.Warn("inbound message with unparseable phone", "phone", in.Phone, "error", err)
		return "", nil
	}

	lead, err := s.leads.FindByPhone(ctx, e164)
	if err != nil {
		if domain.IsNotFound(err) {
			s.log.Info("inbound message from unknown sender", "phone", e164, "channel", in.Channel)
			return "", nil
		}
		return "", err
	}

	conv, err := s.conversations.FindOpen(ctx, lead.ID, in.Channel)
	if err != nil {
		return "", err
	}
	if conv == nil {
		conv = &models.Conversation{
			LeadID:  lead.ID,
			Channel: in.Channel,
			Status:  models.ConversationAI,
		}
		if err := s.conversations.Create(ctx, conv); err != nil {
			return "", err
		}
		s.metrics.RecordConversationOpened()
	}

	if err := s.conversations.AppendMessage(ctx, &models.ConversationMessage{
		ConversationID: conv.ID,
		Role:           "lead",
		Text:           in.Text,
		ExternalID:     in.ExternalID,
	}); err != nil {
		return "", err
	}

	if err := s.markReplied(ctx, lead.ID, in.Channel); err != nil {
		return "", err
	}

	cancelled, err := s.canceller.CancelPendingForLead(ctx, lead.ID, "lead_replied")
	if err != nil {
		return "", err
	}

	s.log.Info("inbound message threaded", "lead_id", lead.ID,
		"conversation_id", conv.ID, "channel", in.Channel, "touches_cancelled", cancelled)
	return conv.ID, nil
}

func (s *Service) markReplied(ctx context.Context, leadID string, ch models.Channel) error {
	touch, err := s.touches.LatestOutstanding(ctx, leadID, ch)
	if err != nil {
		return err
	}
	if touch == nil {
		return nil
	}
	return s.tracker.RecordEvent(ctx, touch.ID, string(models.StatusReplied),
		map[string]string{"channel": string(ch)})
}

// Escalate hands a conversation from the AI to a human agent and fires
// the handoff notification.
func (s *Service) Escalate(ctx context.Context, conversationID string) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Status != models.ConversationAI {
		return domain.NewConflictError("conversation is not AI-owned")
	}

	if err := s.conversations.UpdateStatus(ctx, conv.ID, models.ConversationHuman); err != nil {
		return err
	}

	if s.notifier != nil {
		lead, err := s.leads.GetByID(ctx, conv.LeadID)
		if err != nil {
			return err
		}
		if err := s.notifier.NotifyHandoff(ctx, lead, conv); err != nil {
			// The escalation itself stands; notification is best effort.
			s.log.Error("handoff notification failed", "conversation_id", conv.ID, "error", err)
		}
	}

	s.log.Info("conversation escalated", "conversation_id", conv.ID, "lead_id", conv.LeadID)
	return nil
}

// Close ends a conversation thread.
func (s *Service) Close(ctx context.Context, conversationID string) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Status == models.ConversationClosed {
		return nil
	}
	return s.conversations.UpdateStatus(ctx, conv.ID, models.ConversationClosed)
}

// Get returns a conversation with its message thread.
func (s *Service) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	return s.conversations.GetByID(ctx, conversationID)
}
