package tracking

import (
	"context"

	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/logger"
	"github.com/dealerreach/backend/pkg/models"
)

// Service records delivery lifecycle events and keeps Touch.Status in
// step with the monotonic status lattice. The event log is the audit
// trail; the status column is a derived cache of its highest rank.
type Service struct {
	touches domain.TouchRepository
	events  domain.TouchEventRepository
	leads   domain.LeadRepository
	log     logger.Logger
}

// NewService creates a delivery tracker.
func NewService(touches domain.TouchRepository, events domain.TouchEventRepository, leads domain.LeadRepository, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{touches: touches, events: events, leads: leads, log: log}
}

// RecordEvent appends the event unconditionally, then advances the
// touch status when the event maps to a higher lattice rank. Safe to
// call concurrently for the same touch: the conditional status update
// retries against fresh state, and a late low-rank event can never
// overwrite a higher status.
func (s *Service) RecordEvent(ctx context.Context, touchID, eventType string, payload map[string]string) error {
	if err := s.events.Append(ctx, &models.TouchEvent{
		TouchID:   touchID,
		EventType: eventType,
		Payload:   payload,
	}); err != nil {
		return err
	}

	next, ok := models.StatusForEvent(eventType)
	if !ok {
		// Unknown event types are logged facts, nothing more.
		return nil
	}

	for {
		touch, err := s.touches.GetByID(ctx, touchID)
		if err != nil {
			return err
		}
		target := models.NextStatus(touch.Status, next)
		if target == touch.Status {
			return nil
		}
		moved, err := s.touches.UpdateStatusFrom(ctx, touchID, touch.Status, target)
		if err != nil {
			return err
		}
		if moved {
			s.log.Debug("touch status advanced", "touch_id", touchID,
				"from", touch.Status, "to", target, "event", eventType)
			return nil
		}
		// Another writer moved the touch first; re-evaluate.
	}
}

// RecordEventByRef resolves a provider message reference to its touch
// and records the event. Unknown references are logged and dropped,
// since providers replay webhooks for messages outside our system.
func (s *Service) RecordEventByRef(ctx context.Context, providerRef, eventType string, payload map[string]string) (bool, error) {
	touch, err := s.findByProviderRef(ctx, providerRef)
	if err != nil {
		return false, err
	}
	if touch == nil {
		s.log.Debug("event for unknown provider ref", "provider_ref", providerRef, "event", eventType)
		return false, nil
	}
	return true, s.RecordEvent(ctx, touch.ID, eventType, payload)
}

func (s *Service) findByProviderRef(ctx context.Context, providerRef string) (*models.Touch, error) {
	if providerRef == "" {
		return nil, nil
	}
	touch, err := s.touches.GetByProviderRef(ctx, providerRef)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return touch, nil
}

// FindOutstandingByPhone resolves a recipient phone number to the most
// recent outstanding touch on the channel. Used for webhook payloads
// that carry an address instead of a message reference.
func (s *Service) FindOutstandingByPhone(ctx context.Context, e164 string, channel models.Channel) (*models.Touch, error) {
	lead, err := s.leads.FindByPhone(ctx, e164)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return s.touches.LatestOutstanding(ctx, lead.ID, channel)
}

// FindOutstandingByEmail is FindOutstandingByPhone for email addresses.
func (s *Service) FindOutstandingByEmail(ctx context.Context, email string) (*models.Touch, error) {
	lead, err := s.leads.FindByEmail(ctx, email)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return s.touches.LatestOutstanding(ctx, lead.ID, models.ChannelEmail)
}
