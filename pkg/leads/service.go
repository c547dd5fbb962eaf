package leads

import (
	"context"

	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/logger"
	"github.com/dealerreach/backend/pkg/models"
	"github.com/dealerreach/backend/pkg/phone"
)

// outreachScheduler is the slice of the scheduler the lead service
// drives.
type outreachScheduler interface {
	CancelPendingForLead(ctx context.Context, leadID, reason string) (int, error)
	PromoteSuperHot(ctx context.Context, lead *models.Lead) error
}

// Timeline is a lead's touch history with delivery events.
type Timeline struct {
	Lead    *models.Lead    `json:"lead"`
	Touches []TimelineEntry `json:"touches"`
}

// TimelineEntry is one touch with its event log.
type TimelineEntry struct {
	Touch  *models.Touch        `json:"touch"`
	Events []*models.TouchEvent `json:"events"`
}

// Service owns lead-level outreach operations: opt-out, DNC listing,
// high-intent promotion and history lookups.
type Service struct {
	leads         domain.LeadRepository
	touches       domain.TouchRepository
	events        domain.TouchEventRepository
	dnc           domain.DNCRepository
	scheduler     outreachScheduler
	defaultRegion string
	log           logger.Logger
}

// NewService creates a lead service.
func NewService(
	leads domain.LeadRepository,
	touches domain.TouchRepository,
	events domain.TouchEventRepository,
	dnc domain.DNCRepository,
	scheduler outreachScheduler,
	defaultRegion string,
	log logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		leads:         leads,
		touches:       touches,
		events:        events,
		dnc:           dnc,
		scheduler:     scheduler,
		defaultRegion: defaultRegion,
		log:           log,
	}
}

// OptOut flags the lead and halts all pending outreach. Opt-out is
// permanent from the engine's point of view; re-consenting is a manual
// operation.
func (s *Service) OptOut(ctx context.Context, leadID, reason string) error {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return err
	}
	if !lead.OptedOut {
		lead.OptedOut = true
		if err := s.leads.Save(ctx, lead); err != nil {
			return err
		}
	}

	cancelled, err := s.scheduler.CancelPendingForLead(ctx, leadID, "opted_out")
	if err != nil {
		return err
	}

	s.log.Info("lead opted out", "lead_id", leadID, "reason", reason, "touches_cancelled", cancelled)
	return nil
}

// AddToDNC lists a lead as do-not-contact and halts pending outreach.
// Distinct from opt-out: DNC is an operator decision, opt-out is the
// lead's.
func (s *Service) AddToDNC(ctx context.Context, leadID, reason string) error {
	if _, err := s.leads.GetByID(ctx, leadID); err != nil {
		return err
	}
	if err := s.dnc.Add(ctx, &models.DNCEntry{LeadID: leadID, Reason: reason}); err != nil {
		return err
	}

	cancelled, err := s.scheduler.CancelPendingForLead(ctx, leadID, "dnc_listed")
	if err != nil {
		return err
	}

	s.log.Info("lead added to dnc", "lead_id", leadID, "reason", reason, "touches_cancelled", cancelled)
	return nil
}

// ImportDNC lists many leads as do-not-contact in one pass, typically
// from an external suppression file. Unknown lead IDs are skipped, not
// failed, so a partially stale file still imports. Returns the number
// of newly listed leads.
func (s *Service) ImportDNC(ctx context.Context, leadIDs []string, reason string) (int, error) {
	seen := make(map[string]bool, len(leadIDs))
	entries := make([]*models.DNCEntry, 0, len(leadIDs))
	for _, id := range leadIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		if _, err := s.leads.GetByID(ctx, id); err != nil {
			if domain.IsNotFound(err) {
				s.log.Warn("skipping unknown lead in dnc import", "lead_id", id)
				continue
			}
			return 0, err
		}
		entries = append(entries, &models.DNCEntry{LeadID: id, Reason: reason})
	}

	listed, err := s.dnc.AddBatch(ctx, entries)
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		if _, err := s.scheduler.CancelPendingForLead(ctx, entry.LeadID, "dnc_listed"); err != nil {
			s.log.Error("failed to cancel pending touches", "lead_id", entry.LeadID, "error", err)
		}
	}

	s.log.Info("dnc import done", "requested", len(leadIDs), "listed", listed)
	return listed, nil
}

// PromoteSuperHot tags the lead as high intent and switches it onto
// the accelerated cadence.
func (s *Service) PromoteSuperHot(ctx context.Context, leadID string) error {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return err
	}
	if !lead.Tags.Has(models.TagSuperHot) {
		lead.Tags = append(lead.Tags, models.TagSuperHot)
		if err := s.leads.Save(ctx, lead); err != nil {
			return err
		}
	}
	return s.scheduler.PromoteSuperHot(ctx, lead)
}

// Timeline returns the lead's full touch history with delivery events.
func (s *Service) Timeline(ctx context.Context, leadID string) (*Timeline, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	touches, err := s.touches.ListByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	timeline := &Timeline{Lead: lead, Touches: make([]TimelineEntry, 0, len(touches))}
	for _, touch := range touches {
		events, err := s.events.ListByTouch(ctx, touch.ID)
		if err != nil {
			return nil, err
		}
		timeline.Touches = append(timeline.Touches, TimelineEntry{Touch: touch, Events: events})
	}
	return timeline, nil
}

// FindByPhone normalizes the number and resolves the lead.
func (s *Service) FindByPhone(ctx context.Context, raw string) (*models.Lead, error) {
	e164, err := phone.Normalize(raw, s.defaultRegion)
	if err != nil {
		return nil, domain.NewValidationError("invalid phone number")
	}
	return s.leads.FindByPhone(ctx, e164)
}
