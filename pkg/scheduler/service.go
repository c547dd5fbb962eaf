package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dealerreach/backend/pkg/cadence"
	"github.com/dealerreach/backend/pkg/channel"
	"github.com/dealerreach/backend/pkg/compliance"
	"github.com/dealerreach/backend/pkg/dnc"
	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/logger"
	"github.com/dealerreach/backend/pkg/models"
	"github.com/dealerreach/backend/pkg/queue"
)

// DispatchPayload is the job body a dispatch worker receives. The job
// ID is the touch ID, so requeueing a touch never duplicates work.
type DispatchPayload struct {
	TouchID string         `json:"touch_id"`
	LeadID  string         `json:"lead_id"`
	Channel models.Channel `json:"channel"`
}

// Service expands campaigns into touches and feeds the dispatch queues.
type Service struct {
	leads    domain.LeadRepository
	touches  domain.TouchRepository
	events   domain.TouchEventRepository
	catalog  *cadence.Catalog
	registry *dnc.Registry
	window   *compliance.Window
	queue    queue.Queue
	log      logger.Logger
	now      func() time.Time
}

// NewService creates a scheduler.
func NewService(
	leads domain.LeadRepository,
	touches domain.TouchRepository,
	events domain.TouchEventRepository,
	catalog *cadence.Catalog,
	registry *dnc.Registry,
	window *compliance.Window,
	q queue.Queue,
	log logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		leads:    leads,
		touches:  touches,
		events:   events,
		catalog:  catalog,
		registry: registry,
		window:   window,
		queue:    q,
		log:      log,
		now:      time.Now,
	}
}

// ScheduleCampaign expands a campaign into touches for every eligible
// lead and enqueues a dispatch job per touch. It is idempotent: cadence
// slots that already have a touch are skipped, and pending touches are
// re-enqueued (the queue dedups by touch ID), which is how resume works.
func (s *Service) ScheduleCampaign(ctx context.Context, campaign *models.Campaign) error {
	if campaign.StartDate == nil {
		return domain.NewValidationError("campaign has no start date")
	}

	leads, err := s.leads.ListBySegments(ctx, campaign.Segments)
	if err != nil {
		return err
	}

	created, skipped := 0, 0
	for _, lead := range leads {
		n, err := s.scheduleLead(ctx, campaign, lead)
		if err != nil {
			s.log.Error("failed to schedule lead", "campaign_id", campaign.ID, "lead_id", lead.ID, "error", err)
			continue
		}
		created += n
		if n == 0 {
			skipped++
		}
	}

	if err := s.requeuePending(ctx, campaign.ID); err != nil {
		return err
	}

	s.log.Info("campaign scheduled", "campaign_id", campaign.ID,
		"leads", len(leads), "touches_created", created, "leads_skipped", skipped)
	return nil
}

func (s *Service) scheduleLead(ctx context.Context, campaign *models.Campaign, lead *models.Lead) (int, error) {
	steps := s.catalog.ForLead(ctx, lead)
	created := 0

	for _, step := range steps {
		if !campaign.Channels.Has(step.Channel) {
			continue
		}
		if !lead.ReachableOn(step.Channel) {
			continue
		}

		decision, err := s.registry.PreflightLead(ctx, lead, step.Channel)
		if err != nil {
			return created, err
		}
		if !decision.Allowed {
			s.log.Debug("lead blocked at expansion", "lead_id", lead.ID,
				"channel", step.Channel, "reason", decision.Reason)
			continue
		}

		exists, err := s.touches.StepExists(ctx, lead.ID, &campaign.ID, step.Channel, step.TemplateID)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		scheduledAt := s.slotTime(*campaign.StartDate, step)
		touch := &models.Touch{
			LeadID:      lead.ID,
			CampaignID:  &campaign.ID,
			Channel:     step.Channel,
			TemplateID:  step.TemplateID,
			DayOffset:   step.DayOffset,
			Status:      models.StatusPending,
			ScheduledAt: scheduledAt,
		}
		if err := s.touches.Create(ctx, touch); err != nil {
			return created, err
		}
		if err := s.enqueueTouch(ctx, touch); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// slotTime places a step at its hour in the legal-window timezone, then
// rolls it into the window. Email carries no window restriction but the
// default cadence hours already sit inside it.
func (s *Service) slotTime(startDate time.Time, step cadence.Step) time.Time {
	loc := s.window.Location()
	day := startDate.In(loc).AddDate(0, 0, step.DayOffset)
	at := time.Date(day.Year(), day.Month(), day.Day(), step.Hour, 0, 0, 0, loc)
	return s.window.AdjustToWindow(at)
}

func (s *Service) enqueueTouch(ctx context.Context, touch *models.Touch) error {
	payload, err := json.Marshal(DispatchPayload{
		TouchID: touch.ID,
		LeadID:  touch.LeadID,
		Channel: touch.Channel,
	})
	if err != nil {
		return err
	}
	delay := time.Duration(0)
	if until := touch.ScheduledAt.Sub(s.now()); until > 0 {
		delay = until
	}
	return s.queue.Enqueue(ctx, channel.QueueFor(touch.Channel), touch.ID, payload, delay)
}

func (s *Service) requeuePending(ctx context.Context, campaignID string) error {
	pending, err := s.touches.PendingByCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	for _, touch := range pending {
		if err := s.enqueueTouch(ctx, touch); err != nil {
			return err
		}
	}
	return nil
}

// PauseCampaign withdraws queued dispatch jobs but leaves the touches
// pending, so a later resume can requeue them at their original slots.
func (s *Service) PauseCampaign(ctx context.Context, campaignID string) error {
	pending, err := s.touches.PendingByCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	for _, touch := range pending {
		if err := s.queue.Remove(ctx, channel.QueueFor(touch.Channel), touch.ID); err != nil {
			return err
		}
	}
	s.log.Info("campaign paused", "campaign_id", campaignID, "touches_parked", len(pending))
	return nil
}

// CancelCampaign withdraws queued jobs and fails every pending touch.
// Touches are never deleted; failed is their terminal record.
func (s *Service) CancelCampaign(ctx context.Context, campaignID string) error {
	pending, err := s.touches.PendingByCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	for _, touch := range pending {
		if err := s.cancelTouch(ctx, touch, "campaign_canceled"); err != nil {
			return err
		}
	}
	s.log.Info("campaign canceled", "campaign_id", campaignID, "touches_failed", len(pending))
	return nil
}

// CancelPendingForLead fails every pending touch of a lead across all
// campaigns. This runs when a lead replies or opts out.
func (s *Service) CancelPendingForLead(ctx context.Context, leadID, reason string) (int, error) {
	pending, err := s.touches.PendingByLead(ctx, leadID)
	if err != nil {
		return 0, err
	}
	for _, touch := range pending {
		if err := s.cancelTouch(ctx, touch, reason); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}

func (s *Service) cancelTouch(ctx context.Context, touch *models.Touch, reason string) error {
	if err := s.queue.Remove(ctx, channel.QueueFor(touch.Channel), touch.ID); err != nil {
		return err
	}
	moved, err := s.touches.UpdateStatusFrom(ctx, touch.ID, models.StatusPending, models.StatusFailed)
	if err != nil {
		return err
	}
	if !moved {
		// Sent in the meantime; the delivery lattice owns it now.
		return nil
	}
	return s.events.Append(ctx, &models.TouchEvent{
		TouchID:   touch.ID,
		EventType: string(models.StatusFailed),
		Payload:   map[string]string{"reason": reason},
	})
}

// PromoteSuperHot switches a lead onto the SUPER_HOT cadence: pending
// touches are canceled and the accelerated sequence starts now. The new
// touches carry no campaign; they belong to the lead's intent signal.
func (s *Service) PromoteSuperHot(ctx context.Context, lead *models.Lead) error {
	if _, err := s.CancelPendingForLead(ctx, lead.ID, "superseded_by_super_hot"); err != nil {
		return err
	}
	n, err := s.scheduleStandalone(ctx, lead, s.catalog.Get(ctx, cadence.NameSuperHot), s.now())
	if err != nil {
		return err
	}
	s.log.Info("lead promoted to super hot", "lead_id", lead.ID, "touches_created", n)
	return nil
}

// ScheduleNurture starts the long-tail nurture sequence for a lead,
// anchored at the given base time (typically campaign completion).
func (s *Service) ScheduleNurture(ctx context.Context, lead *models.Lead, base time.Time) (int, error) {
	return s.scheduleStandalone(ctx, lead, s.catalog.Get(ctx, cadence.NameNurture), base)
}

func (s *Service) scheduleStandalone(ctx context.Context, lead *models.Lead, steps cadence.Cadence, base time.Time) (int, error) {
	created := 0
	for _, step := range steps {
		if !lead.ReachableOn(step.Channel) {
			continue
		}
		decision, err := s.registry.PreflightLead(ctx, lead, step.Channel)
		if err != nil {
			return created, err
		}
		if !decision.Allowed {
			continue
		}
		exists, err := s.touches.StepExists(ctx, lead.ID, nil, step.Channel, step.TemplateID)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		touch := &models.Touch{
			LeadID:      lead.ID,
			Channel:     step.Channel,
			TemplateID:  step.TemplateID,
			DayOffset:   step.DayOffset,
			Status:      models.StatusPending,
			ScheduledAt: s.slotTime(base, step),
		}
		if err := s.touches.Create(ctx, touch); err != nil {
			return created, err
		}
		if err := s.enqueueTouch(ctx, touch); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
