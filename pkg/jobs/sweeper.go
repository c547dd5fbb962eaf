package jobs

import (
	"context"

	"github.com/dealerreach/backend/pkg/dnc"
	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/logger"
	"github.com/dealerreach/backend/pkg/models"
)

// outreachCanceller withdraws pending touches for a lead.
type outreachCanceller interface {
	CancelPendingForLead(ctx context.Context, leadID, reason string) (int, error)
}

// campaignCompleter drives the campaign lifecycle.
type campaignCompleter interface {
	Complete(ctx context.Context, id string, withNurture bool) error
}

// completionNotifier announces finished campaigns.
type completionNotifier interface {
	NotifyCampaignCompleted(ctx context.Context, campaign *models.Campaign, stats map[models.TouchStatus]int) error
}

// Sweeper runs the periodic consistency jobs: consent revoked after
// scheduling, campaigns that have run their course, and stats logging.
type Sweeper struct {
	campaigns domain.CampaignRepository
	touches   domain.TouchRepository
	registry  *dnc.Registry
	canceller outreachCanceller
	completer campaignCompleter
	notifier  completionNotifier
	log       logger.Logger
}

// NewSweeper creates a sweeper. notifier may be nil.
func NewSweeper(
	campaigns domain.CampaignRepository,
	touches domain.TouchRepository,
	registry *dnc.Registry,
	canceller outreachCanceller,
	completer campaignCompleter,
	notifier completionNotifier,
	log logger.Logger,
) *Sweeper {
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{
		campaigns: campaigns,
		touches:   touches,
		registry:  registry,
		canceller: canceller,
		completer: completer,
		notifier:  notifier,
		log:       log,
	}
}

// SweepRevokedConsent cancels pending touches for leads that opted out
// or were DNC-listed after their touches were scheduled. The dispatch
// worker re-checks consent at send time anyway; this sweep keeps the
// queue from carrying jobs that are guaranteed to be blocked.
func (s *Sweeper) SweepRevokedConsent(ctx context.Context) (int, error) {
	active, err := s.campaigns.ListByStatus(ctx, models.CampaignActive)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, campaign := range active {
		pending, err := s.touches.PendingByCampaign(ctx, campaign.ID)
		if err != nil {
			s.log.Error("failed to list pending touches", "campaign_id", campaign.ID, "error", err)
			continue
		}

		seen := make(map[string]bool)
		for _, touch := range pending {
			if seen[touch.LeadID] {
				continue
			}
			seen[touch.LeadID] = true

			decision, err := s.registry.Preflight(ctx, touch.LeadID, touch.Channel)
			if err != nil {
				s.log.Error("failed consent preflight", "lead_id", touch.LeadID, "error", err)
				continue
			}
			if decision.Allowed {
				continue
			}

			n, err := s.canceller.CancelPendingForLead(ctx, touch.LeadID, decision.Reason)
			if err != nil {
				s.log.Error("failed to cancel pending touches", "lead_id", touch.LeadID, "error", err)
				continue
			}
			cancelled += n
		}
	}

	return cancelled, nil
}

// CompleteFinishedCampaigns completes active campaigns with no pending
// touches left, moves their silent leads onto the nurture sequence and
// announces them.
func (s *Sweeper) CompleteFinishedCampaigns(ctx context.Context) (int, error) {
	active, err := s.campaigns.ListByStatus(ctx, models.CampaignActive)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, campaign := range active {
		stats, err := s.touches.StatusCounts(ctx, campaign.ID)
		if err != nil {
			s.log.Error("failed to count touches", "campaign_id", campaign.ID, "error", err)
			continue
		}

		total := 0
		for _, n := range stats {
			total += n
		}
		if total == 0 || stats[models.StatusPending] > 0 {
			continue
		}

		if err := s.completer.Complete(ctx, campaign.ID, true); err != nil {
			s.log.Error("failed to complete campaign", "campaign_id", campaign.ID, "error", err)
			continue
		}
		completed++

		if s.notifier != nil {
			if err := s.notifier.NotifyCampaignCompleted(ctx, campaign, stats); err != nil {
				s.log.Warn("failed to notify campaign completion", "campaign_id", campaign.ID, "error", err)
			}
		}
	}

	return completed, nil
}

// LogOutreachStats logs the touch status breakdown per active campaign.
func (s *Sweeper) LogOutreachStats(ctx context.Context) error {
	active, err := s.campaigns.ListByStatus(ctx, models.CampaignActive)
	if err != nil {
		return err
	}

	for _, campaign := range active {
		stats, err := s.touches.StatusCounts(ctx, campaign.ID)
		if err != nil {
			s.log.Error("failed to count touches", "campaign_id", campaign.ID, "error", err)
			continue
		}
		s.log.Info("campaign outreach stats",
			"campaign_id", campaign.ID,
			"name", campaign.Name,
			"pending", stats[models.StatusPending],
			"sent", stats[models.StatusSent],
			"delivered", stats[models.StatusDelivered],
			"opened", stats[models.StatusOpened],
			"clicked", stats[models.StatusClicked],
			"replied", stats[models.StatusReplied],
			"bounced", stats[models.StatusBounced],
			"failed", stats[models.StatusFailed],
		)
	}
	return nil
}
