package campaigns

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/logger"
	"github.com/dealerreach/backend/pkg/models"
)

// campaignScheduler is the slice of the scheduler the lifecycle
// controller drives.
type campaignScheduler interface {
	ScheduleCampaign(ctx context.Context, campaign *models.Campaign) error
	PauseCampaign(ctx context.Context, campaignID string) error
	CancelCampaign(ctx context.Context, campaignID string) error
	ScheduleNurture(ctx context.Context, lead *models.Lead, base time.Time) (int, error)
}

// CreateInput is the payload for creating a campaign.
type CreateInput struct {
	Name      string           `json:"name" validate:"required,min=3,max=120"`
	Segments  []models.Segment `json:"segments" validate:"required,min=1,dive,oneof=HOT WARM COLD FROZEN"`
	Channels  []models.Channel `json:"channels" validate:"required,min=1,dive,oneof=whatsapp email sms"`
	StartDate *time.Time       `json:"start_date,omitempty"`
}

// Detail is a campaign with its touch status breakdown.
type Detail struct {
	Campaign *models.Campaign           `json:"campaign"`
	Stats    map[models.TouchStatus]int `json:"stats"`
}

// Service owns the campaign state machine:
// draft -> active -> paused -> active, and active|paused -> completed.
// Illegal transitions fail with a descriptive error and no side effects.
type Service struct {
	campaigns domain.CampaignRepository
	touches   domain.TouchRepository
	leads     domain.LeadRepository
	scheduler campaignScheduler
	validate  *validator.Validate
	log       logger.Logger
	now       func() time.Time
}

// NewService creates a campaign service.
func NewService(
	campaigns domain.CampaignRepository,
	touches domain.TouchRepository,
	leads domain.LeadRepository,
	scheduler campaignScheduler,
	log logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		campaigns: campaigns,
		touches:   touches,
		leads:     leads,
		scheduler: scheduler,
		validate:  validator.New(),
		log:       log,
		now:       time.Now,
	}
}

// Create validates and stores a draft campaign.
func (s *Service) Create(ctx context.Context, input *CreateInput) (*models.Campaign, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	campaign := &models.Campaign{
		Name:      input.Name,
		Status:    models.CampaignDraft,
		Segments:  input.Segments,
		Channels:  input.Channels,
		StartDate: input.StartDate,
	}
	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}

	s.log.Info("campaign created", "campaign_id", campaign.ID, "name", campaign.Name)
	return campaign, nil
}

// Activate starts a draft campaign or resumes a paused one. Resume is
// idempotent with respect to existing touches: the scheduler skips
// already-created cadence slots and requeues pending ones.
func (s *Service) Activate(ctx context.Context, id string) error {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status != models.CampaignDraft && campaign.Status != models.CampaignPaused {
		return domain.NewInvalidTransitionError(string(campaign.Status), "activate")
	}

	if campaign.StartDate == nil {
		now := s.now()
		campaign.StartDate = &now
		if err := s.campaigns.Update(ctx, campaign); err != nil {
			return err
		}
	}

	if err := s.scheduler.ScheduleCampaign(ctx, campaign); err != nil {
		return err
	}
	if err := s.campaigns.UpdateStatus(ctx, id, models.CampaignActive); err != nil {
		return err
	}

	s.log.Info("campaign activated", "campaign_id", id)
	return nil
}

// Pause parks an active campaign. Its touches stay pending; only the
// queued jobs are withdrawn.
func (s *Service) Pause(ctx context.Context, id string) error {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status != models.CampaignActive {
		return domain.NewInvalidTransitionError(string(campaign.Status), "pause")
	}

	if err := s.scheduler.PauseCampaign(ctx, id); err != nil {
		return err
	}
	if err := s.campaigns.UpdateStatus(ctx, id, models.CampaignPaused); err != nil {
		return err
	}

	s.log.Info("campaign paused", "campaign_id", id)
	return nil
}

// Cancel terminates an active or paused campaign. Pending touches are
// failed, not deleted.
func (s *Service) Cancel(ctx context.Context, id string) error {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status != models.CampaignActive && campaign.Status != models.CampaignPaused {
		return domain.NewInvalidTransitionError(string(campaign.Status), "cancel")
	}

	if err := s.scheduler.CancelCampaign(ctx, id); err != nil {
		return err
	}
	if err := s.campaigns.UpdateStatus(ctx, id, models.CampaignCompleted); err != nil {
		return err
	}

	s.log.Info("campaign canceled", "campaign_id", id)
	return nil
}

// Complete marks an active campaign as having run its course. With
// nurture enabled, leads that went through the cadence without ever
// replying get the long-tail nurture sequence.
func (s *Service) Complete(ctx context.Context, id string, withNurture bool) error {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status != models.CampaignActive {
		return domain.NewInvalidTransitionError(string(campaign.Status), "complete")
	}

	if err := s.campaigns.UpdateStatus(ctx, id, models.CampaignCompleted); err != nil {
		return err
	}

	if withNurture {
		if err := s.scheduleNurture(ctx, campaign); err != nil {
			return err
		}
	}

	s.log.Info("campaign completed", "campaign_id", id, "nurture", withNurture)
	return nil
}

func (s *Service) scheduleNurture(ctx context.Context, campaign *models.Campaign) error {
	leads, err := s.leads.ListBySegments(ctx, campaign.Segments)
	if err != nil {
		return err
	}

	base := s.now()
	scheduled := 0
	for _, lead := range leads {
		replied, err := s.hasReplied(ctx, lead.ID, campaign.ID)
		if err != nil {
			return err
		}
		if replied {
			continue
		}
		n, err := s.scheduler.ScheduleNurture(ctx, lead, base)
		if err != nil {
			s.log.Error("failed to schedule nurture", "campaign_id", campaign.ID,
				"lead_id", lead.ID, "error", err)
			continue
		}
		scheduled += n
	}

	s.log.Info("nurture scheduled", "campaign_id", campaign.ID, "touches", scheduled)
	return nil
}

func (s *Service) hasReplied(ctx context.Context, leadID, campaignID string) (bool, error) {
	touches, err := s.touches.ListByLead(ctx, leadID)
	if err != nil {
		return false, err
	}
	for _, t := range touches {
		if t.CampaignID != nil && *t.CampaignID == campaignID && t.Status == models.StatusReplied {
			return true, nil
		}
	}
	return false, nil
}

// Get returns a campaign with its touch status breakdown.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.touches.StatusCounts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Campaign: campaign, Stats: stats}, nil
}

// List returns campaigns in a given status.
func (s *Service) List(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	return s.campaigns.ListByStatus(ctx, status)
}
