package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerreach/backend/pkg/dnc"
	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/models"
)

type fakeCampaigns struct {
	domain.CampaignRepository
	active []*models.Campaign
}

func (f *fakeCampaigns) ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	if status == models.CampaignActive {
		return f.active, nil
	}
	return nil, nil
}

type fakeTouches struct {
	domain.TouchRepository
	pending map[string][]*models.Touch
	counts  map[string]map[models.TouchStatus]int
}

func (f *fakeTouches) PendingByCampaign(ctx context.Context, campaignID string) ([]*models.Touch, error) {
	return f.pending[campaignID], nil
}

func (f *fakeTouches) StatusCounts(ctx context.Context, campaignID string) (map[models.TouchStatus]int, error) {
	return f.counts[campaignID], nil
}

type fakeLeads struct {
	domain.LeadRepository
	leads map[string]*models.Lead
}

func (f *fakeLeads) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	if l, ok := f.leads[id]; ok {
		return l, nil
	}
	return nil, domain.NewNotFoundError("lead")
}

type fakeDNC struct {
	domain.DNCRepository
	listed map[string]bool
}

func (f *fakeDNC) Exists(ctx context.Context, leadID string) (bool, error) {
	return f.listed[leadID], nil
}

type fakeCanceller struct {
	cancelled map[string]string
}

func (f *fakeCanceller) CancelPendingForLead(ctx context.Context, leadID, reason string) (int, error) {
	f.cancelled[leadID] = reason
	return 1, nil
}

type fakeCompleter struct {
	completed []string
	nurture   bool
}

func (f *fakeCompleter) Complete(ctx context.Context, id string, withNurture bool) error {
	f.completed = append(f.completed, id)
	f.nurture = withNurture
	return nil
}

type fakeNotifier struct {
	announced []string
}

func (f *fakeNotifier) NotifyCampaignCompleted(ctx context.Context, campaign *models.Campaign, stats map[models.TouchStatus]int) error {
	f.announced = append(f.announced, campaign.ID)
	return nil
}

func TestSweeper_SweepRevokedConsent(t *testing.T) {
	ctx := context.Background()

	leads := &fakeLeads{leads: map[string]*models.Lead{
		"lead-ok":     {ID: "lead-ok", Phone: "+34612345678", Email: "ok@example.com"},
		"lead-out":    {ID: "lead-out", Phone: "+34612345679", OptedOut: true},
		"lead-listed": {ID: "lead-listed", Phone: "+34612345680"},
	}}
	touches := &fakeTouches{pending: map[string][]*models.Touch{
		"camp-1": {
			{ID: "t-1", LeadID: "lead-ok", Channel: models.ChannelWhatsApp},
			{ID: "t-2", LeadID: "lead-out", Channel: models.ChannelWhatsApp},
			{ID: "t-3", LeadID: "lead-out", Channel: models.ChannelEmail},
			{ID: "t-4", LeadID: "lead-listed", Channel: models.ChannelSMS},
		},
	}}
	canceller := &fakeCanceller{cancelled: map[string]string{}}

	s := NewSweeper(
		&fakeCampaigns{active: []*models.Campaign{{ID: "camp-1", Status: models.CampaignActive}}},
		touches,
		dnc.NewRegistry(leads, &fakeDNC{listed: map[string]bool{"lead-listed": true}}),
		canceller,
		&fakeCompleter{},
		nil,
		nil,
	)

	cancelled, err := s.SweepRevokedConsent(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, cancelled)
	assert.Equal(t, dnc.ReasonOptedOut, canceller.cancelled["lead-out"])
	assert.Equal(t, dnc.ReasonDNCListed, canceller.cancelled["lead-listed"])
	assert.NotContains(t, canceller.cancelled, "lead-ok")
}

func TestSweeper_CompleteFinishedCampaigns(t *testing.T) {
	ctx := context.Background()

	touches := &fakeTouches{counts: map[string]map[models.TouchStatus]int{
		// All settled: eligible for completion.
		"camp-done": {models.StatusSent: 3, models.StatusReplied: 2, models.StatusFailed: 1},
		// Still has pending touches.
		"camp-running": {models.StatusPending: 4, models.StatusSent: 2},
		// Never expanded; leave it alone.
		"camp-empty": {},
	}}
	completer := &fakeCompleter{}
	notifier := &fakeNotifier{}

	s := NewSweeper(
		&fakeCampaigns{active: []*models.Campaign{
			{ID: "camp-done", Name: "Done", Status: models.CampaignActive},
			{ID: "camp-running", Name: "Running", Status: models.CampaignActive},
			{ID: "camp-empty", Name: "Empty", Status: models.CampaignActive},
		}},
		touches,
		nil,
		&fakeCanceller{cancelled: map[string]string{}},
		completer,
		notifier,
		nil,
	)

	completed, err := s.CompleteFinishedCampaigns(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, completed)
	assert.Equal(t, []string{"camp-done"}, completer.completed)
	assert.True(t, completer.nurture, "silent leads should get the nurture tail")
	assert.Equal(t, []string{"camp-done"}, notifier.announced)
}

func TestSweeper_LogOutreachStats(t *testing.T) {
	s := NewSweeper(
		&fakeCampaigns{active: []*models.Campaign{{ID: "camp-1", Name: "Q3"}}},
		&fakeTouches{counts: map[string]map[models.TouchStatus]int{
			"camp-1": {models.StatusSent: 5},
		}},
		nil,
		&fakeCanceller{cancelled: map[string]string{}},
		&fakeCompleter{},
		nil,
		nil,
	)

	assert.NoError(t, s.LogOutreachStats(context.Background()))
}
