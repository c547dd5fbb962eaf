package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerreach/backend/pkg/cadence"
	"github.com/dealerreach/backend/pkg/channel"
	"github.com/dealerreach/backend/pkg/compliance"
	"github.com/dealerreach/backend/pkg/dnc"
	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/models"
	"github.com/dealerreach/backend/pkg/queue"
)

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

func (f *fakeLeads) ListBySegments(ctx context.Context, segments []models.Segment) ([]*models.Lead, error) {
	set := models.Segments(segments)
	var out []*models.Lead
	for _, l := range f.leads {
		if set.Has(l.Segment) {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeTouches struct {
	domain.TouchRepository
	mu      sync.Mutex
	touches map[string]*models.Touch
	seq     int
}

func newFakeTouches() *fakeTouches {
	return &fakeTouches{touches: make(map[string]*models.Touch)}
}

func (f *fakeTouches) Create(ctx context.Context, t *models.Touch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		f.seq++
		t.ID = fmt.Sprintf("touch-%d", f.seq)
	}
	f.touches[t.ID] = t
	return nil
}

func (f *fakeTouches) StepExists(ctx context.Context, leadID string, campaignID *string, ch models.Channel, templateID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.touches {
		if t.LeadID == leadID && t.Channel == ch && t.TemplateID == templateID && ptrEq(t.CampaignID, campaignID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTouches) UpdateStatusFrom(ctx context.Context, id string, from, to models.TouchStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.touches[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	return true, nil
}

func (f *fakeTouches) PendingByCampaign(ctx context.Context, campaignID string) ([]*models.Touch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Touch
	for _, t := range f.touches {
		if t.Status == models.StatusPending && t.CampaignID != nil && *t.CampaignID == campaignID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTouches) PendingByLead(ctx context.Context, leadID string) ([]*models.Touch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Touch
	for _, t := range f.touches {
		if t.Status == models.StatusPending && t.LeadID == leadID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTouches) byStatus(status models.TouchStatus) []*models.Touch {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Touch
	for _, t := range f.touches {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

func ptrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type fakeEvents struct {
	domain.TouchEventRepository
	mu     sync.Mutex
	events []*models.TouchEvent
}

func (f *fakeEvents) Append(ctx context.Context, e *models.TouchEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

type fakeDNC struct {
	domain.DNCRepository
	listed map[string]bool
}

func (f *fakeDNC) Exists(ctx context.Context, leadID string) (bool, error) {
	return f.listed[leadID], nil
}

func testWindow(t *testing.T) *compliance.Window {
	t.Helper()
	w, err := compliance.NewWindow(compliance.WindowConfig{
		StartHour: 9, EndHour: 20, Timezone: "Europe/Madrid",
	})
	require.NoError(t, err)
	return w
}

func setupScheduler(t *testing.T, leads map[string]*models.Lead, listed map[string]bool) (*Service, *fakeTouches, *fakeEvents, *queue.MemoryQueue) {
	t.Helper()
	touches := newFakeTouches()
	events := &fakeEvents{}
	q := queue.NewMemoryQueue()
	lr := &fakeLeads{leads: leads}
	svc := NewService(lr, touches, events, cadence.NewCatalog(nil),
		dnc.NewRegistry(lr, &fakeDNC{listed: listed}), testWindow(t), q, nil)
	return svc, touches, events, q
}

func madrid(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	return loc
}

func hotCampaign(start time.Time) *models.Campaign {
	return &models.Campaign{
		ID:        "camp-1",
		Name:      "Reactivation Q3",
		Status:    models.CampaignActive,
		Segments:  models.Segments{models.SegmentHot},
		Channels:  models.ChannelSet{models.ChannelWhatsApp, models.ChannelEmail},
		StartDate: &start,
	}
}

func TestService_ScheduleCampaign(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, madrid(t))

	fullLead := func() *models.Lead {
		return &models.Lead{ID: "lead-1", FirstName: "Marta", Segment: models.SegmentHot,
			Phone: "+34612345678", Email: "marta@example.com"}
	}

	t.Run("Success - expands hot cadence into touches and jobs", func(t *testing.T) {
		svc, touches, _, q := setupScheduler(t, map[string]*models.Lead{"lead-1": fullLead()}, nil)

		require.NoError(t, svc.ScheduleCampaign(ctx, hotCampaign(start)))

		pending := touches.byStatus(models.StatusPending)
		assert.Len(t, pending, 10)
		assert.Equal(t, 5, q.Size(channel.QueueFor(models.ChannelWhatsApp)))
		assert.Equal(t, 5, q.Size(channel.QueueFor(models.ChannelEmail)))

		for _, touch := range pending {
			assert.Equal(t, "camp-1", *touch.CampaignID)
			local := touch.ScheduledAt.In(madrid(t))
			assert.GreaterOrEqual(t, local.Hour(), 9)
			assert.LessOrEqual(t, local.Hour(), 20)
		}
	})

	t.Run("Success - scheduling twice creates nothing new", func(t *testing.T) {
		svc, touches, _, q := setupScheduler(t, map[string]*models.Lead{"lead-1": fullLead()}, nil)

		require.NoError(t, svc.ScheduleCampaign(ctx, hotCampaign(start)))
		require.NoError(t, svc.ScheduleCampaign(ctx, hotCampaign(start)))

		assert.Len(t, touches.byStatus(models.StatusPending), 10)
		assert.Equal(t, 5, q.Size(channel.QueueFor(models.ChannelWhatsApp)))
	})

	t.Run("Success - channels outside the campaign set are skipped", func(t *testing.T) {
		svc, touches, _, _ := setupScheduler(t, map[string]*models.Lead{"lead-1": fullLead()}, nil)
		c := hotCampaign(start)
		c.Channels = models.ChannelSet{models.ChannelEmail}

		require.NoError(t, svc.ScheduleCampaign(ctx, c))

		for _, touch := range touches.byStatus(models.StatusPending) {
			assert.Equal(t, models.ChannelEmail, touch.Channel)
		}
		assert.Len(t, touches.byStatus(models.StatusPending), 5)
	})

	t.Run("Success - lead without email only gets phone channels", func(t *testing.T) {
		lead := fullLead()
		lead.Email = ""
		svc, touches, _, _ := setupScheduler(t, map[string]*models.Lead{"lead-1": lead}, nil)

		require.NoError(t, svc.ScheduleCampaign(ctx, hotCampaign(start)))

		assert.Len(t, touches.byStatus(models.StatusPending), 5)
	})

	t.Run("Success - opted-out lead gets no touches", func(t *testing.T) {
		lead := fullLead()
		lead.OptedOut = true
		svc, touches, _, _ := setupScheduler(t, map[string]*models.Lead{"lead-1": lead}, nil)

		require.NoError(t, svc.ScheduleCampaign(ctx, hotCampaign(start)))

		assert.Empty(t, touches.byStatus(models.StatusPending))
	})

	t.Run("Success - dnc-listed lead gets no touches", func(t *testing.T) {
		svc, touches, _, _ := setupScheduler(t,
			map[string]*models.Lead{"lead-1": fullLead()}, map[string]bool{"lead-1": true})

		require.NoError(t, svc.ScheduleCampaign(ctx, hotCampaign(start)))

		assert.Empty(t, touches.byStatus(models.StatusPending))
	})

	t.Run("Success - high-intent tag switches to the accelerated cadence", func(t *testing.T) {
		lead := fullLead()
		lead.Tags = models.Tags{models.TagSuperHot}
		svc, touches, _, _ := setupScheduler(t, map[string]*models.Lead{"lead-1": lead}, nil)
		c := hotCampaign(start)
		c.Channels = models.ChannelSet{models.ChannelWhatsApp, models.ChannelEmail, models.ChannelSMS}

		require.NoError(t, svc.ScheduleCampaign(ctx, c))

		pending := touches.byStatus(models.StatusPending)
		assert.Len(t, pending, 3)
		for _, touch := range pending {
			assert.LessOrEqual(t, touch.DayOffset, 1)
		}
	})

	t.Run("Error - campaign without start date", func(t *testing.T) {
		svc, _, _, _ := setupScheduler(t, nil, nil)
		c := hotCampaign(start)
		c.StartDate = nil

		err := svc.ScheduleCampaign(ctx, c)
		assert.True(t, domain.IsValidation(err))
	})
}

func TestService_PauseAndResume(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, madrid(t))
	lead := &models.Lead{ID: "lead-1", Segment: models.SegmentHot,
		Phone: "+34612345678", Email: "marta@example.com"}

	svc, touches, _, q := setupScheduler(t, map[string]*models.Lead{"lead-1": lead}, nil)
	require.NoError(t, svc.ScheduleCampaign(ctx, hotCampaign(start)))

	t.Run("Success - pause withdraws jobs but keeps touches pending", func(t *testing.T) {
		require.NoError(t, svc.PauseCampaign(ctx, "camp-1"))

		assert.Zero(t, q.Size(channel.QueueFor(models.ChannelWhatsApp)))
		assert.Zero(t, q.Size(channel.QueueFor(models.ChannelEmail)))
		assert.Len(t, touches.byStatus(models.StatusPending), 10)
	})

	t.Run("Success - rescheduling after pause requeues without duplicating", func(t *testing.T) {
		require.NoError(t, svc.ScheduleCampaign(ctx, hotCampaign(start)))

		assert.Len(t, touches.byStatus(models.StatusPending), 10)
		assert.Equal(t, 5, q.Size(channel.QueueFor(models.ChannelWhatsApp)))
		assert.Equal(t, 5, q.Size(channel.QueueFor(models.ChannelEmail)))
	})
}

func TestService_CancelCampaign(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, madrid(t))
	lead := &models.Lead{ID: "lead-1", Segment: models.SegmentHot,
		Phone: "+34612345678", Email: "marta@example.com"}

	svc, touches, events, q := setupScheduler(t, map[string]*models.Lead{"lead-1": lead}, nil)
	require.NoError(t, svc.ScheduleCampaign(ctx, hotCampaign(start)))

	require.NoError(t, svc.CancelCampaign(ctx, "camp-1"))

	assert.Zero(t, q.Size(channel.QueueFor(models.ChannelWhatsApp)))
	assert.Empty(t, touches.byStatus(models.StatusPending))
	assert.Len(t, touches.byStatus(models.StatusFailed), 10)
	assert.Len(t, events.events, 10)
	assert.Equal(t, "campaign_canceled", events.events[0].Payload["reason"])
}

func TestService_PromoteSuperHot(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, madrid(t))
	lead := &models.Lead{ID: "lead-1", Segment: models.SegmentHot,
		Phone: "+34612345678", Email: "marta@example.com"}

	svc, touches, _, _ := setupScheduler(t, map[string]*models.Lead{"lead-1": lead}, nil)
	require.NoError(t, svc.ScheduleCampaign(ctx, hotCampaign(start)))

	require.NoError(t, svc.PromoteSuperHot(ctx, lead))

	// The ten campaign touches failed, three accelerated ones replace them.
	assert.Len(t, touches.byStatus(models.StatusFailed), 10)
	pending := touches.byStatus(models.StatusPending)
	assert.Len(t, pending, 3)
	for _, touch := range pending {
		assert.Nil(t, touch.CampaignID)
	}
}

func TestService_ScheduleNurture(t *testing.T) {
	ctx := context.Background()
	lead := &models.Lead{ID: "lead-1", Segment: models.SegmentCold,
		Phone: "+34612345678", Email: "marta@example.com"}
	svc, touches, _, _ := setupScheduler(t, map[string]*models.Lead{"lead-1": lead}, nil)

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, madrid(t))
	n, err := svc.ScheduleNurture(ctx, lead, base)

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, touch := range touches.byStatus(models.StatusPending) {
		assert.GreaterOrEqual(t, touch.DayOffset, 45)
		assert.True(t, touch.ScheduledAt.After(base.AddDate(0, 0, 44)))
	}

	// Anchoring again at the same base is a no-op.
	n, err = svc.ScheduleNurture(ctx, lead, base)
	require.NoError(t, err)
	assert.Zero(t, n)
}
