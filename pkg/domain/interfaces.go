package domain

import (
	"context"
	"time"

	"github.com/dealerreach/backend/pkg/models"
)

// LeadRepository defines data access operations for leads.
type LeadRepository interface {
	GetByID(ctx context.Context, id string) (*models.Lead, error)
	// FindByPhone matches the E.164 number against primary and
	// secondary phones of non-opted-out leads.
	FindByPhone(ctx context.Context, e164 string) (*models.Lead, error)
	FindByEmail(ctx context.Context, email string) (*models.Lead, error)
	ListBySegments(ctx context.Context, segments []models.Segment) ([]*models.Lead, error)
	Save(ctx context.Context, lead *models.Lead) error
}

// CampaignRepository defines data access operations for campaigns.
type CampaignRepository interface {
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
	Create(ctx context.Context, campaign *models.Campaign) error
	Update(ctx context.Context, campaign *models.Campaign) error
	UpdateStatus(ctx context.Context, id string, status models.CampaignStatus) error
	ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error)
}

// TouchRepository defines data access operations for touches.
type TouchRepository interface {
	Create(ctx context.Context, touch *models.Touch) error
	GetByID(ctx context.Context, id string) (*models.Touch, error)
	// GetByProviderRef resolves a provider message reference captured at
	// send time back to its touch.
	GetByProviderRef(ctx context.Context, providerRef string) (*models.Touch, error)
	// StepExists reports whether a touch already exists for the same
	// logical cadence slot (lead, campaign, channel, template).
	StepExists(ctx context.Context, leadID string, campaignID *string, channel models.Channel, templateID string) (bool, error)
	// UpdateStatusFrom atomically moves a touch from one status to
	// another. It reports false when the touch was no longer in the
	// expected status, which is the concurrency guard for workers and
	// the tracker.
	UpdateStatusFrom(ctx context.Context, id string, from, to models.TouchStatus) (bool, error)
	// MarkSent transitions pending -> sent recording send time,
	// content, variant and the provider reference.
	MarkSent(ctx context.Context, id string, sentAt time.Time, content, variant, providerRef string) (bool, error)
	PendingByCampaign(ctx context.Context, campaignID string) ([]*models.Touch, error)
	PendingByLead(ctx context.Context, leadID string) ([]*models.Touch, error)
	// LatestOutstanding returns the most recent touch for the lead and
	// channel whose status is in sent..clicked, or nil.
	LatestOutstanding(ctx context.Context, leadID string, channel models.Channel) (*models.Touch, error)
	// CountSentSince counts sent touches for the lead since the given
	// instant. A nil channel counts across all channels.
	CountSentSince(ctx context.Context, leadID string, channel *models.Channel, since time.Time) (int, error)
	LastSentAt(ctx context.Context, leadID string, channel models.Channel) (*time.Time, error)
	ListByLead(ctx context.Context, leadID string) ([]*models.Touch, error)
	StatusCounts(ctx context.Context, campaignID string) (map[models.TouchStatus]int, error)
}

// TouchEventRepository is the append-only delivery event log.
type TouchEventRepository interface {
	Append(ctx context.Context, event *models.TouchEvent) error
	ListByTouch(ctx context.Context, touchID string) ([]*models.TouchEvent, error)
}

// ConversationRepository defines data access for conversation threads.
type ConversationRepository interface {
	// FindOpen returns the newest conversation for the lead and channel
	// in ai or human status, or nil.
	FindOpen(ctx context.Context, leadID string, channel models.Channel) (*models.Conversation, error)
	Create(ctx context.Context, conv *models.Conversation) error
	AppendMessage(ctx context.Context, msg *models.ConversationMessage) error
	UpdateStatus(ctx context.Context, id string, status models.ConversationStatus) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
}

// DNCRepository defines data access for the do-not-contact list.
type DNCRepository interface {
	Exists(ctx context.Context, leadID string) (bool, error)
	Add(ctx context.Context, entry *models.DNCEntry) error
	AddBatch(ctx context.Context, entries []*models.DNCEntry) (int, error)
}

// SettingsRepository stores runtime configuration overrides.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// SeenCache deduplicates webhook deliveries at the ingestion boundary.
// The redis implementation can be swapped for any shared key-value
// store without touching core logic.
type SeenCache interface {
	// MarkSeen records the id and reports whether it was already seen.
	MarkSeen(ctx context.Context, id string) (bool, error)
}

// HandoffNotifier is invoked when a conversation escalates to a human.
type HandoffNotifier interface {
	NotifyHandoff(ctx context.Context, lead *models.Lead, conv *models.Conversation) error
}
