package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Segment classifies a lead and drives cadence selection.
type Segment string

const (
	SegmentHot    Segment = "HOT"
	SegmentWarm   Segment = "WARM"
	SegmentCold   Segment = "COLD"
	SegmentFrozen Segment = "FROZEN"
)

// Channel identifies an outbound messaging channel.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
)

// Channels lists every supported channel.
func Channels() []Channel {
	return []Channel{ChannelWhatsApp, ChannelEmail, ChannelSMS}
}

// TagSuperHot marks a lead as high intent and switches it to the
// SUPER_HOT cadence.
const TagSuperHot = "high-intent"

// Lead is a dealership contact. Leads are never deleted, only updated.
type Lead struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Segment        Segment   `gorm:"index" json:"segment"`
	Language       string    `json:"language"`
	Phone          string    `gorm:"index" json:"phone,omitempty"`
	SecondaryPhone string    `gorm:"index" json:"secondary_phone,omitempty"`
	Email          string    `gorm:"index" json:"email,omitempty"`
	OptedOut       bool      `gorm:"index" json:"opted_out"`
	Score          int       `json:"score"`
	Tags           Tags      `gorm:"type:text;serializer:json" json:"tags,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Tags is a free-form tag set stored as JSON.
type Tags []string

// Has reports whether the tag is present.
func (t Tags) Has(tag string) bool {
	for _, v := range t {
		if v == tag {
			return true
		}
	}
	return false
}

// BeforeCreate assigns a UUID if none was provided.
func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// ReachableOn reports whether the lead has the contact field the
// channel needs.
func (l *Lead) ReachableOn(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return l.Email != ""
	case ChannelWhatsApp, ChannelSMS:
		return l.Phone != "" || l.SecondaryPhone != ""
	}
	return false
}

// PhoneForSend returns the primary phone, falling back to the
// secondary one.
func (l *Lead) PhoneForSend() string {
	if l.Phone != "" {
		return l.Phone
	}
	return l.SecondaryPhone
}

// FullName joins first and last name.
func (l *Lead) FullName() string {
	if l.FirstName == "" {
		return l.LastName
	}
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}

// CampaignStatus is the campaign lifecycle state.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// Campaign targets one or more segments over one or more channels.
type Campaign struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `json:"name"`
	Status    CampaignStatus `gorm:"index" json:"status"`
	Segments  Segments       `gorm:"type:text;serializer:json" json:"segments"`
	Channels  ChannelSet     `gorm:"type:text;serializer:json" json:"channels"`
	StartDate *time.Time     `json:"start_date,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Segments is a set of target segments stored as JSON.
type Segments []Segment

// Has reports whether the segment is targeted.
func (s Segments) Has(seg Segment) bool {
	for _, v := range s {
		if v == seg {
			return true
		}
	}
	return false
}

// ChannelSet is a set of enabled channels stored as JSON.
type ChannelSet []Channel

// Has reports whether the channel is enabled.
func (c ChannelSet) Has(ch Channel) bool {
	for _, v := range c {
		if v == ch {
			return true
		}
	}
	return false
}

// BeforeCreate assigns a UUID if none was provided.
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Touch is one scheduled or sent message instance for a lead on one
// channel. Touches are never deleted; cancellation is a transition to
// StatusFailed.
type Touch struct {
	ID          string      `gorm:"type:uuid;primaryKey" json:"id"`
	LeadID      string      `gorm:"index" json:"lead_id"`
	CampaignID  *string     `gorm:"index" json:"campaign_id,omitempty"`
	Channel     Channel     `gorm:"index" json:"channel"`
	TemplateID  string      `json:"template_id"`
	DayOffset   int         `json:"day_offset"`
	Status      TouchStatus `gorm:"index" json:"status"`
	ScheduledAt time.Time   `gorm:"index" json:"scheduled_at"`
	SentAt      *time.Time  `json:"sent_at,omitempty"`
	Content     string      `json:"content,omitempty"`
	Variant     string      `json:"variant,omitempty"`
	ProviderRef string      `gorm:"index" json:"provider_ref,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// BeforeCreate assigns a UUID if none was provided.
func (t *Touch) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// TouchEvent is an immutable, append-only delivery lifecycle record.
// The event log is the ground truth; Touch.Status is a derived cache.
type TouchEvent struct {
	ID        string            `gorm:"type:uuid;primaryKey" json:"id"`
	TouchID   string            `gorm:"index" json:"touch_id"`
	EventType string            `gorm:"index" json:"event_type"`
	Payload   map[string]string `gorm:"type:text;serializer:json" json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// BeforeCreate assigns a UUID if none was provided.
func (e *TouchEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// ConversationStatus tracks who owns a conversation.
type ConversationStatus string

const (
	ConversationAI     ConversationStatus = "ai"
	ConversationHuman  ConversationStatus = "human"
	ConversationClosed ConversationStatus = "closed"
)

// Conversation is a message thread with a lead on one channel. At most
// one open conversation exists per lead and channel.
type Conversation struct {
	ID        string                `gorm:"type:uuid;primaryKey" json:"id"`
	LeadID    string                `gorm:"index" json:"lead_id"`
	Channel   Channel               `gorm:"index" json:"channel"`
	Status    ConversationStatus    `gorm:"index" json:"status"`
	Messages  []ConversationMessage `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// BeforeCreate assigns a UUID if none was provided.
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ConversationMessage is one message inside a conversation thread.
type ConversationMessage struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID string    `gorm:"index" json:"conversation_id"`
	Role           string    `json:"role"` // "lead", "ai" or "agent"
	Text           string    `json:"text"`
	ExternalID     string    `gorm:"index" json:"external_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID if none was provided.
func (m *ConversationMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// DNCEntry means "never contact this lead", independent of the opt-out
// flag. Both must be checked.
type DNCEntry struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	LeadID    string    `gorm:"uniqueIndex" json:"lead_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID if none was provided.
func (d *DNCEntry) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// Setting is a runtime configuration override keyed by name.
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// All returns every entity for migrations.
func All() []any {
	return []any{
		&Lead{},
		&Campaign{},
		&Touch{},
		&TouchEvent{},
		&Conversation{},
		&ConversationMessage{},
		&DNCEntry{},
		&Setting{},
	}
}
