package cadence

import (
	"context"
	"sort"

	"github.com/dealerreach/backend/pkg/models"
	"github.com/dealerreach/backend/pkg/settings"
)

// Step is one scheduled touch in a cadence: send on day DayOffset at
// Hour o'clock (legal-window timezone) over Channel using TemplateID.
type Step struct {
	DayOffset  int            `json:"day_offset"`
	Hour       int            `json:"hour"`
	Channel    models.Channel `json:"channel"`
	TemplateID string         `json:"template_id"`
}

// Cadence is an ordered list of steps, ascending by day offset with
// ties kept in declaration order.
type Cadence []Step

// Cadence names beyond the four lead segments.
const (
	NameSuperHot = "SUPER_HOT"
	NameNurture  = "NURTURE"
)

// defaults are the compiled-in cadences, overridable at runtime via
// the settings store under "cadence.<NAME>".
var defaults = map[string]Cadence{
	string(models.SegmentHot): {
		{DayOffset: 0, Hour: 9, Channel: models.ChannelWhatsApp, TemplateID: "hot_day0_wa"},
		{DayOffset: 0, Hour: 10, Channel: models.ChannelEmail, TemplateID: "hot_day0_email"},
		{DayOffset: 2, Hour: 9, Channel: models.ChannelWhatsApp, TemplateID: "hot_day2_wa"},
		{DayOffset: 3, Hour: 10, Channel: models.ChannelEmail, TemplateID: "hot_day3_email"},
		{DayOffset: 5, Hour: 11, Channel: models.ChannelWhatsApp, TemplateID: "hot_day5_wa"},
		{DayOffset: 7, Hour: 10, Channel: models.ChannelEmail, TemplateID: "hot_day7_email"},
		{DayOffset: 10, Hour: 9, Channel: models.ChannelWhatsApp, TemplateID: "hot_day10_wa"},
		{DayOffset: 14, Hour: 10, Channel: models.ChannelEmail, TemplateID: "hot_day14_email"},
		{DayOffset: 21, Hour: 10, Channel: models.ChannelWhatsApp, TemplateID: "hot_day21_wa"},
		{DayOffset: 30, Hour: 10, Channel: models.ChannelEmail, TemplateID: "hot_day30_email"},
	},
	string(models.SegmentWarm): {
		{DayOffset: 0, Hour: 10, Channel: models.ChannelWhatsApp, TemplateID: "warm_day0_wa"},
		{DayOffset: 3, Hour: 10, Channel: models.ChannelEmail, TemplateID: "warm_day3_email"},
		{DayOffset: 7, Hour: 11, Channel: models.ChannelSMS, TemplateID: "warm_day7_sms"},
		{DayOffset: 12, Hour: 10, Channel: models.ChannelWhatsApp, TemplateID: "warm_day12_wa"},
		{DayOffset: 20, Hour: 10, Channel: models.ChannelEmail, TemplateID: "warm_day20_email"},
		{DayOffset: 30, Hour: 11, Channel: models.ChannelWhatsApp, TemplateID: "warm_day30_wa"},
	},
	string(models.SegmentCold): {
		{DayOffset: 0, Hour: 11, Channel: models.ChannelEmail, TemplateID: "cold_day0_email"},
		{DayOffset: 7, Hour: 10, Channel: models.ChannelWhatsApp, TemplateID: "cold_day7_wa"},
		{DayOffset: 18, Hour: 11, Channel: models.ChannelEmail, TemplateID: "cold_day18_email"},
		{DayOffset: 30, Hour: 10, Channel: models.ChannelSMS, TemplateID: "cold_day30_sms"},
	},
	string(models.SegmentFrozen): {
		{DayOffset: 0, Hour: 11, Channel: models.ChannelEmail, TemplateID: "frozen_day0_email"},
		{DayOffset: 45, Hour: 11, Channel: models.ChannelEmail, TemplateID: "frozen_day45_email"},
	},
	NameSuperHot: {
		{DayOffset: 0, Hour: 9, Channel: models.ChannelWhatsApp, TemplateID: "superhot_day0_wa"},
		{DayOffset: 0, Hour: 17, Channel: models.ChannelSMS, TemplateID: "superhot_day0_sms"},
		{DayOffset: 1, Hour: 10, Channel: models.ChannelWhatsApp, TemplateID: "superhot_day1_wa"},
	},
	NameNurture: {
		{DayOffset: 45, Hour: 10, Channel: models.ChannelEmail, TemplateID: "nurture_day45_email"},
		{DayOffset: 75, Hour: 10, Channel: models.ChannelWhatsApp, TemplateID: "nurture_day75_wa"},
		{DayOffset: 105, Hour: 11, Channel: models.ChannelEmail, TemplateID: "nurture_day105_email"},
	},
}

// Catalog resolves cadences per segment, layering runtime overrides
// over compiled defaults. Lookups never fail: an unknown name or a
// broken override falls back.
type Catalog struct {
	resolver *settings.Resolver
}

// NewCatalog creates a catalog. resolver may be nil, in which case the
// compiled defaults always apply.
func NewCatalog(resolver *settings.Resolver) *Catalog {
	return &Catalog{resolver: resolver}
}

// Get returns the cadence for the given name (a segment or SUPER_HOT /
// NURTURE), sorted ascending by day offset with declaration order
// preserved for ties. Unknown names yield an empty cadence.
func (c *Catalog) Get(ctx context.Context, name string) Cadence {
	steps := defaults[name]

	if c.resolver != nil {
		var override Cadence
		if c.resolver.ResolveJSON(ctx, "cadence."+name, &override) && len(override) > 0 {
			steps = override
		}
	}

	out := make(Cadence, len(steps))
	copy(out, steps)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DayOffset < out[j].DayOffset
	})
	return out
}

// ForLead returns the cadence a lead should run: the SUPER_HOT cadence
// when the lead carries the high-intent tag, otherwise the cadence of
// its segment.
func (c *Catalog) ForLead(ctx context.Context, lead *models.Lead) Cadence {
	if lead.Tags.Has(models.TagSuperHot) {
		return c.Get(ctx, NameSuperHot)
	}
	return c.Get(ctx, string(lead.Segment))
}
