package compliance

import (
	"context"
	"time"

	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/models"
	"github.com/dealerreach/backend/pkg/settings"
)

// CapsConfig limits outbound frequency per lead. A value of zero or
// less disables that cap.
type CapsConfig struct {
	PerChannelPerWeek          int `json:"per_channel_per_week"`
	TotalPerDay                int `json:"total_per_day"`
	TotalPerWeek               int `json:"total_per_week"`
	MinHoursBetweenSameChannel int `json:"min_hours_between_same_channel"`
}

// Cap block reasons.
const (
	ReasonChannelWeeklyCap = "channel_weekly_cap"
	ReasonDailyCap         = "daily_cap"
	ReasonWeeklyCap        = "weekly_cap"
	ReasonMinChannelGap    = "min_channel_gap"
)

// Decision is the outcome of a compliance or preflight gate. Blocks
// are results, not errors.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow is the positive decision.
func Allow() Decision { return Decision{Allowed: true} }

// Block is a negative decision with a reason.
func Block(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// CapChecker evaluates frequency caps against counts of already-sent
// touches. Checks run at send time, not schedule time: scheduling
// happens days ahead and counts would be meaningless then. Rolling
// windows are half-open, [now-window, now).
type CapChecker struct {
	cfg     CapsConfig
	touches domain.TouchRepository
}

// NewCapChecker creates a cap checker.
func NewCapChecker(cfg CapsConfig, touches domain.TouchRepository) *CapChecker {
	return &CapChecker{cfg: cfg, touches: touches}
}

// ResolveCapsConfig layers a runtime override from the settings store
// (key "compliance.caps") over the compiled default.
func ResolveCapsConfig(ctx context.Context, resolver *settings.Resolver, def CapsConfig) CapsConfig {
	if resolver == nil {
		return def
	}
	cfg := def
	resolver.ResolveJSON(ctx, "compliance.caps", &cfg)
	return cfg
}

// Check evaluates every cap for the lead and channel at the given
// instant and returns the first block, in fixed order: same-channel
// gap, channel weekly cap, daily total, weekly total.
func (c *CapChecker) Check(ctx context.Context, leadID string, channel models.Channel, now time.Time) (Decision, error) {
	if c.cfg.MinHoursBetweenSameChannel > 0 {
		last, err := c.touches.LastSentAt(ctx, leadID, channel)
		if err != nil {
			return Decision{}, err
		}
		if last != nil && now.Sub(*last) < time.Duration(c.cfg.MinHoursBetweenSameChannel)*time.Hour {
			return Block(ReasonMinChannelGap), nil
		}
	}

	if c.cfg.PerChannelPerWeek > 0 {
		count, err := c.touches.CountSentSince(ctx, leadID, &channel, now.AddDate(0, 0, -7))
		if err != nil {
			return Decision{}, err
		}
		if count >= c.cfg.PerChannelPerWeek {
			return Block(ReasonChannelWeeklyCap), nil
		}
	}

	if c.cfg.TotalPerDay > 0 {
		count, err := c.touches.CountSentSince(ctx, leadID, nil, now.Add(-24*time.Hour))
		if err != nil {
			return Decision{}, err
		}
		if count >= c.cfg.TotalPerDay {
			return Block(ReasonDailyCap), nil
		}
	}

	if c.cfg.TotalPerWeek > 0 {
		count, err := c.touches.CountSentSince(ctx, leadID, nil, now.AddDate(0, 0, -7))
		if err != nil {
			return Decision{}, err
		}
		if count >= c.cfg.TotalPerWeek {
			return Block(ReasonWeeklyCap), nil
		}
	}

	return Allow(), nil
}
