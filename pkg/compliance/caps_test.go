package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTouches implements only the queries the cap checker uses.
type fakeTouches struct {
	domain.TouchRepository
	channelCounts map[models.Channel]int
	totalCount    int
	lastSent      map[models.Channel]time.Time
}

func (f *fakeTouches) CountSentSince(ctx context.Context, leadID string, channel *models.Channel, since time.Time) (int, error) {
	if channel != nil {
		return f.channelCounts[*channel], nil
	}
	return f.totalCount, nil
}

func (f *fakeTouches) LastSentAt(ctx context.Context, leadID string, channel models.Channel) (*time.Time, error) {
	if at, ok := f.lastSent[channel]; ok {
		return &at, nil
	}
	return nil, nil
}

func TestCapCheck(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	cfg := CapsConfig{
		PerChannelPerWeek:          3,
		TotalPerDay:                2,
		TotalPerWeek:               5,
		MinHoursBetweenSameChannel: 24,
	}

	t.Run("Success - quiet lead is allowed", func(t *testing.T) {
		checker := NewCapChecker(cfg, &fakeTouches{})
		d, err := checker.Check(ctx, "lead-1", models.ChannelEmail, now)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("Success - min gap on same channel blocks", func(t *testing.T) {
		checker := NewCapChecker(cfg, &fakeTouches{
			lastSent: map[models.Channel]time.Time{models.ChannelSMS: now.Add(-3 * time.Hour)},
		})
		d, err := checker.Check(ctx, "lead-1", models.ChannelSMS, now)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonMinChannelGap, d.Reason)
	})

	t.Run("Success - gap elapsed allows again", func(t *testing.T) {
		checker := NewCapChecker(cfg, &fakeTouches{
			lastSent: map[models.Channel]time.Time{models.ChannelSMS: now.Add(-25 * time.Hour)},
		})
		d, err := checker.Check(ctx, "lead-1", models.ChannelSMS, now)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("Success - channel weekly cap blocks", func(t *testing.T) {
		checker := NewCapChecker(cfg, &fakeTouches{
			channelCounts: map[models.Channel]int{models.ChannelEmail: 3},
		})
		d, err := checker.Check(ctx, "lead-1", models.ChannelEmail, now)
		require.NoError(t, err)
		assert.Equal(t, ReasonChannelWeeklyCap, d.Reason)
	})

	t.Run("Success - daily total cap blocks", func(t *testing.T) {
		checker := NewCapChecker(CapsConfig{TotalPerDay: 2}, &fakeTouches{totalCount: 2})
		d, err := checker.Check(ctx, "lead-1", models.ChannelEmail, now)
		require.NoError(t, err)
		assert.Equal(t, ReasonDailyCap, d.Reason)
	})

	t.Run("Success - weekly total cap blocks", func(t *testing.T) {
		checker := NewCapChecker(CapsConfig{TotalPerWeek: 5}, &fakeTouches{totalCount: 5})
		d, err := checker.Check(ctx, "lead-1", models.ChannelEmail, now)
		require.NoError(t, err)
		assert.Equal(t, ReasonWeeklyCap, d.Reason)
	})

	t.Run("Success - zero config disables caps", func(t *testing.T) {
		checker := NewCapChecker(CapsConfig{}, &fakeTouches{totalCount: 100})
		d, err := checker.Check(ctx, "lead-1", models.ChannelEmail, now)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})
}
