package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/dealerreach/backend/pkg/settings"
)

// WindowConfig describes the legal send window in local wall-clock
// time. Applies to chat and SMS; email carries no window restriction.
type WindowConfig struct {
	StartHour   int    `json:"start_hour"`
	StartMinute int    `json:"start_minute"`
	EndHour     int    `json:"end_hour"`
	EndMinute   int    `json:"end_minute"`
	Timezone    string `json:"timezone"`
}

// Window evaluates instants against the legal send window. All math is
// done on zone-aware wall-clock time, so DST transitions in the
// configured zone are handled by the time package, not a fixed offset.
type Window struct {
	startMinutes int
	endMinutes   int
	loc          *time.Location
}

// NewWindow builds a window from config.
func NewWindow(cfg WindowConfig) (*Window, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load send window timezone %q: %w", cfg.Timezone, err)
	}

	start := cfg.StartHour*60 + cfg.StartMinute
	end := cfg.EndHour*60 + cfg.EndMinute
	if start > end {
		return nil, fmt.Errorf("send window start %02d:%02d is after end %02d:%02d",
			cfg.StartHour, cfg.StartMinute, cfg.EndHour, cfg.EndMinute)
	}

	return &Window{startMinutes: start, endMinutes: end, loc: loc}, nil
}

// ResolveWindowConfig layers a runtime override from the settings
// store (key "compliance.window") over the compiled default.
func ResolveWindowConfig(ctx context.Context, resolver *settings.Resolver, def WindowConfig) WindowConfig {
	if resolver == nil {
		return def
	}
	cfg := def
	if resolver.ResolveJSON(ctx, "compliance.window", &cfg) && cfg.Timezone == "" {
		cfg.Timezone = def.Timezone
	}
	return cfg
}

// Contains reports whether the instant falls inside the window,
// inclusive on both ends.
func (w *Window) Contains(t time.Time) bool {
	local := t.In(w.loc)
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= w.startMinutes && minutes <= w.endMinutes
}

// AdjustToWindow rolls an instant forward to the nearest legal send
// time: before the window moves to the window start the same day,
// after the window moves to the window start the next day. Instants
// already inside the window are returned unchanged, which makes the
// adjustment idempotent. Adjusted values have seconds truncated.
func (w *Window) AdjustToWindow(t time.Time) time.Time {
	local := t.In(w.loc)
	minutes := local.Hour()*60 + local.Minute()

	if minutes >= w.startMinutes && minutes <= w.endMinutes {
		return t
	}

	day := local
	if minutes > w.endMinutes {
		day = day.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		w.startMinutes/60, w.startMinutes%60, 0, 0, w.loc)
}

// NextOpening returns how long until the window next opens, zero when
// the instant is already inside it.
func (w *Window) NextOpening(t time.Time) time.Duration {
	adjusted := w.AdjustToWindow(t)
	if !adjusted.After(t) {
		return 0
	}
	return adjusted.Sub(t)
}

// Location exposes the window's timezone for schedule computation.
func (w *Window) Location() *time.Location {
	return w.loc
}
