package channel

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/dealerreach/backend/config"
	"github.com/dealerreach/backend/pkg/content"
	"github.com/dealerreach/backend/pkg/models"
)

// Transport sends one rendered message to a lead over a provider API.
type Transport interface {
	Send(ctx context.Context, lead *models.Lead, msg *content.Message) (providerRef string, err error)
}

// RateLimit is a token-bucket limit for outbound sends on a channel.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

// Limiter builds the shared rate limiter for the channel's workers.
func (r RateLimit) Limiter() *rate.Limiter {
	if r.PerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := r.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(r.PerSecond), burst)
}

// Capability describes how the engine uses one channel: its queue, its
// transport, its send limits and which compliance rules apply to it.
type Capability struct {
	Channel models.Channel
	Queue   string
	// Transport is nil until wired at startup.
	Transport Transport
	RateLimit RateLimit
	Workers   int
	// LegalWindowApplies is false for email, which may go out at any
	// hour.
	LegalWindowApplies bool
}

// QueueFor names the dispatch queue of a channel.
func QueueFor(ch models.Channel) string {
	return "dispatch:" + string(ch)
}

// Table maps channels to their capabilities.
type Table map[models.Channel]*Capability

// NewTable builds the capability table from configuration. Transports
// are attached separately so the table can exist in processes that
// never send.
func NewTable(cfg *config.Config) Table {
	return Table{
		models.ChannelWhatsApp: {
			Channel:            models.ChannelWhatsApp,
			Queue:              QueueFor(models.ChannelWhatsApp),
			RateLimit:          RateLimit{PerSecond: cfg.ChatRatePerSecond, Burst: cfg.ChatRateBurst},
			Workers:            cfg.ChatWorkers,
			LegalWindowApplies: true,
		},
		models.ChannelEmail: {
			Channel:            models.ChannelEmail,
			Queue:              QueueFor(models.ChannelEmail),
			RateLimit:          RateLimit{PerSecond: cfg.EmailRatePerSecond, Burst: cfg.EmailRateBurst},
			Workers:            cfg.EmailWorkers,
			LegalWindowApplies: false,
		},
		models.ChannelSMS: {
			Channel:            models.ChannelSMS,
			Queue:              QueueFor(models.ChannelSMS),
			RateLimit:          RateLimit{PerSecond: cfg.SMSRatePerSecond, Burst: cfg.SMSRateBurst},
			Workers:            cfg.SMSWorkers,
			LegalWindowApplies: true,
		},
	}
}

// Attach wires a transport to a channel. Missing channels are ignored.
func (t Table) Attach(ch models.Channel, tr Transport) {
	if cap, ok := t[ch]; ok {
		cap.Transport = tr
	}
}

// Get returns the capability for a channel.
func (t Table) Get(ch models.Channel) (*Capability, bool) {
	cap, ok := t[ch]
	return cap, ok
}
