package dnc

import (
	"context"

	"github.com/dealerreach/backend/pkg/compliance"
	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/models"
)

// Preflight block reasons, in check order.
const (
	ReasonLeadNotFound = "lead_not_found"
	ReasonOptedOut     = "opted_out"
	ReasonNoEmail      = "no_email"
	ReasonNoPhone      = "no_phone"
	ReasonDNCListed    = "dnc_listed"
)

// Registry is the authoritative allow/deny check before any outbound
// contact. It runs twice per touch: once at campaign expansion so no
// dead touches are created, and again immediately before the provider
// send, since a lead can opt out in the days between.
type Registry struct {
	leads domain.LeadRepository
	dnc   domain.DNCRepository
}

// NewRegistry creates a DNC registry.
func NewRegistry(leads domain.LeadRepository, dnc domain.DNCRepository) *Registry {
	return &Registry{leads: leads, dnc: dnc}
}

// Preflight decides whether the lead may be contacted on the channel.
// Blocks are results, never errors; the error return is reserved for
// infrastructure failures.
func (r *Registry) Preflight(ctx context.Context, leadID string, channel models.Channel) (compliance.Decision, error) {
	lead, err := r.leads.GetByID(ctx, leadID)
	if err != nil {
		if domain.IsNotFound(err) {
			return compliance.Block(ReasonLeadNotFound), nil
		}
		return compliance.Decision{}, err
	}
	if lead == nil {
		return compliance.Block(ReasonLeadNotFound), nil
	}

	return r.PreflightLead(ctx, lead, channel)
}

// PreflightLead is Preflight for an already-loaded lead.
func (r *Registry) PreflightLead(ctx context.Context, lead *models.Lead, channel models.Channel) (compliance.Decision, error) {
	if lead.OptedOut {
		return compliance.Block(ReasonOptedOut), nil
	}

	if !lead.ReachableOn(channel) {
		if channel == models.ChannelEmail {
			return compliance.Block(ReasonNoEmail), nil
		}
		return compliance.Block(ReasonNoPhone), nil
	}

	listed, err := r.dnc.Exists(ctx, lead.ID)
	if err != nil {
		return compliance.Decision{}, err
	}
	if listed {
		return compliance.Block(ReasonDNCListed), nil
	}

	return compliance.Allow(), nil
}
