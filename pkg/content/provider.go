package content

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/dealerreach/backend/pkg/models"
)

// Source tells where a message body came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// Message is ready-to-send content for one touch. Subject and HTML are
// only set for email.
type Message struct {
	Subject string
	Text    string
	HTML    string
	Variant string
	Source  Source
}

// Provider produces message content for a lead, channel and template.
// Implementations must always return usable content; generation
// failures are absorbed internally by falling back to templates, so a
// dispatch worker can never fail on this step.
type Provider interface {
	Generate(ctx context.Context, lead *models.Lead, channel models.Channel, templateID string) *Message
}

// variantFor deterministically assigns an A/B variant per lead so a
// lead always sees the same variant of a template.
func variantFor(leadID string, variants int) int {
	if variants <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(leadID))
	return int(h.Sum32()) % variants
}

// render substitutes lead placeholders into a template body.
func render(template string, lead *models.Lead) string {
	name := lead.FirstName
	if name == "" {
		name = "there"
	}
	out := template
	out = strings.ReplaceAll(out, "{first_name}", name)
	out = strings.ReplaceAll(out, "{full_name}", lead.FullName())
	return out
}
