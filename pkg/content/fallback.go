package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/dealerreach/backend/pkg/models"
)

// variant is one A/B alternative of a template.
type variant struct {
	name    string
	subject string
	text    string
}

// fallbackTemplates keys are cadence template ids. Templates the map
// does not know get a generic re-engagement body, so the provider can
// honor its never-fail contract even for runtime cadence overrides.
var fallbackTemplates = map[string][]variant{
	"hot_day0_wa": {
		{name: "A", text: "Hi {first_name}, thanks for your interest in our vehicles. Is there a model you'd like to know more about?"},
		{name: "B", text: "Hello {first_name}! We saw you were looking at our stock. Want me to send you a couple of options?"},
	},
	"hot_day0_email": {
		{name: "A", subject: "Your vehicle search", text: "Hi {first_name},\n\nThanks for reaching out about our vehicles. I'd be happy to walk you through current offers and availability.\n\nBest regards"},
		{name: "B", subject: "Still looking for your next car?", text: "Hi {first_name},\n\nWe have a few units that match what you were looking at. Reply and I'll send details.\n\nBest regards"},
	},
	"superhot_day0_wa": {
		{name: "A", text: "Hi {first_name}, great news: the unit you asked about is available right now. Shall I reserve a test drive for you?"},
	},
	"nurture_day45_email": {
		{name: "A", subject: "New arrivals this month", text: "Hi {first_name},\n\nA quick note on new stock that matches your earlier search. No rush, just keeping you posted.\n\nBest regards"},
	},
}

// genericVariants back any template id without a dedicated entry.
var genericVariants = []variant{
	{name: "A", subject: "Checking in", text: "Hi {first_name}, just checking in from the dealership. Reply any time if we can help with your next car."},
	{name: "B", subject: "We're here when you're ready", text: "Hello {first_name}, no pressure at all. If you're still considering a change of car, I'm happy to help."},
}

// FallbackProvider serves compiled template content with per-lead A/B
// variant selection. It is both the standalone provider for installs
// without an AI key and the safety net under the AI provider.
type FallbackProvider struct{}

// NewFallbackProvider creates a template-only provider.
func NewFallbackProvider() *FallbackProvider {
	return &FallbackProvider{}
}

// Generate returns rendered template content. It never fails.
func (p *FallbackProvider) Generate(ctx context.Context, lead *models.Lead, channel models.Channel, templateID string) *Message {
	variants, ok := fallbackTemplates[templateID]
	if !ok || len(variants) == 0 {
		variants = genericVariants
	}

	v := variants[variantFor(lead.ID, len(variants))]
	msg := &Message{
		Text:    render(v.text, lead),
		Variant: v.name,
		Source:  SourceFallback,
	}

	if channel == models.ChannelEmail {
		subject := v.subject
		if subject == "" {
			subject = "A note from your dealership"
		}
		msg.Subject = render(subject, lead)
		msg.HTML = textToHTML(msg.Text)
	}
	return msg
}

// textToHTML wraps plain text paragraphs for the HTML email part.
func textToHTML(text string) string {
	paragraphs := strings.Split(text, "\n\n")
	var b strings.Builder
	for _, p := range paragraphs {
		fmt.Fprintf(&b, "<p>%s</p>", strings.ReplaceAll(p, "\n", "<br>"))
	}
	return b.String()
}
