package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/dealerreach/backend/pkg/logger"
	"github.com/dealerreach/backend/pkg/models"
)

// AIProvider generates personalized copy through OpenAI, using the
// fallback templates both as the prompt's starting point and as the
// response when generation fails. Per the provider contract it never
// surfaces an error to its caller.
type AIProvider struct {
	client   *openai.Client
	model    string
	fallback *FallbackProvider
	log      logger.Logger
}

// NewAIProvider creates an AI-backed provider.
func NewAIProvider(apiKey, model string, log logger.Logger) *AIProvider {
	if log == nil {
		log = logger.Nop()
	}
	return &AIProvider{
		client:   openai.NewClient(apiKey),
		model:    model,
		fallback: NewFallbackProvider(),
		log:      log,
	}
}

// Generate returns AI copy when possible, template copy otherwise.
func (p *AIProvider) Generate(ctx context.Context, lead *models.Lead, channel models.Channel, templateID string) *Message {
	base := p.fallback.Generate(ctx, lead, channel, templateID)

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.systemPrompt(lead, channel)},
			{Role: openai.ChatMessageRoleUser, Content: p.userPrompt(lead, base)},
		},
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		p.log.Warn("ai content generation failed, using template", "template", templateID, "error", err)
		return base
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		p.log.Warn("ai content generation returned empty body, using template", "template", templateID)
		return base
	}

	msg := &Message{
		Subject: base.Subject,
		Text:    strings.TrimSpace(resp.Choices[0].Message.Content),
		Variant: base.Variant,
		Source:  SourceAI,
	}
	if channel == models.ChannelEmail {
		msg.HTML = textToHTML(msg.Text)
	}
	return msg
}

func (p *AIProvider) systemPrompt(lead *models.Lead, channel models.Channel) string {
	lang := "Spanish"
	if tag, err := language.Parse(lead.Language); err == nil {
		lang = display.English.Languages().Name(tag)
	}
	return fmt.Sprintf(
		"You are a friendly car dealership sales assistant. Write a short %s message in %s. "+
			"Be warm and concrete, never pushy, no emojis, no placeholders.",
		channel, lang)
}

func (p *AIProvider) userPrompt(lead *models.Lead, base *Message) string {
	name := lead.FirstName
	if name == "" {
		name = "the customer"
	}
	return fmt.Sprintf(
		"Rewrite this outreach message for %s (lead segment %s), keeping the same intent and a similar length:\n\n%s",
		name, lead.Segment, base.Text)
}
