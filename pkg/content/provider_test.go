package content

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerreach/backend/pkg/models"
)

func TestFallbackProvider(t *testing.T) {
	ctx := context.Background()
	p := NewFallbackProvider()

	t.Run("Success - renders lead name into template", func(t *testing.T) {
		lead := &models.Lead{ID: "lead-1", FirstName: "Marta"}
		msg := p.Generate(ctx, lead, models.ChannelWhatsApp, "hot_day0_wa")

		require.NotNil(t, msg)
		assert.Contains(t, msg.Text, "Marta")
		assert.NotContains(t, msg.Text, "{first_name}")
		assert.Equal(t, SourceFallback, msg.Source)
		assert.Empty(t, msg.Subject)
		assert.Empty(t, msg.HTML)
	})

	t.Run("Success - email gets subject and html body", func(t *testing.T) {
		lead := &models.Lead{ID: "lead-1", FirstName: "Marta"}
		msg := p.Generate(ctx, lead, models.ChannelEmail, "hot_day0_email")

		assert.NotEmpty(t, msg.Subject)
		assert.True(t, strings.HasPrefix(msg.HTML, "<p>"))
		assert.Contains(t, msg.HTML, "Marta")
	})

	t.Run("Success - variant is stable per lead", func(t *testing.T) {
		lead := &models.Lead{ID: "lead-42", FirstName: "Luis"}
		first := p.Generate(ctx, lead, models.ChannelWhatsApp, "hot_day0_wa")
		for i := 0; i < 5; i++ {
			again := p.Generate(ctx, lead, models.ChannelWhatsApp, "hot_day0_wa")
			assert.Equal(t, first.Variant, again.Variant)
			assert.Equal(t, first.Text, again.Text)
		}
	})

	t.Run("Success - unknown template falls back to generic body", func(t *testing.T) {
		lead := &models.Lead{ID: "lead-1", FirstName: "Marta"}
		msg := p.Generate(ctx, lead, models.ChannelSMS, "custom_override_step")

		require.NotNil(t, msg)
		assert.NotEmpty(t, msg.Text)
		assert.Equal(t, SourceFallback, msg.Source)
	})

	t.Run("Success - missing first name renders a neutral greeting", func(t *testing.T) {
		lead := &models.Lead{ID: "lead-1"}
		msg := p.Generate(ctx, lead, models.ChannelWhatsApp, "hot_day0_wa")

		assert.Contains(t, msg.Text, "there")
		assert.NotContains(t, msg.Text, "{first_name}")
	})
}

func TestVariantFor(t *testing.T) {
	assert.Zero(t, variantFor("any", 0))
	assert.Zero(t, variantFor("any", 1))

	got := variantFor("lead-abc", 2)
	assert.GreaterOrEqual(t, got, 0)
	assert.Less(t, got, 2)
	assert.Equal(t, got, variantFor("lead-abc", 2))
}
