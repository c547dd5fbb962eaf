package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("Success - national number with default region", func(t *testing.T) {
		e164, err := Normalize("612 345 678", "ES")
		require.NoError(t, err)
		assert.Equal(t, "+34612345678", e164)
	})

	t.Run("Success - international number ignores region", func(t *testing.T) {
		e164, err := Normalize("+1 415 555 2671", "ES")
		require.NoError(t, err)
		assert.Equal(t, "+14155552671", e164)
	})

	t.Run("Error - empty number", func(t *testing.T) {
		_, err := Normalize("", "ES")
		assert.Error(t, err)
	})

	t.Run("Error - garbage input", func(t *testing.T) {
		_, err := Normalize("not-a-phone", "ES")
		assert.Error(t, err)
	})
}

func TestIsMobile(t *testing.T) {
	assert.True(t, IsMobile("+34612345678", "ES"))
	assert.False(t, IsMobile("garbage", "ES"))
}
