package styles

import (
	"testing"

	"github.com/opencode-ai/themesync/internal/models"
	"github.com/stretchr/testify/require"
)

func TestForMode(t *testing.T) {
	require.Equal(t, "light", ForMode(models.ModeLight).Name)
	require.Equal(t, "default", ForMode(models.ModeDark).Name)
	require.Equal(t, "default", ForMode("").Name)
}

func TestPalettesAreValidHex(t *testing.T) {
	for name, theme := range Themes {
		tokens := theme.Tokens
		for _, value := range []string{tokens.Text, tokens.TextMuted, tokens.Border, tokens.Accent, tokens.Focus, tokens.Success, tokens.Warning, tokens.Error} {
			require.NoError(t, models.ValidateColorValue(value), "%s: %s", name, value)
		}
	}
}
