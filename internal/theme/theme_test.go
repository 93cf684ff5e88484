package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/beacon/internal/model/persona"
)

func TestHexToRGBA(t *testing.T) {
	got, err := HexToRGBA("#1e3a8a", 0.3)
	require.NoError(t, err)
	assert.Equal(t, "rgba(30, 58, 138, 0.3)", got)

	got, err = HexToRGBA("CA8A04", 0.5)
	require.NoError(t, err)
	assert.Equal(t, "rgba(202, 138, 4, 0.5)", got)
}

func TestHexToRGBARejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "#fff", "#12345g", "#1234567"} {
		_, err := HexToRGBA(in, 1)
		assert.Error(t, err, in)
	}
}

func TestCSSUsesPersonaColours(t *testing.T) {
	css, err := CSS(persona.Theme{Background: "#9333ea", Text: "#ffffff"})
	require.NoError(t, err)

	assert.Contains(t, css, "linear-gradient(80deg, rgba(147, 51, 234, 0.3), black)")
	assert.Contains(t, css, "border: 2px solid rgba(147, 51, 234, 0.5) !important;")
	assert.Contains(t, css, "color: #ffffff !important;")
	assert.Contains(t, css, "linear-gradient(135deg, #9333ea, black)")
}

func TestCSSForEverySeedPersona(t *testing.T) {
	for _, p := range persona.Seed() {
		_, err := CSS(p.Theme)
		assert.NoError(t, err, p.ID)
	}
}
