package persona

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedHasFourDistinctPersonas(t *testing.T) {
	items := Seed()
	require.Len(t, items, 4)

	ids := map[string]bool{}
	prompts := map[string]bool{}
	greetings := map[string]bool{}
	themes := map[Theme]bool{}
	for _, p := range items {
		ids[p.ID] = true
		prompts[p.SystemPrompt] = true
		greetings[p.Greeting] = true
		themes[p.Theme] = true
	}
	assert.Len(t, ids, 4)
	assert.Len(t, prompts, 4)
	assert.Len(t, greetings, 4)
	assert.Len(t, themes, 4)

	assert.Equal(t, []string{"ARK", "RAY", "BOLT", "READYBOT"}, []string{items[0].ID, items[1].ID, items[2].ID, items[3].ID})
}

func TestSeedKeepsPromptFormatting(t *testing.T) {
	reg := NewRegistry(Seed())

	ark, err := reg.Lookup("ARK")
	require.NoError(t, err)
	assert.Contains(t, ark.SystemPrompt, "\n\n- **General Crisis Support:**")
	assert.Equal(t, Theme{Background: "#1e3a8a", Text: "#ffffff"}, ark.Theme)

	ray, err := reg.Lookup("RAY")
	require.NoError(t, err)
	assert.NotContains(t, ray.SystemPrompt, "\n")
	assert.True(t, strings.HasPrefix(ray.Greeting, "Hi, I am **RAY**"))
}

func TestDecodeRejectsInvalidTable(t *testing.T) {
	doc := `
- id: A
  name: First
  systemPrompt: prompt
  greeting: hi
  theme: {background: "#000000", text: "#fff"}
- id: A
  name: Second
  systemPrompt: ""
  greeting: hello
  theme: {background: "#111111", text: "#222222"}
`
	_, err := Decode(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid theme text "#fff"`)
	assert.Contains(t, err.Error(), `duplicate id "A"`)
	assert.Contains(t, err.Error(), "systemPrompt is required")
}

func TestDecodeRejectsPaddedID(t *testing.T) {
	doc := `
- id: " RAY"
  name: Emotional Support
  systemPrompt: prompt
  greeting: hi
  theme: {background: "#9333ea", text: "#ffffff"}
`
	_, err := Decode(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `id " RAY" has surrounding whitespace`)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	doc := `
- id: A
  prompt: typo
`
	_, err := Decode(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestDecodeRejectsEmptyTable(t *testing.T) {
	_, err := Decode(strings.NewReader("[]"))
	assert.Error(t, err)
}
