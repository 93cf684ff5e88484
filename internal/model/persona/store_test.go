package persona

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookupUnknown(t *testing.T) {
	reg := NewRegistry(Seed())

	_, err := reg.Lookup("nobody")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPersona))
}

func TestRegistryListIsACopy(t *testing.T) {
	reg := NewRegistry(Seed())

	list := reg.List()
	list[0].Greeting = "mutated"

	ark, err := reg.Lookup("ARK")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", ark.Greeting)
	assert.NotEqual(t, "mutated", reg.List()[0].Greeting)
}

func TestRegistryIgnoresCallerSliceMutation(t *testing.T) {
	items := Seed()
	reg := NewRegistry(items)
	items[1].SystemPrompt = "changed"

	ray, err := reg.Lookup("RAY")
	require.NoError(t, err)
	assert.NotEqual(t, "changed", ray.SystemPrompt)
}
