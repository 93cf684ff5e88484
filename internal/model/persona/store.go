package persona

import (
	"errors"
	"fmt"
)

// ErrUnknownPersona is returned when an identifier is not in the registry.
var ErrUnknownPersona = errors.New("unknown persona")

// Store exposes persona retrieval for handlers and sessions.
type Store interface {
	List() []Persona
	Lookup(id string) (Persona, error)
}

// Registry implements Store over a fixed table. It has no mutation API, so it
// is safe to share between goroutines once built.
type Registry struct {
	items []Persona
	index map[string]int
}

// NewRegistry returns a Registry holding a copy of the supplied personas.
func NewRegistry(items []Persona) *Registry {
	r := &Registry{
		items: append([]Persona(nil), items...),
		index: make(map[string]int, len(items)),
	}
	for i, item := range r.items {
		if _, dup := r.index[item.ID]; !dup {
			r.index[item.ID] = i
		}
	}
	return r
}

// List returns the personas in table order.
func (r *Registry) List() []Persona {
	return append([]Persona(nil), r.items...)
}

// Lookup finds a persona by identifier.
func (r *Registry) Lookup(id string) (Persona, error) {
	i, ok := r.index[id]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %q", ErrUnknownPersona, id)
	}
	return r.items[i], nil
}
