package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Service keeps the live sessions in memory, keyed by a random identifier.
type Service struct {
	deps           Deps
	defaultPersona string

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewService validates the default persona and returns an empty session table.
func NewService(deps Deps, defaultPersona string) (*Service, error) {
	if deps.Personas == nil || deps.Completer == nil {
		return nil, errors.New("chat service requires a persona store and a completer")
	}
	if _, err := deps.Personas.Lookup(defaultPersona); err != nil {
		return nil, fmt.Errorf("default persona: %w", err)
	}
	if deps.Presenter == nil {
		deps.Presenter = NewPresenter(0)
	}

	return &Service{
		deps:           deps,
		defaultPersona: defaultPersona,
		sessions:       make(map[string]*Controller),
	}, nil
}

// DefaultPersona returns the persona a session starts with when none is given.
func (s *Service) DefaultPersona() string {
	return s.defaultPersona
}

// CreateSession provisions a session bound to personaID, or to the default
// persona when personaID is empty.
func (s *Service) CreateSession(ctx context.Context, personaID string) (*Controller, error) {
	if personaID == "" {
		personaID = s.defaultPersona
	}

	ctrl, err := NewController(uuid.NewString(), s.deps, personaID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[ctrl.ID()] = ctrl
	s.mu.Unlock()

	s.deps.Metrics.SessionOpened(ctx)
	log.Printf("[session] created %s with persona %s", ctrl.ID(), personaID)
	return ctrl, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctrl, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ctrl, nil
}

// CloseSession drops the session. A reply still being produced for it is
// finished against the detached controller and never observed.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	ctrl, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	ctrl.Clear(ctx)
	s.deps.Metrics.SessionClosed(ctx)
	log.Printf("[session] closed %s", sessionID)
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
