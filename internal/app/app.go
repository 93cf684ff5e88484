// Package app assembles the services shared by the server and terminal binaries.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/zhouzirui/beacon/internal/config"
	"github.com/zhouzirui/beacon/internal/model/persona"
	"github.com/zhouzirui/beacon/internal/observe"
	"github.com/zhouzirui/beacon/internal/service/ai"
	"github.com/zhouzirui/beacon/internal/service/chat"
)

// LoadPersonas returns the embedded table, or PERSONAS_FILE when set.
func LoadPersonas(cfg config.PersonaConfig) (*persona.Registry, error) {
	if cfg.File == "" {
		return persona.NewRegistry(persona.Seed()), nil
	}

	items, err := persona.LoadFile(cfg.File)
	if err != nil {
		return nil, err
	}
	log.Printf("[app] loaded %d personas from %s", len(items), cfg.File)
	return persona.NewRegistry(items), nil
}

// NewChatService wires personas, the completion backend and the typing
// presenter into a session manager. metrics may be nil.
func NewChatService(ctx context.Context, cfg *config.Config, personas persona.Store, metrics *observe.Metrics) (*chat.Service, error) {
	aiService, err := ai.NewService(ctx, cfg.AI, metrics)
	if err != nil {
		return nil, err
	}

	chatService, err := chat.NewService(chat.Deps{
		Personas:  personas,
		Completer: aiService,
		Presenter: chat.NewPresenter(cfg.Session.TypingDelay),
		Metrics:   metrics,
	}, cfg.Session.DefaultPersona)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat service: %w", err)
	}

	if cfg.AI.Provider == config.ProviderGroq && cfg.AI.Credential() == "" {
		log.Printf("[app] warning: %s is not set; replies will show a configuration error until it is", cfg.AI.CredentialEnv)
	}
	return chatService, nil
}
