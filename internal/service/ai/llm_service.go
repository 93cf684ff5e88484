package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/beacon/internal/config"
	"github.com/zhouzirui/beacon/internal/model/chat"
	"github.com/zhouzirui/beacon/internal/observe"
	"github.com/zhouzirui/beacon/pkg/provider/groq"
)

// Service turns a persona prompt and transcript into a single buffered reply.
type Service struct {
	chatModel   model.BaseChatModel
	template    prompt.ChatTemplate
	provider    string
	temperature float64
	timeout     time.Duration
	metrics     *observe.Metrics
}

// NewService creates the chat model described by cfg and wraps it.
func NewService(ctx context.Context, cfg config.AIConfig, metrics *observe.Metrics) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(chatModel, cfg, metrics), nil
}

// NewServiceWithModel wraps an existing chat model.
func NewServiceWithModel(chatModel model.BaseChatModel, cfg config.AIConfig, metrics *observe.Metrics) *Service {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	return &Service{
		chatModel:   chatModel,
		template:    promptTemplate,
		provider:    cfg.Provider,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		metrics:     metrics,
	}
}

// Complete sends one request and returns the reply text. Remote status
// failures come back as *groq.CompletionError for every provider so callers
// can render them verbatim.
func (s *Service) Complete(ctx context.Context, systemPrompt string, prior []chat.Turn, message string) (string, error) {
	messages, err := s.template.Format(ctx, map[string]any{
		"system":  systemPrompt,
		"history": buildHistoryMessages(prior),
		"query":   message,
	})
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	response, err := s.chatModel.Generate(ctx, messages, model.WithTemperature(float32(s.temperature)))
	elapsed := time.Since(start)

	if err != nil {
		err = normalizeError(err)
		s.metrics.RecordCompletion(ctx, s.provider, statusLabel(err), elapsed)
		return "", err
	}
	s.metrics.RecordCompletion(ctx, s.provider, "ok", elapsed)

	log.Printf("[ai] generated response provider=%s, history=%d, length=%d, elapsed=%s", s.provider, len(prior), len(response.Content), elapsed)
	return response.Content, nil
}

// buildHistoryMessages converts the visible transcript into eino messages.
// System turns never appear in prior; they are skipped if they do.
func buildHistoryMessages(prior []chat.Turn) []*schema.Message {
	if len(prior) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(prior))
	for _, turn := range prior {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}

func statusLabel(err error) string {
	var completionErr *groq.CompletionError
	switch {
	case errors.As(err, &completionErr):
		return strconv.Itoa(completionErr.StatusCode)
	case errors.Is(err, groq.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
